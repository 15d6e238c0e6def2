package limits

// State mirrors the compliance service's view of a customer's remaining
// daily allowance. It is fetched, never computed locally, and never mutated;
// the server re-validates at order submission so this copy is advisory only.
type State struct {
	DailyLimitGrams float64 `json:"dailyLimitGrams"`
	ConsumedGrams   float64 `json:"consumedGrams"`
	RemainingGrams  float64 `json:"remainingGrams"`
}

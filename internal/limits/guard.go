package limits

import "fmt"

// WarningThresholdGrams is one standard retail unit (an eighth). A purchase
// that leaves less than this much allowance gets a heads-up warning without
// being blocked.
const WarningThresholdGrams = 3.5

// Result is the advisory verdict for a proposed cart addition.
type Result struct {
	CanAdd  bool   `json:"canAdd"`
	Warning string `json:"warning,omitempty"`
}

// Evaluate checks whether adding quantity units of a variant weighing
// weightGrams each would exceed the customer's remaining allowance.
//
// A nil state means the customer is anonymous or the compliance service was
// unreachable; in that case the add is always allowed and enforcement is left
// entirely to the server gate at order submission.
func Evaluate(weightGrams float64, quantity int, state *State) Result {
	if state == nil {
		return Result{CanAdd: true}
	}
	// variants without a tracked weight (accessories etc.) never count
	if weightGrams <= 0 || quantity <= 0 {
		return Result{CanAdd: true}
	}

	toAdd := weightGrams * float64(quantity)
	remaining := state.RemainingGrams
	if remaining < 0 {
		remaining = 0
	}

	if toAdd > remaining {
		return Result{
			CanAdd:  false,
			Warning: fmt.Sprintf("purchase limit reached: you can add at most %.1fg more today", remaining),
		}
	}

	if left := remaining - toAdd; left < WarningThresholdGrams {
		return Result{
			CanAdd:  true,
			Warning: fmt.Sprintf("this purchase leaves %.1fg of your daily allowance", left),
		}
	}

	return Result{CanAdd: true}
}

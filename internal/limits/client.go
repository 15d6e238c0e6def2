package limits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrUnavailable = errors.New("purchase limit unavailable")

// Fetcher returns the advisory limit state for a customer, or an error when
// the compliance service cannot answer. Callers treat any error as "no state"
// and let the server gate enforce the limit.
type Fetcher interface {
	Remaining(ctx context.Context, customerID int) (*State, error)
}

// HTTPFetcher calls the compliance service's remaining-purchase-limit
// endpoint. Concurrent fetches for the same customer are collapsed with
// singleflight; the storefront header and the add-to-cart guard tend to ask
// at the same moment.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
	sfg     singleflight.Group
	log     *zap.Logger
}

func NewHTTPFetcher(baseURL string, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// remainingResponse mirrors the compliance service payload:
// {"limit":{"total":...},"consumed":{"total":...},"remaining":{"total":...}}
type remainingResponse struct {
	Limit struct {
		Total float64 `json:"total"`
	} `json:"limit"`
	Consumed struct {
		Total float64 `json:"total"`
	} `json:"consumed"`
	Remaining struct {
		Total float64 `json:"total"`
	} `json:"remaining"`
}

func (f *HTTPFetcher) Remaining(ctx context.Context, customerID int) (*State, error) {
	v, err, _ := f.sfg.Do(strconv.Itoa(customerID), func() (interface{}, error) {
		return f.fetch(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*State), nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, customerID int) (*State, error) {
	url := fmt.Sprintf("%s/remaining-purchase-limit?customerId=%d", f.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	res, err := f.client.Do(req)
	if err != nil {
		f.log.Warn("compliance fetch failed", zap.Int("customerID", customerID), zap.Error(err))
		return nil, ErrUnavailable
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		f.log.Warn("compliance fetch rejected", zap.Int("status", res.StatusCode))
		return nil, ErrUnavailable
	}

	var payload remainingResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return &State{
		DailyLimitGrams: payload.Limit.Total,
		ConsumedGrams:   payload.Consumed.Total,
		RemainingGrams:  payload.Remaining.Total,
	}, nil
}

package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// PricingClient is the pricing/tax/promo collaborator. It accepts the cart
// contents plus promo code and returns the server's authoritative cart:
// same lines re-priced, plus tax, discount, delivery fee and the
// purchase-limit flag.
type PricingClient interface {
	Quote(ctx context.Context, customerID int, c Cart) (Cart, error)
}

type quoteRequest struct {
	CustomerID int        `json:"customerId"`
	Items      []CartItem `json:"items"`
	PromoCode  *string    `json:"promoCode,omitempty"`
}

// HTTPPricingClient calls the pricing service over HTTP behind a circuit
// breaker, so a struggling pricing backend degrades to rollbacks instead of
// piling up blocked quote calls.
type HTTPPricingClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[Cart]
}

func NewHTTPPricingClient(baseURL string) *HTTPPricingClient {
	cb := gobreaker.NewCircuitBreaker[Cart](gobreaker.Settings{
		Name:    "pricing",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPPricingClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: cb,
	}
}

func (p *HTTPPricingClient) Quote(ctx context.Context, customerID int, c Cart) (Cart, error) {
	return p.breaker.Execute(func() (Cart, error) {
		return p.quote(ctx, customerID, c)
	})
}

func (p *HTTPPricingClient) quote(ctx context.Context, customerID int, c Cart) (Cart, error) {
	body, err := json.Marshal(quoteRequest{
		CustomerID: customerID,
		Items:      c.Items,
		PromoCode:  c.PromoCode,
	})
	if err != nil {
		return Cart{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return Cart{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Cart{}, fmt.Errorf("pricing quote failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Cart{}, fmt.Errorf("pricing quote rejected: status %d", res.StatusCode)
	}

	var server Cart
	if err := json.NewDecoder(res.Body).Decode(&server); err != nil {
		return Cart{}, fmt.Errorf("decode quote response: %w", err)
	}
	return server, nil
}

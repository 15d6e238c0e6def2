package order

import (
	"errors"

	"github.com/greenmile/dispensary-backend/internal/checkout"
)

// Status is the server-mirrored order lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusRefunded       Status = "refunded"
)

var (
	ErrTerminalStatus    = errors.New("order is in a terminal status")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// NextStatus returns the single forward transition allowed from the current
// status. The processing step forks on the fulfillment method frozen onto
// the order at creation.
func NextStatus(current Status, fulfillmentMethod string) (Status, error) {
	switch current {
	case StatusPending:
		return StatusConfirmed, nil
	case StatusConfirmed:
		return StatusProcessing, nil
	case StatusProcessing:
		if fulfillmentMethod == checkout.MethodDelivery {
			return StatusOutForDelivery, nil
		}
		return StatusReadyForPickup, nil
	case StatusReadyForPickup, StatusOutForDelivery:
		return StatusDelivered, nil
	}
	if current.Terminal() {
		return "", ErrTerminalStatus
	}
	return "", ErrInvalidTransition
}

// CanTransition is the policy boundary every executed transition passes
// through, not just the UI that offers the button. Legal moves are the
// single table-driven forward step, cancellation from any non-terminal
// status, and the external refund workflow completing a cancellation.
func CanTransition(from, to Status, fulfillmentMethod string) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	if to == StatusRefunded {
		return from == StatusCancelled
	}
	next, err := NextStatus(from, fulfillmentMethod)
	return err == nil && next == to
}

// StatusEvent is one entry of the append-only audit trail. Every transition
// appends exactly one; the sequence is never reordered or mutated.
type StatusEvent struct {
	Status    Status `json:"status"`
	Timestamp string `json:"timestamp"`
	ActorName string `json:"actorName"`
	Note      string `json:"note,omitempty"`
}

// LineItem is a frozen copy of a cart line at submission time, never a live
// reference back into the cart.
type LineItem struct {
	ProductID       int      `json:"productId"`
	VariantID       int      `json:"variantId"`
	SKU             string   `json:"sku"`
	Quantity        int      `json:"quantity"`
	UnitPriceCents  int      `json:"unitPriceCents"`
	TotalPriceCents int      `json:"totalPriceCents"`
	WeightGrams     *float64 `json:"weightGrams,omitempty"`
}

// Customer is the snapshot of who placed the order, frozen at creation.
type Customer struct {
	CustomerID int    `json:"customerId"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}

// Fulfillment summarizes how the order reaches the customer.
type Fulfillment struct {
	Method  string            `json:"method"`
	Address *checkout.Address `json:"address,omitempty"`
}

// Order is created atomically at submission and afterwards mutated only via
// status transitions; it is never deleted, only terminal.
type Order struct {
	OrderID            int           `json:"orderId"`
	OrderNumber        string        `json:"orderNumber"`
	Customer           Customer      `json:"customer"`
	Status             Status        `json:"status"`
	Items              []LineItem    `json:"items"`
	Fulfillment        Fulfillment   `json:"fulfillment"`
	PaymentMethod      string        `json:"paymentMethod"`
	SubtotalCents      int           `json:"subtotalCents"`
	PromoDiscountCents int           `json:"promoDiscountCents"`
	TaxCents           int           `json:"taxCents"`
	DeliveryFeeCents   int           `json:"deliveryFeeCents"`
	TotalCents         int           `json:"totalCents"`
	StatusHistory      []StatusEvent `json:"statusHistory"`
	CreatedAt          string        `json:"createdAt"`
	UpdatedAt          string        `json:"updatedAt"`
}

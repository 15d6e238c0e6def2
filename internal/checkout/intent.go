package checkout

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MethodPickup   = "pickup"
	MethodDelivery = "delivery"
)

const (
	PaymentCard = "card"
	PaymentCash = "cash"
)

var (
	ErrInvalidMethod  = errors.New("fulfillment method must be pickup or delivery")
	ErrInvalidPayment = errors.New("payment method must be card or cash")
)

var (
	stateRe = regexp.MustCompile(`^[A-Za-z]{2}$`)
	zipRe   = regexp.MustCompile(`^\d{5}(-?\d{4})?$`)
)

// Address is a delivery destination. Validation is local-only; malformed
// addresses never reach the server.
type Address struct {
	Street string `json:"street"`
	Apt    string `json:"apt,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

func (a Address) Validate() error {
	if len(strings.TrimSpace(a.Street)) < 5 {
		return errors.New("street must be at least 5 characters")
	}
	if strings.TrimSpace(a.City) == "" {
		return errors.New("city is required")
	}
	if !stateRe.MatchString(a.State) {
		return errors.New("state must be a 2-letter code")
	}
	if !zipRe.MatchString(a.Zip) {
		return errors.New("zip must be 5 or 9 digits")
	}
	return nil
}

// FulfillmentIntent is the first checkout step's payload. Immutable once the
// flow reaches Review, except by navigating back.
type FulfillmentIntent struct {
	Method  string   `json:"method"`
	Address *Address `json:"address,omitempty"`
}

func (f FulfillmentIntent) Validate() error {
	switch f.Method {
	case MethodPickup:
		return nil
	case MethodDelivery:
		if f.Address == nil {
			return errors.New("delivery address is required")
		}
		return f.Address.Validate()
	default:
		return ErrInvalidMethod
	}
}

// PaymentSelection is the second step's payload. For card, CardValid is the
// opaque validated/invalid signal from the external payment capability; this
// code never sees raw payment credentials.
type PaymentSelection struct {
	Method    string `json:"method"`
	CardValid bool   `json:"cardValid,omitempty"`
}

func (p PaymentSelection) Validate() error {
	switch p.Method {
	case PaymentCard, PaymentCash:
		return nil
	default:
		return ErrInvalidPayment
	}
}

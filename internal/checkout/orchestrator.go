package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/greenmile/dispensary-backend/internal/cart"
)

// Step is the orchestrator's position in the linear checkout flow.
type Step string

const (
	StepFulfillment Step = "fulfillment"
	StepPayment     Step = "payment"
	StepReview      Step = "review"
	StepSubmitting  Step = "submitting"
	StepSucceeded   Step = "succeeded"
	StepFailed      Step = "failed"
)

var (
	ErrWrongStep      = errors.New("action not allowed from the current step")
	ErrCardInvalid    = errors.New("card details are not valid")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrSubmitInFlight = errors.New("an order submission is already in progress")
)

// Receipt is what a successful submission leaves behind, including the
// frozen line items captured at the moment the order was accepted.
type Receipt struct {
	OrderID     int             `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Items       []cart.CartItem `json:"items"`
}

// Submitter is the order-creation boundary. Implemented by the order
// package; the server derives the authoritative line items from its own
// cart and re-runs the compliance gate.
type Submitter interface {
	Submit(ctx context.Context, customerID int, snapshot cart.Cart, intent FulfillmentIntent, paymentMethod string) (Receipt, error)
}

// Orchestrator drives one customer's checkout: Fulfillment → Payment →
// Review → Submitting → Succeeded/Failed, backward navigation allowed, no
// skip-ahead. Each step keeps its validated payload so going back never
// loses entered data.
type Orchestrator struct {
	mu          sync.Mutex
	step        Step
	fulfillment *FulfillmentIntent
	payment     *PaymentSelection
	lastError   string
	receipt     *Receipt

	customerID int
	store      *cart.Store
	submitter  Submitter
}

func NewOrchestrator(customerID int, store *cart.Store, submitter Submitter) *Orchestrator {
	return &Orchestrator{
		step:       StepFulfillment,
		customerID: customerID,
		store:      store,
		submitter:  submitter,
	}
}

// View is the read-only composite the UI renders: current step, entered
// payloads and the live cart totals (never a captured snapshot).
type View struct {
	Step        Step               `json:"step"`
	Fulfillment *FulfillmentIntent `json:"fulfillment,omitempty"`
	Payment     *PaymentSelection  `json:"payment,omitempty"`
	Cart        cart.Cart          `json:"cart"`
	Error       string             `json:"error,omitempty"`
	Receipt     *Receipt           `json:"receipt,omitempty"`
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := View{
		Step:        o.step,
		Fulfillment: o.fulfillment,
		Cart:        o.store.Snapshot(),
		Error:       o.lastError,
		Receipt:     o.receipt,
	}
	if o.payment != nil {
		// the card-valid signal is transient, only the method is state
		v.Payment = &PaymentSelection{Method: o.payment.Method}
	}
	return v
}

// SubmitFulfillment validates and stores step 1, advancing to Payment. It
// is the only way forward from Fulfillment and makes no server call.
func (o *Orchestrator) SubmitFulfillment(intent FulfillmentIntent) error {
	if err := intent.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != StepFulfillment {
		return ErrWrongStep
	}
	o.fulfillment = &intent
	o.step = StepPayment
	return nil
}

// SubmitPayment validates and stores step 2, advancing to Review. The card
// path is blocked while the external payment capability reports invalid.
func (o *Orchestrator) SubmitPayment(sel PaymentSelection) error {
	if err := sel.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.step != StepPayment {
		return ErrWrongStep
	}
	if sel.Method == PaymentCard && !sel.CardValid {
		return ErrCardInvalid
	}
	o.payment = &sel
	o.step = StepReview
	return nil
}

// Back steps to the previous state without dropping anything already
// entered. From Failed it returns to Review so the user can retry.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.step {
	case StepPayment:
		o.step = StepFulfillment
	case StepReview:
		o.step = StepPayment
	case StepFailed:
		o.step = StepReview
		o.lastError = ""
	default:
		return ErrWrongStep
	}
	return nil
}

// Submit places the order. Only legal from Review (or Failed, which is a
// retry). The cart is read live at this moment and cleared only once the
// server definitely accepted the order; a failure keeps the cart and every
// entered selection so the user can retry explicitly. Never retried
// automatically.
func (o *Orchestrator) Submit(ctx context.Context) (Receipt, error) {
	o.mu.Lock()
	switch o.step {
	case StepReview, StepFailed:
	case StepSubmitting:
		o.mu.Unlock()
		return Receipt{}, ErrSubmitInFlight
	default:
		o.mu.Unlock()
		return Receipt{}, ErrWrongStep
	}

	intent := *o.fulfillment
	payment := o.payment.Method
	snapshot := o.store.Snapshot()
	if snapshot.IsEmpty() {
		o.mu.Unlock()
		return Receipt{}, ErrEmptyCart
	}
	o.step = StepSubmitting
	o.lastError = ""
	o.mu.Unlock()

	receipt, err := o.submitter.Submit(ctx, o.customerID, snapshot, intent, payment)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.step = StepFailed
		o.lastError = err.Error()
		return Receipt{}, err
	}

	receipt.Items = snapshot.Items
	o.receipt = &receipt
	o.step = StepSucceeded
	o.store.Clear()
	return receipt, nil
}

// Reset abandons the flow. Nothing exists server-side before Submitting, so
// there is nothing to undo.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.step == StepSubmitting {
		return
	}
	o.step = StepFulfillment
	o.fulfillment = nil
	o.payment = nil
	o.lastError = ""
	o.receipt = nil
}

// Sessions keeps one orchestrator per customer, mirroring cart.Sessions.
type Sessions struct {
	mu        sync.Mutex
	flows     map[int]*Orchestrator
	carts     *cart.Sessions
	submitter Submitter
}

func NewSessions(carts *cart.Sessions, submitter Submitter) *Sessions {
	return &Sessions{
		flows:     make(map[int]*Orchestrator),
		carts:     carts,
		submitter: submitter,
	}
}

func (s *Sessions) Get(ctx context.Context, customerID int) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.flows[customerID]; ok {
		return o
	}
	o := NewOrchestrator(customerID, s.carts.Get(ctx, customerID), s.submitter)
	s.flows[customerID] = o
	return o
}

// End discards a customer's flow, typically after Succeeded.
func (s *Sessions) End(customerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, customerID)
}

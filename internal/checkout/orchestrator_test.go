package checkout

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmile/dispensary-backend/internal/cart"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	err     error
	receipt Receipt
	calls   int
	gate    chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, customerID int, snapshot cart.Cart, intent FulfillmentIntent, paymentMethod string) (Receipt, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Receipt{}, f.err
	}
	return f.receipt, nil
}

func storeWithItem(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(1, nil, nil, nil)
	_, _, err := s.AddItem(cart.CartItem{ProductID: 1, VariantID: 1, SKU: "GM-OG-3.5", Quantity: 2, UnitPriceCents: 2000})
	require.NoError(t, err)
	return s
}

func TestCheckout_HappyPathPickup(t *testing.T) {
	store := storeWithItem(t)
	sub := &fakeSubmitter{receipt: Receipt{OrderID: 10, OrderNumber: "ORD-AB12CD34"}}
	o := NewOrchestrator(1, store, sub)

	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))
	assert.Equal(t, StepPayment, o.View().Step)

	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))
	assert.Equal(t, StepReview, o.View().Step)

	receipt, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORD-AB12CD34", receipt.OrderNumber)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "GM-OG-3.5", receipt.Items[0].SKU, "receipt carries frozen lines")

	v := o.View()
	assert.Equal(t, StepSucceeded, v.Step)
	assert.True(t, store.IsEmpty(), "cart cleared only after definite acceptance")
}

func TestCheckout_NoSkipAhead(t *testing.T) {
	o := NewOrchestrator(1, storeWithItem(t), &fakeSubmitter{})

	assert.ErrorIs(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}), ErrWrongStep)
	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestCheckout_BackPreservesEnteredData(t *testing.T) {
	o := NewOrchestrator(1, storeWithItem(t), &fakeSubmitter{})

	addr := &Address{Street: "123 Main Street", City: "Denver", State: "CO", Zip: "80202"}
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodDelivery, Address: addr}))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))

	require.NoError(t, o.Back())
	assert.Equal(t, StepPayment, o.View().Step)
	require.NoError(t, o.Back())

	v := o.View()
	assert.Equal(t, StepFulfillment, v.Step)
	require.NotNil(t, v.Fulfillment, "going back never drops the entered address")
	assert.Equal(t, "Denver", v.Fulfillment.Address.City)

	// and the flow can walk forward again
	require.NoError(t, o.SubmitFulfillment(*v.Fulfillment))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))
	assert.Equal(t, StepReview, o.View().Step)
}

func TestCheckout_CardRequiresValidSignal(t *testing.T) {
	o := NewOrchestrator(1, storeWithItem(t), &fakeSubmitter{})
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))

	assert.ErrorIs(t, o.SubmitPayment(PaymentSelection{Method: PaymentCard}), ErrCardInvalid)
	assert.Equal(t, StepPayment, o.View().Step)

	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCard, CardValid: true}))
	assert.Equal(t, StepReview, o.View().Step)
}

func TestCheckout_DeliveryRequiresAddress(t *testing.T) {
	o := NewOrchestrator(1, storeWithItem(t), &fakeSubmitter{})

	err := o.SubmitFulfillment(FulfillmentIntent{Method: MethodDelivery})
	require.Error(t, err)
	assert.Equal(t, StepFulfillment, o.View().Step)

	err = o.SubmitFulfillment(FulfillmentIntent{Method: "teleport"})
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestCheckout_FailedSubmitKeepsEverything(t *testing.T) {
	store := storeWithItem(t)
	sub := &fakeSubmitter{err: errors.New("store is closed")}
	o := NewOrchestrator(1, store, sub)

	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))

	_, err := o.Submit(context.Background())
	require.Error(t, err)

	v := o.View()
	assert.Equal(t, StepFailed, v.Step)
	assert.Equal(t, "store is closed", v.Error)
	assert.False(t, store.IsEmpty(), "cart survives a rejected submission")
	assert.NotNil(t, v.Fulfillment)
	assert.Equal(t, 1, sub.calls, "no automatic retry")

	// explicit retry after the backend recovers
	sub.mu.Lock()
	sub.err = nil
	sub.receipt = Receipt{OrderID: 11, OrderNumber: "ORD-RETRY111"}
	sub.mu.Unlock()

	receipt, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ORD-RETRY111", receipt.OrderNumber)
	assert.Equal(t, StepSucceeded, o.View().Step)
	assert.True(t, store.IsEmpty())
}

func TestCheckout_BackFromFailedClearsError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("rejected")}
	o := NewOrchestrator(1, storeWithItem(t), sub)
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))
	_, _ = o.Submit(context.Background())
	require.Equal(t, StepFailed, o.View().Step)

	require.NoError(t, o.Back())
	v := o.View()
	assert.Equal(t, StepReview, v.Step)
	assert.Empty(t, v.Error)
}

func TestCheckout_EmptyCartCannotSubmit(t *testing.T) {
	store := cart.NewStore(1, nil, nil, nil)
	o := NewOrchestrator(1, store, &fakeSubmitter{})
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))

	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_SecondSubmitWhileInFlight(t *testing.T) {
	sub := &fakeSubmitter{gate: make(chan struct{}), receipt: Receipt{OrderID: 1, OrderNumber: "ORD-ONCE0001"}}
	o := NewOrchestrator(1, storeWithItem(t), sub)
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))
	require.NoError(t, o.SubmitPayment(PaymentSelection{Method: PaymentCash}))

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background())
		done <- err
	}()

	// wait until the first submission is parked inside the submitter
	for o.View().Step != StepSubmitting {
		runtime.Gosched()
	}
	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(sub.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.calls)
}

func TestCheckout_ResetAbandonsFlow(t *testing.T) {
	store := storeWithItem(t)
	o := NewOrchestrator(1, store, &fakeSubmitter{})
	require.NoError(t, o.SubmitFulfillment(FulfillmentIntent{Method: MethodPickup}))

	o.Reset()
	v := o.View()
	assert.Equal(t, StepFulfillment, v.Step)
	assert.Nil(t, v.Fulfillment)
	assert.False(t, store.IsEmpty(), "abandoning checkout never touches the cart")
}

func TestAddressValidation(t *testing.T) {
	valid := Address{Street: "123 Main Street", City: "Denver", State: "CO", Zip: "80202"}
	assert.NoError(t, valid.Validate())

	nineDigit := valid
	nineDigit.Zip = "80202-1234"
	assert.NoError(t, nineDigit.Validate())

	cases := []struct {
		name   string
		mutate func(*Address)
	}{
		{"short street", func(a *Address) { a.Street = "5th" }},
		{"missing city", func(a *Address) { a.City = "  " }},
		{"bad state", func(a *Address) { a.State = "Colorado" }},
		{"bad zip", func(a *Address) { a.Zip = "1234" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := valid
			tc.mutate(&a)
			assert.Error(t, a.Validate())
		})
	}
}

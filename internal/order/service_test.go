package order

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmile/dispensary-backend/internal/checkout"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (p *capturePublisher) PublishStatusEvent(ctx context.Context, ord Order, event StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func testOrder() Order {
	return Order{
		Customer: Customer{CustomerID: 7, Name: "Jenny Test", Email: "j@example.com"},
		Items: []LineItem{
			{ProductID: 1, VariantID: 1, SKU: "GM-OG-3.5", Quantity: 2, UnitPriceCents: 2000, TotalPriceCents: 4000},
		},
		Fulfillment:   Fulfillment{Method: checkout.MethodPickup},
		PaymentMethod: checkout.PaymentCash,
		SubtotalCents: 4000,
		TaxCents:      340,
		TotalCents:    4340,
	}
}

func TestCreate_StartsPendingWithHistory(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(NewInMemoryRepository(), pub, nil)

	created, err := svc.Create(context.Background(), testOrder())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, created.Status)
	assert.True(t, strings.HasPrefix(created.OrderNumber, "ORD-"))
	assert.Len(t, created.OrderNumber, 12)
	require.Len(t, created.StatusHistory, 1)
	assert.Equal(t, StatusPending, created.StatusHistory[0].Status)
	assert.Equal(t, "Jenny Test", created.StatusHistory[0].ActorName)
	assert.Len(t, pub.events, 1)
}

func TestCreate_RejectsEmptyOrder(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), nil, nil)

	_, err := svc.Create(context.Background(), Order{Customer: Customer{CustomerID: 7}})
	assert.Error(t, err)

	bad := testOrder()
	bad.TotalCents = -1
	_, err = svc.Create(context.Background(), bad)
	assert.Error(t, err)
}

func TestAdvance_WalksPickupLifecycle(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(NewInMemoryRepository(), pub, nil)
	created, err := svc.Create(context.Background(), testOrder())
	require.NoError(t, err)

	want := []Status{StatusConfirmed, StatusProcessing, StatusReadyForPickup, StatusDelivered}
	for _, expected := range want {
		updated, err := svc.Advance(context.Background(), created.OrderID, "budtender-amy")
		require.NoError(t, err)
		assert.Equal(t, expected, updated.Status)
	}

	final, err := svc.GetByID(created.OrderID)
	require.NoError(t, err)
	// one event per transition, plus the creation entry, in order
	require.Len(t, final.StatusHistory, 5)
	for i, expected := range want {
		assert.Equal(t, expected, final.StatusHistory[i+1].Status)
		assert.Equal(t, "budtender-amy", final.StatusHistory[i+1].ActorName)
	}
	assert.Len(t, pub.events, 5)

	_, err = svc.Advance(context.Background(), created.OrderID, "budtender-amy")
	assert.ErrorIs(t, err, ErrTerminalStatus)
}

func TestAdvance_DeliveryFork(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), nil, nil)
	ord := testOrder()
	ord.Fulfillment = Fulfillment{
		Method:  checkout.MethodDelivery,
		Address: &checkout.Address{Street: "123 Main Street", City: "Denver", State: "CO", Zip: "80202"},
	}
	created, err := svc.Create(context.Background(), ord)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Advance(context.Background(), created.OrderID, "dispatch")
		require.NoError(t, err)
	}
	updated, err := svc.Advance(context.Background(), created.OrderID, "dispatch")
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, updated.Status, "delivery orders never pass through ready_for_pickup")
}

func TestCancel_FromNonTerminalOnly(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), nil, nil)
	created, err := svc.Create(context.Background(), testOrder())
	require.NoError(t, err)

	updated, err := svc.Cancel(context.Background(), created.OrderID, "Jenny Test", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, "changed my mind", updated.StatusHistory[1].Note)

	_, err = svc.Cancel(context.Background(), created.OrderID, "Jenny Test", "")
	assert.ErrorIs(t, err, ErrTerminalStatus)
}

func TestUpdateStatus_ConflictLeavesOrderUntouched(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil, nil)
	created, err := svc.Create(context.Background(), testOrder())
	require.NoError(t, err)

	// another actor confirms first
	_, err = svc.Advance(context.Background(), created.OrderID, "actor-a")
	require.NoError(t, err)

	// a transition working from the stale pending view must not land
	_, err = repo.UpdateStatus(created.OrderID, StatusPending, StatusConfirmed, StatusEvent{Status: StatusConfirmed})
	assert.ErrorIs(t, err, ErrConflict)

	current, err := svc.GetByID(created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, current.Status)
	assert.Len(t, current.StatusHistory, 2, "rejected transition appends nothing")
}

func TestPublishFailureDoesNotBlockTransition(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), failingPublisher{}, nil)
	created, err := svc.Create(context.Background(), testOrder())
	require.NoError(t, err)

	updated, err := svc.Advance(context.Background(), created.OrderID, "actor")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
}

type failingPublisher struct{}

func (failingPublisher) PublishStatusEvent(ctx context.Context, ord Order, event StatusEvent) error {
	return context.DeadlineExceeded
}

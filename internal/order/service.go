package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service owns order creation and the status protocol. Transitions are
// never optimistic: the repository serializes them and a conflict bubbles
// up untouched so the caller can refetch.
type Service struct {
	repo   Repository
	events StatusPublisher
	log    *zap.Logger
}

func NewService(repo Repository, events StatusPublisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, events: events, log: log}
}

// Create persists a new order in pending with its first history entry.
func (s *Service) Create(ctx context.Context, ord Order) (Order, error) {
	if len(ord.Items) == 0 {
		return Order{}, errors.New("order must have at least one item")
	}
	if ord.TotalCents < 0 || ord.SubtotalCents < 0 {
		return Order{}, errors.New("order totals must be non-negative")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ord.OrderNumber = newOrderNumber()
	ord.Status = StatusPending
	ord.StatusHistory = []StatusEvent{{
		Status:    StatusPending,
		Timestamp: now,
		ActorName: ord.Customer.Name,
	}}
	ord.CreatedAt = now
	ord.UpdatedAt = now

	created, err := s.repo.Create(ord)
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, created, created.StatusHistory[0])
	return created, nil
}

// Advance moves the order to the single next status the transition table
// allows for its fulfillment method.
func (s *Service) Advance(ctx context.Context, id int, actor string) (Order, error) {
	ord, err := s.repo.GetByID(id)
	if err != nil {
		return Order{}, err
	}

	next, err := NextStatus(ord.Status, ord.Fulfillment.Method)
	if err != nil {
		return Order{}, err
	}

	return s.transition(ctx, ord, next, actor, "")
}

// Cancel is the escape hatch from any non-terminal status. The optional
// note lands on the audit trail; any refund is an external workflow keyed
// off the published event.
func (s *Service) Cancel(ctx context.Context, id int, actor, note string) (Order, error) {
	ord, err := s.repo.GetByID(id)
	if err != nil {
		return Order{}, err
	}

	if !CanTransition(ord.Status, StatusCancelled, ord.Fulfillment.Method) {
		return Order{}, ErrTerminalStatus
	}

	return s.transition(ctx, ord, StatusCancelled, actor, note)
}

func (s *Service) transition(ctx context.Context, ord Order, next Status, actor, note string) (Order, error) {
	event := StatusEvent{
		Status:    next,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ActorName: actor,
		Note:      note,
	}

	updated, err := s.repo.UpdateStatus(ord.OrderID, ord.Status, next, event)
	if err != nil {
		return Order{}, err
	}

	s.publish(ctx, updated, event)
	return updated, nil
}

func (s *Service) GetByID(id int) (Order, error) {
	return s.repo.GetByID(id)
}

func (s *Service) ListByCustomer(customerID int) ([]Order, error) {
	return s.repo.ListByCustomer(customerID)
}

func (s *Service) List() ([]Order, error) {
	return s.repo.List()
}

func (s *Service) publish(ctx context.Context, ord Order, event StatusEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStatusEvent(ctx, ord, event); err != nil {
		// best effort only, the transition already committed
		s.log.Warn("status event publish failed",
			zap.Int("orderID", ord.OrderID), zap.String("status", string(event.Status)), zap.Error(err))
	}
}

func newOrderNumber() string {
	id := uuid.New().String()
	return "ORD-" + strings.ToUpper(id[:8])
}

package order

import (
	"errors"
	"sync"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrConflict means the guarded update saw a different status than
	// expected: another actor already transitioned the order.
	ErrConflict = errors.New("order was modified concurrently")
)

// Repository persists orders. UpdateStatus must be atomic on the expected
// status so concurrent transitions serialize server-side.
type Repository interface {
	Create(ord Order) (Order, error)
	GetByID(id int) (Order, error)
	ListByCustomer(customerID int) ([]Order, error)
	List() ([]Order, error)
	UpdateStatus(id int, expected, next Status, event StatusEvent) (Order, error)
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	nextID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Create(ord Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ord.OrderID = r.nextID
	r.nextID++
	r.orders = append(r.orders, cloneOrder(ord))
	return ord, nil
}

func (r *InMemoryRepository) GetByID(id int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ord := range r.orders {
		if ord.OrderID == id {
			return cloneOrder(ord), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) ListByCustomer(customerID int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0)
	for _, ord := range r.orders {
		if ord.Customer.CustomerID == customerID {
			out = append(out, cloneOrder(ord))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) List() ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Order, 0, len(r.orders))
	for _, ord := range r.orders {
		out = append(out, cloneOrder(ord))
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(id int, expected, next Status, event StatusEvent) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ord := range r.orders {
		if ord.OrderID != id {
			continue
		}
		if ord.Status != expected {
			return Order{}, ErrConflict
		}
		ord.Status = next
		ord.StatusHistory = append(ord.StatusHistory, event)
		ord.UpdatedAt = event.Timestamp
		r.orders[i] = cloneOrder(ord)
		return cloneOrder(ord), nil
	}
	return Order{}, ErrNotFound
}

func cloneOrder(ord Order) Order {
	items := make([]LineItem, len(ord.Items))
	copy(items, ord.Items)
	history := make([]StatusEvent, len(ord.StatusHistory))
	copy(history, ord.StatusHistory)
	ord.Items = items
	ord.StatusHistory = history
	return ord
}

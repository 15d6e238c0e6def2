package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Sessions owns one Store per browsing customer. Stores are created on first
// touch (seeded from the persisted snapshot when one exists) and torn down
// explicitly; nothing else in the codebase constructs a Store.
type Sessions struct {
	mu      sync.Mutex
	stores  map[int]*Store
	pricing PricingClient
	cache   CartCache
	log     *zap.Logger
}

func NewSessions(pricing PricingClient, cache CartCache, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		stores:  make(map[int]*Store),
		pricing: pricing,
		cache:   cache,
		log:     log,
	}
}

// Get returns the customer's store, creating it if this is the session's
// first cart touch.
func (s *Sessions) Get(ctx context.Context, customerID int) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[customerID]; ok {
		return st
	}

	st := NewStore(customerID, s.pricing, s.cache, s.log)
	if s.cache != nil {
		if snapshot, err := s.cache.Get(ctx, customerID); err == nil {
			st.Restore(*snapshot)
		} else if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("cart snapshot load failed", zap.Int("customerID", customerID), zap.Error(err))
		}
	}
	s.stores[customerID] = st
	return st
}

// End tears a session down: the in-memory store and the persisted snapshot
// both go away.
func (s *Sessions) End(ctx context.Context, customerID int) {
	s.mu.Lock()
	delete(s.stores, customerID)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, customerID); err != nil {
			s.log.Warn("cart snapshot delete failed", zap.Int("customerID", customerID), zap.Error(err))
		}
	}
}

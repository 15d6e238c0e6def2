package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Versions tracks a monotonically increasing counter per line identity.
// Every local write to a line (add, quantity change, removal, rollback)
// bumps its counter; the counters are what lets a late server response be
// told apart from an authoritative one.
type Versions map[ItemKey]uint64

func (v Versions) clone() Versions {
	out := make(Versions, len(v))
	for k, n := range v {
		out[k] = n
	}
	return out
}

type mutationKind int

const (
	mutAdd mutationKind = iota
	mutUpdate
	mutRemove
	mutPromoApply
	mutPromoRemove
)

// Mutation records everything needed to sync one optimistic write with the
// pricing service and, if that sync fails, to undo exactly this write.
// The prior line value is captured whole, not reconstructed from its key
// later, so a rollback can never restore an item under a different identity.
type Mutation struct {
	kind            mutationKind
	key             ItemKey
	prevItem        *CartItem
	prevIndex       int
	appliedVersion  uint64
	prevPromo       *string
	prevDiscount    int
	appliedPromoSeq uint64
	versions        Versions
}

func (m *Mutation) isPromo() bool {
	return m.kind == mutPromoApply || m.kind == mutPromoRemove
}

// Store is the session-scoped, optimistically-mutated cart. It is the single
// source of truth for the storefront between pricing round-trips: mutations
// land synchronously under the lock, the server quote is fetched in the
// background and merged (or rolled back) when it arrives.
type Store struct {
	mu           sync.Mutex
	cart         Cart
	versions     Versions
	promoSeq     uint64
	promoPending bool
	syncSeq      uint64
	lastApplied  uint64

	customerID int
	pricing    PricingClient
	cache      CartCache
	log        *zap.Logger
}

func NewStore(customerID int, pricing PricingClient, cache CartCache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		versions:   Versions{},
		customerID: customerID,
		pricing:    pricing,
		cache:      cache,
		log:        log,
	}
}

// Restore seeds the store from a persisted snapshot. Only used when a
// session registry re-creates a store after a restart.
func (s *Store) Restore(c Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = c.Clone()
	s.cart.Recompute()
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.IsEmpty()
}

// AddItem puts a line in the cart, merging quantity into an existing line
// with the same composite identity. A merge that would push the line past
// MaxLineQuantity is rejected whole, same as a direct over-limit add; no
// quantity is ever silently dropped. The returned Mutation must be handed
// to Sync on a background goroutine.
func (s *Store) AddItem(item CartItem) (Cart, *Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Quantity < 1 || item.Quantity > MaxLineQuantity {
		return s.cart.Clone(), nil, ErrInvalidQuantity
	}

	key := item.Key()
	m := &Mutation{kind: mutAdd, key: key}

	if idx := s.cart.indexOf(key); idx >= 0 {
		prev := s.cart.Items[idx]
		qty := prev.Quantity + item.Quantity
		if qty > MaxLineQuantity {
			return s.cart.Clone(), nil, ErrInvalidQuantity
		}
		m.prevItem = &prev
		m.prevIndex = idx
		s.cart.Items[idx].Quantity = qty
	} else {
		m.prevIndex = len(s.cart.Items)
		s.cart.Items = append(s.cart.Items, item)
	}

	s.finishItemMutation(m)
	return s.cart.Clone(), m, nil
}

// UpdateQuantity sets a line's quantity in place. Anything below 1 is
// rejected as a no-op; removal is an explicit separate action.
func (s *Store) UpdateQuantity(key ItemKey, qty int) (Cart, *Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty < 1 || qty > MaxLineQuantity {
		return s.cart.Clone(), nil, ErrInvalidQuantity
	}
	idx := s.cart.indexOf(key)
	if idx < 0 {
		return s.cart.Clone(), nil, ErrItemNotFound
	}

	prev := s.cart.Items[idx]
	m := &Mutation{kind: mutUpdate, key: key, prevItem: &prev, prevIndex: idx}
	s.cart.Items[idx].Quantity = qty

	s.finishItemMutation(m)
	return s.cart.Clone(), m, nil
}

func (s *Store) RemoveItem(key ItemKey) (Cart, *Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cart.indexOf(key)
	if idx < 0 {
		return s.cart.Clone(), nil, ErrItemNotFound
	}

	prev := s.cart.Items[idx]
	m := &Mutation{kind: mutRemove, key: key, prevItem: &prev, prevIndex: idx}
	s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)

	s.finishItemMutation(m)
	return s.cart.Clone(), m, nil
}

// ApplyPromo records a promo code optimistically. The discount amount stays
// at its current value until the server quote lands; only one application
// may be in flight at a time so an accepted discount can never stack.
func (s *Store) ApplyPromo(code string) (Cart, *Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.promoPending {
		return s.cart.Clone(), nil, ErrPromoPending
	}

	m := &Mutation{
		kind:         mutPromoApply,
		prevPromo:    s.cart.PromoCode,
		prevDiscount: s.cart.PromoDiscountCents,
	}
	codeCopy := code
	s.cart.PromoCode = &codeCopy

	s.finishPromoMutation(m)
	return s.cart.Clone(), m, nil
}

func (s *Store) RemovePromo() (Cart, *Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.promoPending {
		return s.cart.Clone(), nil, ErrPromoPending
	}
	if s.cart.PromoCode == nil {
		return s.cart.Clone(), nil, ErrNoPromo
	}

	m := &Mutation{
		kind:         mutPromoRemove,
		prevPromo:    s.cart.PromoCode,
		prevDiscount: s.cart.PromoDiscountCents,
	}
	s.cart.PromoCode = nil
	s.cart.PromoDiscountCents = 0

	s.finishPromoMutation(m)
	return s.cart.Clone(), m, nil
}

// Clear empties the cart after a confirmed order placement (or an explicit
// user action). Any in-flight sync responses are invalidated wholesale.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = Cart{}
	s.versions = Versions{}
	s.promoPending = false
	s.promoSeq++
	s.lastApplied = s.syncSeq
}

func (s *Store) finishItemMutation(m *Mutation) {
	s.versions[m.key]++
	m.appliedVersion = s.versions[m.key]
	m.versions = s.versions.clone()
	s.cart.Recompute()
}

func (s *Store) finishPromoMutation(m *Mutation) {
	s.promoSeq++
	m.appliedPromoSeq = s.promoSeq
	s.promoPending = true
	m.versions = s.versions.clone()
	s.cart.Recompute()
}

// Sync pushes the mutated cart to the pricing service and merges the
// authoritative response. On transport failure the originating mutation is
// compensated (not refetched), so unrelated concurrent edits survive.
// Runs on a background goroutine; the user never waits on it.
func (s *Store) Sync(ctx context.Context, m *Mutation) {
	if m == nil || s.pricing == nil {
		return
	}

	s.mu.Lock()
	s.syncSeq++
	seq := s.syncSeq
	snapshot := s.cart.Clone()
	s.mu.Unlock()

	server, err := s.pricing.Quote(ctx, s.customerID, snapshot)
	if err != nil {
		s.log.Warn("cart sync failed, rolling back",
			zap.Int("customerID", s.customerID), zap.Error(err))
		s.rollback(m)
		s.persist(ctx)
		return
	}

	s.applyServer(server, m.versions, seq, m)
	s.persist(ctx)
}

// Refresh reconciles against the server without a triggering mutation
// (cart page mount). Failures are logged and ignored; local state stands.
func (s *Store) Refresh(ctx context.Context) {
	if s.pricing == nil {
		return
	}

	s.mu.Lock()
	s.syncSeq++
	seq := s.syncSeq
	snapshot := s.cart.Clone()
	requested := s.versions.clone()
	s.mu.Unlock()

	server, err := s.pricing.Quote(ctx, s.customerID, snapshot)
	if err != nil {
		s.log.Warn("cart refresh failed", zap.Int("customerID", s.customerID), zap.Error(err))
		return
	}

	s.applyServer(server, requested, seq, nil)
	s.persist(ctx)
}

// applyServer merges an authoritative cart. Responses are applied in request
// order: a quote that resolves after a later quote has already been merged
// is dropped, never merged out of order.
func (s *Store) applyServer(server Cart, requested Versions, seq uint64, m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m != nil && m.isPromo() {
		s.promoPending = false
	}
	if seq <= s.lastApplied {
		return
	}
	s.lastApplied = seq

	s.cart = Reconcile(s.cart, server, requested, s.versions)
}

// rollback re-applies the inverse of a single failed mutation. If a newer
// local write has already superseded the mutated entity, the rollback is
// dropped instead of clobbering the newer edit.
func (s *Store) rollback(m *Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.kind {
	case mutAdd, mutUpdate, mutRemove:
		if s.versions[m.key] != m.appliedVersion {
			return
		}
		if idx := s.cart.indexOf(m.key); idx >= 0 {
			s.cart.Items = append(s.cart.Items[:idx], s.cart.Items[idx+1:]...)
		}
		if m.prevItem != nil {
			restored := *m.prevItem
			pos := m.prevIndex
			if pos < 0 || pos > len(s.cart.Items) {
				pos = len(s.cart.Items)
			}
			s.cart.Items = append(s.cart.Items[:pos],
				append([]CartItem{restored}, s.cart.Items[pos:]...)...)
		}
		s.versions[m.key]++
	case mutPromoApply, mutPromoRemove:
		s.promoPending = false
		if s.promoSeq != m.appliedPromoSeq {
			return
		}
		s.cart.PromoCode = m.prevPromo
		s.cart.PromoDiscountCents = m.prevDiscount
		s.promoSeq++
	}

	s.cart.Recompute()
}

func (s *Store) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}
	snapshot := s.Snapshot()
	if err := s.cache.Set(ctx, s.customerID, &snapshot); err != nil {
		s.log.Warn("cart persist failed", zap.Int("customerID", s.customerID), zap.Error(err))
	}
}

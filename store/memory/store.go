// Package memory provides an in-process store.Store. The active counts and
// the plan counter are kept as explicit fields, updated under the same lock
// as the records they count.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Plan registry
	plans       map[plan.ID]*plan.Plan
	planCounter uint64

	// Subscription index
	subscriptions map[subscription.Key]*subscription.Subscription

	// Subscriber counters
	activeCounts map[types.Principal]uint64
}

func New() *Store {
	return &Store{
		plans:         make(map[plan.ID]*plan.Plan),
		subscriptions: make(map[subscription.Key]*subscription.Subscription),
		activeCounts:  make(map[types.Principal]uint64),
	}
}

// Plan registry

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	if _, exists := s.plans[p.ID]; exists {
		return subledger.ErrAlreadyExists
	}
	cp := *p
	s.plans[p.ID] = &cp
	s.planCounter++
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID plan.ID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, subledger.ErrStoreClosed
	}
	if p, ok := s.plans[planID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, subledger.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, subledger.ErrStoreClosed
	}

	result := make([]*plan.Plan, 0)
	for _, p := range s.plans {
		if opts.Provider != "" && p.Provider != opts.Provider {
			continue
		}
		if opts.ActiveOnly && !p.Active {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SetPlanActive(_ context.Context, planID plan.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	p, exists := s.plans[planID]
	if !exists {
		return subledger.ErrPlanNotFound
	}
	p.Active = active
	p.Touch()
	return nil
}

func (s *Store) PlanCounter(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, subledger.ErrStoreClosed
	}
	return s.planCounter, nil
}

// Subscription index and subscriber counters

func (s *Store) GetSubscription(_ context.Context, key subscription.Key) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, subledger.ErrStoreClosed
	}
	if sub, ok := s.subscriptions[key]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, subledger.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, subscriber types.Principal, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, subledger.ErrStoreClosed
	}

	result := make([]*subscription.Subscription, 0)
	for key, sub := range s.subscriptions {
		if key.Subscriber != subscriber {
			continue
		}
		if opts.Status != "" && sub.Status != opts.Status {
			continue
		}
		cp := *sub
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PlanID < result[j].PlanID })

	return page(result, opts.Offset, opts.Limit), nil
}

// EnrollSubscription writes a fresh active record and counts it. An
// existing canceled record for the key is replaced.
func (s *Store) EnrollSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	key := sub.Key()
	if existing, ok := s.subscriptions[key]; ok && existing.IsActive() {
		return subledger.ErrAlreadySubscribed
	}

	cp := *sub
	s.subscriptions[key] = &cp
	s.activeCounts[sub.Subscriber]++
	return nil
}

// RecordPayment stores the advanced payment metadata of an active record.
func (s *Store) RecordPayment(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	existing, ok := s.subscriptions[sub.Key()]
	if !ok {
		return subledger.ErrSubscriptionNotFound
	}
	if !existing.IsActive() {
		return subledger.ErrSubscriptionExpired
	}
	if sub.PaymentsMade <= existing.PaymentsMade {
		return subledger.ErrInvariantViolation
	}

	existing.PaymentsMade = sub.PaymentsMade
	existing.LastPaymentMarker = sub.LastPaymentMarker
	existing.UpdatedAt = sub.UpdatedAt
	return nil
}

// CancelSubscription marks an active record canceled and uncounts it. A
// zero count is never decremented.
func (s *Store) CancelSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	existing, ok := s.subscriptions[sub.Key()]
	if !ok {
		return subledger.ErrSubscriptionNotFound
	}
	if !existing.IsActive() {
		return subledger.ErrSubscriptionExpired
	}
	if s.activeCounts[sub.Subscriber] == 0 {
		return subledger.ErrInvariantViolation
	}

	existing.Status = subscription.StatusCanceled
	existing.UpdatedAt = sub.UpdatedAt
	s.activeCounts[sub.Subscriber]--
	return nil
}

func (s *Store) ActiveCount(_ context.Context, subscriber types.Principal) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, subledger.ErrStoreClosed
	}
	return s.activeCounts[subscriber], nil
}

// Core methods

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return subledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	start := max(offset, 0)
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

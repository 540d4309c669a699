package store

import (
	"context"

	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Store is the unified storage interface for all ledger state: the plan
// registry, the subscription index, the subscriber counters and the plan
// counter. Methods are declared explicitly rather than by embedding the
// per-entity interfaces to avoid naming conflicts.
type Store interface {
	// Plan registry
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID plan.ID) (*plan.Plan, error)
	ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error)
	SetPlanActive(ctx context.Context, planID plan.ID, active bool) error
	PlanCounter(ctx context.Context) (uint64, error)

	// Subscription index and subscriber counters
	GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, subscriber types.Principal, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	EnrollSubscription(ctx context.Context, s *subscription.Subscription) error
	RecordPayment(ctx context.Context, s *subscription.Subscription) error
	CancelSubscription(ctx context.Context, s *subscription.Subscription) error
	ActiveCount(ctx context.Context, subscriber types.Principal) (uint64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

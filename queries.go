package subledger

import (
	"context"

	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Queries never fail. A missing record reads as nil or false; store errors
// are logged and read the same way.

// GetPlan returns the plan, or nil if it does not exist.
func (l *Ledger) GetPlan(ctx context.Context, planID plan.ID) *plan.Plan {
	p, err := l.store.GetPlan(ctx, planID)
	if err != nil {
		l.queryFailed("get-plan", err, "plan_id", planID)
		return nil
	}
	return p
}

// GetSubscription returns the subscription of subscriber to planID, or nil.
func (l *Ledger) GetSubscription(ctx context.Context, subscriber types.Principal, planID plan.ID) *subscription.Subscription {
	sub, err := l.store.GetSubscription(ctx, subscription.Key{Subscriber: subscriber, PlanID: planID})
	if err != nil {
		l.queryFailed("get-subscription", err, "subscriber", subscriber, "plan_id", planID)
		return nil
	}
	return sub
}

// IsSubscriptionActive reports whether a non-canceled subscription exists.
func (l *Ledger) IsSubscriptionActive(ctx context.Context, subscriber types.Principal, planID plan.ID) bool {
	sub := l.GetSubscription(ctx, subscriber, planID)
	return sub != nil && sub.IsActive()
}

// GetUserSubscriptionCount returns the number of subscriber's active
// subscriptions.
func (l *Ledger) GetUserSubscriptionCount(ctx context.Context, subscriber types.Principal) uint64 {
	n, err := l.store.ActiveCount(ctx, subscriber)
	if err != nil {
		l.queryFailed("get-user-subscription-count", err, "subscriber", subscriber)
		return 0
	}
	return n
}

// GetPlanCounter returns the number of plans ever created.
func (l *Ledger) GetPlanCounter(ctx context.Context) uint64 {
	n, err := l.store.PlanCounter(ctx)
	if err != nil {
		l.queryFailed("get-plan-counter", err)
		return 0
	}
	return n
}

// IsSubscriptionValid reports whether the subscription is active and its
// plan exists and is active.
func (l *Ledger) IsSubscriptionValid(ctx context.Context, subscriber types.Principal, planID plan.ID) bool {
	if !l.IsSubscriptionActive(ctx, subscriber, planID) {
		return false
	}
	p := l.GetPlan(ctx, planID)
	return p != nil && p.Active
}

// ListPlans returns plans matching opts, ordered by ID.
func (l *Ledger) ListPlans(ctx context.Context, opts plan.ListOpts) []*plan.Plan {
	plans, err := l.store.ListPlans(ctx, opts)
	if err != nil {
		l.queryFailed("list-plans", err, "provider", opts.Provider)
		return nil
	}
	return plans
}

// ListSubscriptions returns subscriber's subscriptions matching opts,
// ordered by plan ID.
func (l *Ledger) ListSubscriptions(ctx context.Context, subscriber types.Principal, opts subscription.ListOpts) []*subscription.Subscription {
	subs, err := l.store.ListSubscriptions(ctx, subscriber, opts)
	if err != nil {
		l.queryFailed("list-subscriptions", err, "subscriber", subscriber)
		return nil
	}
	return subs
}

func (l *Ledger) queryFailed(query string, err error, args ...any) {
	if IsNotFound(err) {
		return
	}
	l.logger.Error("query failed",
		append([]any{"query", query, "error", err}, args...)...,
	)
}

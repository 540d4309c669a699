package subledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Subscribe enrolls caller in planID and charges the first payment. A
// canceled enrollment for the same plan is replaced by a fresh record.
func (l *Ledger) Subscribe(ctx context.Context, caller types.Principal, planID plan.ID) (*subscription.Subscription, error) {
	st := &settlement{}

	l.mu.Lock()
	err := l.subscribe(ctx, st, caller, planID)
	l.mu.Unlock()

	l.settle(ctx, OpSubscribe, caller, st, err)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("subscription created",
		"subscription_id", st.sub.ID,
		"subscriber", caller,
		"plan_id", planID,
		"reference", st.pay.Reference,
	)
	l.plugins.EmitSubscriptionCreated(ctx, st.sub)
	return st.sub, nil
}

func (l *Ledger) subscribe(ctx context.Context, st *settlement, caller types.Principal, planID plan.ID) error {
	p, err := l.lookupPlan(ctx, planID)
	if err != nil {
		return err
	}
	if !p.Active {
		return fmt.Errorf("%w: %s", ErrPlanInactive, planID)
	}

	key := subscription.Key{Subscriber: caller, PlanID: planID}
	existing, err := l.store.GetSubscription(ctx, key)
	switch {
	case err == nil && existing.IsActive():
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, key)
	case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
		return fmt.Errorf("subledger: get subscription %s: %w", key, err)
	}

	sub := &subscription.Subscription{
		Entity:            types.NewEntity(),
		ID:                id.NewSubscriptionID(),
		Subscriber:        caller,
		PlanID:            planID,
		StartMarker:       subscription.BaselineMarker,
		LastPaymentMarker: subscription.BaselineMarker,
		PaymentsMade:      1,
		Status:            subscription.StatusActive,
	}

	st.pay = payment.New(payment.KindInitial, caller, p.Provider, planID, p.Price, sub.PaymentsMade)
	if err := l.charge(ctx, st.pay); err != nil {
		return err
	}

	if err := l.store.EnrollSubscription(ctx, sub); err != nil {
		l.refund(ctx, st)
		return fmt.Errorf("subledger: enroll %s: %w", key, err)
	}

	st.sub = sub
	return nil
}

// CancelSubscription cancels caller's enrollment in planID. Canceling twice
// is an error.
func (l *Ledger) CancelSubscription(ctx context.Context, caller types.Principal, planID plan.ID) error {
	l.mu.Lock()
	sub, err := l.cancelSubscription(ctx, caller, planID)
	l.mu.Unlock()

	if err != nil {
		l.reject(ctx, OpCancelSubscription, caller, err)
		return err
	}

	l.logger.Debug("subscription canceled",
		"subscription_id", sub.ID,
		"subscriber", caller,
		"plan_id", planID,
	)
	l.plugins.EmitSubscriptionCanceled(ctx, sub)
	return nil
}

func (l *Ledger) cancelSubscription(ctx context.Context, caller types.Principal, planID plan.ID) (*subscription.Subscription, error) {
	key := subscription.Key{Subscriber: caller, PlanID: planID}
	sub, err := l.lookupSubscription(ctx, key)
	if err != nil {
		return nil, err
	}
	if sub.IsCanceled() {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionExpired, key)
	}

	count, err := l.store.ActiveCount(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("subledger: read active count of %s: %w", caller, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s has an active subscription but an active count of zero", ErrInvariantViolation, caller)
	}

	next := *sub
	next.Status = subscription.StatusCanceled
	next.Touch()

	if err := l.store.CancelSubscription(ctx, &next); err != nil {
		return nil, fmt.Errorf("subledger: cancel %s: %w", key, err)
	}
	return &next, nil
}

// lookupSubscription reads a subscription and wraps store failures that
// are not a miss.
func (l *Ledger) lookupSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	sub, err := l.store.GetSubscription(ctx, key)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, key)
	case err != nil:
		return nil, fmt.Errorf("subledger: get subscription %s: %w", key, err)
	}
	return sub, nil
}

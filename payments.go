package subledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// settlement collects what a paying transition did, so plugins can be told
// after the transition lock is released.
type settlement struct {
	sub *subscription.Subscription

	// pay is set once a transfer has been attempted.
	pay *payment.Payment

	reversal    *payment.Payment
	reversalErr error
}

// ProcessPayment charges one billing cycle of planID to subscriber. Any
// invoker may trigger it; when to bill is the caller's decision.
func (l *Ledger) ProcessPayment(ctx context.Context, invoker, subscriber types.Principal, planID plan.ID) (*subscription.Subscription, error) {
	st := &settlement{}

	l.mu.Lock()
	err := l.processPayment(ctx, st, subscriber, planID)
	l.mu.Unlock()

	l.settle(ctx, OpProcessPayment, invoker, st, err)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("payment processed",
		"invoker", invoker,
		"subscriber", subscriber,
		"plan_id", planID,
		"payments_made", st.sub.PaymentsMade,
		"reference", st.pay.Reference,
	)
	return st.sub, nil
}

func (l *Ledger) processPayment(ctx context.Context, st *settlement, subscriber types.Principal, planID plan.ID) error {
	p, err := l.lookupPlan(ctx, planID)
	if err != nil {
		return err
	}
	key := subscription.Key{Subscriber: subscriber, PlanID: planID}
	sub, err := l.lookupSubscription(ctx, key)
	if err != nil {
		return err
	}
	if sub.IsCanceled() {
		return fmt.Errorf("%w: %s", ErrSubscriptionExpired, key)
	}
	if !p.Active {
		return fmt.Errorf("%w: %s", ErrPlanInactive, planID)
	}
	if sub.PaymentsMade == math.MaxUint64 {
		return fmt.Errorf("%w: payment count of %s is exhausted", ErrInvariantViolation, key)
	}

	next := *sub
	next.LastPaymentMarker = sub.PaymentsMade
	next.PaymentsMade = sub.PaymentsMade + 1
	next.Touch()

	st.pay = payment.New(payment.KindRenewal, subscriber, p.Provider, planID, p.Price, next.PaymentsMade)
	if err := l.charge(ctx, st.pay); err != nil {
		return err
	}

	if err := l.store.RecordPayment(ctx, &next); err != nil {
		l.refund(ctx, st)
		return fmt.Errorf("subledger: record payment for %s: %w", key, err)
	}

	st.sub = &next
	return nil
}

// charge asks the transferer to move pay. Any refusal becomes
// ErrPaymentFailed wrapping the transferer's error.
func (l *Ledger) charge(ctx context.Context, pay *payment.Payment) error {
	ref, err := l.transferer.Transfer(ctx, pay)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}
	pay.Reference = ref
	return nil
}

// refund returns a transfer the store failed to record. It runs even when
// ctx is already canceled.
func (l *Ledger) refund(ctx context.Context, st *settlement) {
	rev := st.pay.Reverse()
	st.reversal = rev

	ref, err := l.transferer.Transfer(context.WithoutCancel(ctx), rev)
	if err != nil {
		st.reversalErr = err
		l.logger.Error("payment reversal failed",
			"payment_id", st.pay.ID,
			"from", rev.From,
			"to", rev.To,
			"amount", rev.Amount.String(),
			"error", err,
		)
		return
	}
	rev.Reference = ref
	l.logger.Warn("payment reversed",
		"payment_id", st.pay.ID,
		"reversal_id", rev.ID,
		"reference", ref,
	)
}

// settle reports the outcome of a paying transition to plugins.
func (l *Ledger) settle(ctx context.Context, op string, caller types.Principal, st *settlement, err error) {
	if st.reversal != nil {
		l.plugins.EmitPaymentReversed(ctx, st.reversal, st.reversalErr)
	}
	if err != nil {
		if st.pay != nil && errors.Is(err, ErrPaymentFailed) {
			l.plugins.EmitPaymentFailed(ctx, st.pay, err)
		}
		l.reject(ctx, op, caller, err)
		return
	}
	l.plugins.EmitPaymentProcessed(ctx, st.pay, st.sub)
}

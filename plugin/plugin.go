// Package plugin provides an extensible plugin system for the subscription
// ledger. Plugins hook into transition events to extend functionality.
// Hooks fire after a transition has committed or been rejected; a hook
// cannot change ledger state.
package plugin

import (
	"context"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated is called when a new plan is created.
type OnPlanCreated interface {
	Plugin
	OnPlanCreated(ctx context.Context, p *plan.Plan) error
}

// OnPlanDeactivated is called when a provider deactivates a plan. It fires
// on every successful call, including repeated ones.
type OnPlanDeactivated interface {
	Plugin
	OnPlanDeactivated(ctx context.Context, p *plan.Plan) error
}

// OnPlanReactivated is called when a provider reactivates a plan.
type OnPlanReactivated interface {
	Plugin
	OnPlanReactivated(ctx context.Context, p *plan.Plan) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a subscriber enrolls in a plan.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionCanceled is called when a subscription is canceled.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed is called after a transfer has moved value and the
// ledger recorded it. It fires for enrollment and renewal payments.
type OnPaymentProcessed interface {
	Plugin
	OnPaymentProcessed(ctx context.Context, pay *payment.Payment, sub *subscription.Subscription) error
}

// OnPaymentFailed is called when the value-transfer service refuses a payment.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, pay *payment.Payment, err error) error
}

// OnPaymentReversed is called when a transfer is refunded because the ledger
// could not record it. err is non-nil when the refund itself failed.
type OnPaymentReversed interface {
	Plugin
	OnPaymentReversed(ctx context.Context, reversal *payment.Payment, err error) error
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnTransitionRejected is called when a transition fails a precondition.
// op is the transition name, such as "subscribe".
type OnTransitionRejected interface {
	Plugin
	OnTransitionRejected(ctx context.Context, op string, caller types.Principal, err error) error
}

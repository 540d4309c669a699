// Package audithook bridges subscription ledger events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnPlanCreated          = (*Extension)(nil)
	_ plugin.OnPlanDeactivated      = (*Extension)(nil)
	_ plugin.OnPlanReactivated      = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnPaymentProcessed     = (*Extension)(nil)
	_ plugin.OnPaymentFailed        = (*Extension)(nil)
	_ plugin.OnPaymentReversed      = (*Extension)(nil)
	_ plugin.OnTransitionRejected   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated implements plugin.OnPlanCreated.
func (e *Extension) OnPlanCreated(ctx context.Context, p *plan.Plan) error {
	return e.record(ctx, ActionPlanCreated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryBilling, nil,
		"provider", p.Provider.String(),
		"name", p.Name,
		"price", p.Price.Amount,
		"currency", p.Price.Currency,
		"duration", p.Duration,
	)
}

// OnPlanDeactivated implements plugin.OnPlanDeactivated.
func (e *Extension) OnPlanDeactivated(ctx context.Context, p *plan.Plan) error {
	return e.record(ctx, ActionPlanDeactivated, SeverityWarning, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryBilling, nil,
		"provider", p.Provider.String(),
	)
}

// OnPlanReactivated implements plugin.OnPlanReactivated.
func (e *Extension) OnPlanReactivated(ctx context.Context, p *plan.Plan) error {
	return e.record(ctx, ActionPlanReactivated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryBilling, nil,
		"provider", p.Provider.String(),
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber.String(),
		"plan_id", sub.PlanID.String(),
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber.String(),
		"plan_id", sub.PlanID.String(),
		"payments_made", sub.PaymentsMade,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed implements plugin.OnPaymentProcessed.
func (e *Extension) OnPaymentProcessed(ctx context.Context, pay *payment.Payment, sub *subscription.Subscription) error {
	return e.record(ctx, ActionPaymentProcessed, SeverityInfo, OutcomeSuccess,
		ResourcePayment, pay.ID.String(), CategoryPayment, nil,
		paymentFields(pay, "subscription_id", sub.ID.String())...,
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, pay *payment.Payment, err error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityWarning, OutcomeFailure,
		ResourcePayment, pay.ID.String(), CategoryPayment, err,
		paymentFields(pay)...,
	)
}

// OnPaymentReversed implements plugin.OnPaymentReversed. A failed reversal
// is critical: value moved that the ledger does not account for.
func (e *Extension) OnPaymentReversed(ctx context.Context, reversal *payment.Payment, err error) error {
	severity, outcome := SeverityWarning, OutcomeSuccess
	if err != nil {
		severity, outcome = SeverityCritical, OutcomeFailure
	}
	return e.record(ctx, ActionPaymentReversed, severity, outcome,
		ResourcePayment, reversal.ID.String(), CategoryPayment, err,
		paymentFields(reversal, "reversal_of", reversal.ReversalOf.String())...,
	)
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnTransitionRejected implements plugin.OnTransitionRejected.
func (e *Extension) OnTransitionRejected(ctx context.Context, op string, caller types.Principal, err error) error {
	category := CategoryBilling
	if subledger.KindOf(err) == subledger.KindNotAuthorized {
		category = CategoryAccess
	}
	return e.record(ctx, ActionTransitionRejected, SeverityWarning, OutcomeFailure,
		op, caller.String(), category, err,
		"op", op,
		"caller", caller.String(),
		"kind", string(subledger.KindOf(err)),
	)
}

func paymentFields(pay *payment.Payment, extra ...any) []any {
	fields := []any{
		"kind", string(pay.Kind),
		"from", pay.From.String(),
		"to", pay.To.String(),
		"plan_id", pay.PlanID.String(),
		"amount", pay.Amount.Amount,
		"currency", pay.Amount.Currency,
		"sequence", pay.Sequence,
	}
	if pay.Reference != "" {
		fields = append(fields, "reference", pay.Reference)
	}
	return append(fields, extra...)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// Package observability provides a metrics extension for the subscription
// ledger that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnPlanCreated          = (*MetricsExtension)(nil)
	_ plugin.OnPlanDeactivated      = (*MetricsExtension)(nil)
	_ plugin.OnPlanReactivated      = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnPaymentProcessed     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentReversed      = (*MetricsExtension)(nil)
	_ plugin.OnTransitionRejected   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a ledger plugin to track billing activity.
type MetricsExtension struct {
	factory MetricFactory

	// Plan metrics
	PlanCreated     Counter
	PlanDeactivated Counter
	PlanReactivated Counter

	// Subscription metrics
	SubscriptionCreated  Counter
	SubscriptionCanceled Counter

	// Payment metrics
	PaymentInitial        Counter
	PaymentRenewal        Counter
	PaymentFailed         Counter
	PaymentReversed       Counter
	PaymentReversalFailed Counter
	PaymentAmount         Histogram
	PaymentSequence       Histogram

	// Rejection metrics
	TransitionRejected Counter
	NotAuthorized      Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PlanCreated:     factory.Counter("subledger.plan.created"),
		PlanDeactivated: factory.Counter("subledger.plan.deactivated"),
		PlanReactivated: factory.Counter("subledger.plan.reactivated"),

		SubscriptionCreated:  factory.Counter("subledger.subscription.created"),
		SubscriptionCanceled: factory.Counter("subledger.subscription.canceled"),

		PaymentInitial:        factory.Counter("subledger.payment.initial"),
		PaymentRenewal:        factory.Counter("subledger.payment.renewal"),
		PaymentFailed:         factory.Counter("subledger.payment.failed"),
		PaymentReversed:       factory.Counter("subledger.payment.reversed"),
		PaymentReversalFailed: factory.Counter("subledger.payment.reversal_failed"),
		PaymentAmount:         factory.Histogram("subledger.payment.amount"),
		PaymentSequence:       factory.Histogram("subledger.payment.sequence"),

		TransitionRejected: factory.Counter("subledger.transition.rejected"),
		NotAuthorized:      factory.Counter("subledger.transition.not_authorized"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated implements plugin.OnPlanCreated.
func (m *MetricsExtension) OnPlanCreated(_ context.Context, _ *plan.Plan) error {
	m.PlanCreated.Inc()
	return nil
}

// OnPlanDeactivated implements plugin.OnPlanDeactivated.
func (m *MetricsExtension) OnPlanDeactivated(_ context.Context, _ *plan.Plan) error {
	m.PlanDeactivated.Inc()
	return nil
}

// OnPlanReactivated implements plugin.OnPlanReactivated.
func (m *MetricsExtension) OnPlanReactivated(_ context.Context, _ *plan.Plan) error {
	m.PlanReactivated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentProcessed implements plugin.OnPaymentProcessed. Both the initial
// charge and renewals arrive here.
func (m *MetricsExtension) OnPaymentProcessed(_ context.Context, pay *payment.Payment, _ *subscription.Subscription) error {
	switch pay.Kind {
	case payment.KindInitial:
		m.PaymentInitial.Inc()
	case payment.KindRenewal:
		m.PaymentRenewal.Inc()
	}
	m.PaymentAmount.Observe(float64(pay.Amount.Amount))
	m.PaymentSequence.Observe(float64(pay.Sequence))
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ *payment.Payment, _ error) error {
	m.PaymentFailed.Inc()
	return nil
}

// OnPaymentReversed implements plugin.OnPaymentReversed.
func (m *MetricsExtension) OnPaymentReversed(_ context.Context, _ *payment.Payment, err error) error {
	if err != nil {
		m.PaymentReversalFailed.Inc()
		return nil
	}
	m.PaymentReversed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Rejection hooks
// ──────────────────────────────────────────────────

// OnTransitionRejected implements plugin.OnTransitionRejected.
func (m *MetricsExtension) OnTransitionRejected(_ context.Context, _ string, _ types.Principal, err error) error {
	m.TransitionRejected.Inc()
	if subledger.KindOf(err) == subledger.KindNotAuthorized {
		m.NotAuthorized.Inc()
	}
	return nil
}

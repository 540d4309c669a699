package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onPlanCreated          []OnPlanCreated
	onPlanDeactivated      []OnPlanDeactivated
	onPlanReactivated      []OnPlanReactivated
	onSubscriptionCreated  []OnSubscriptionCreated
	onSubscriptionCanceled []OnSubscriptionCanceled
	onPaymentProcessed     []OnPaymentProcessed
	onPaymentFailed        []OnPaymentFailed
	onPaymentReversed      []OnPaymentReversed
	onTransitionRejected   []OnTransitionRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPlanCreated); ok {
		r.onPlanCreated = append(r.onPlanCreated, v)
	}
	if v, ok := p.(OnPlanDeactivated); ok {
		r.onPlanDeactivated = append(r.onPlanDeactivated, v)
	}
	if v, ok := p.(OnPlanReactivated); ok {
		r.onPlanReactivated = append(r.onPlanReactivated, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnPaymentProcessed); ok {
		r.onPaymentProcessed = append(r.onPaymentProcessed, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}
	if v, ok := p.(OnPaymentReversed); ok {
		r.onPaymentReversed = append(r.onPaymentReversed, v)
	}
	if v, ok := p.(OnTransitionRejected); ok {
		r.onTransitionRejected = append(r.onTransitionRejected, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookInterfaces = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnPlanCreated)(nil)).Elem(), "OnPlanCreated"},
	{reflect.TypeOf((*OnPlanDeactivated)(nil)).Elem(), "OnPlanDeactivated"},
	{reflect.TypeOf((*OnPlanReactivated)(nil)).Elem(), "OnPlanReactivated"},
	{reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated"},
	{reflect.TypeOf((*OnSubscriptionCanceled)(nil)).Elem(), "OnSubscriptionCanceled"},
	{reflect.TypeOf((*OnPaymentProcessed)(nil)).Elem(), "OnPaymentProcessed"},
	{reflect.TypeOf((*OnPaymentFailed)(nil)).Elem(), "OnPaymentFailed"},
	{reflect.TypeOf((*OnPaymentReversed)(nil)).Elem(), "OnPaymentReversed"},
	{reflect.TypeOf((*OnTransitionRejected)(nil)).Elem(), "OnTransitionRejected"},
}

// implementedInterfaces returns the hook interfaces implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookInterfaces {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func(ctx context.Context) error {
			return p.OnInit(ctx, ledger)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), p.OnShutdown)
	}
}

// EmitPlanCreated emits a plan created event.
func (r *Registry) EmitPlanCreated(ctx context.Context, pl *plan.Plan) {
	r.mu.RLock()
	plugins := r.onPlanCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPlanCreated", p.Name(), func(ctx context.Context) error {
			return p.OnPlanCreated(ctx, pl)
		})
	}
}

// EmitPlanDeactivated emits a plan deactivated event.
func (r *Registry) EmitPlanDeactivated(ctx context.Context, pl *plan.Plan) {
	r.mu.RLock()
	plugins := r.onPlanDeactivated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPlanDeactivated", p.Name(), func(ctx context.Context) error {
			return p.OnPlanDeactivated(ctx, pl)
		})
	}
}

// EmitPlanReactivated emits a plan reactivated event.
func (r *Registry) EmitPlanReactivated(ctx context.Context, pl *plan.Plan) {
	r.mu.RLock()
	plugins := r.onPlanReactivated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPlanReactivated", p.Name(), func(ctx context.Context) error {
			return p.OnPlanReactivated(ctx, pl)
		})
	}
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSubscriptionCreated", p.Name(), func(ctx context.Context) error {
			return p.OnSubscriptionCreated(ctx, sub)
		})
	}
}

// EmitSubscriptionCanceled emits a subscription canceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnSubscriptionCanceled", p.Name(), func(ctx context.Context) error {
			return p.OnSubscriptionCanceled(ctx, sub)
		})
	}
}

// EmitPaymentProcessed emits a payment processed event.
func (r *Registry) EmitPaymentProcessed(ctx context.Context, pay *payment.Payment, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onPaymentProcessed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentProcessed", p.Name(), func(ctx context.Context) error {
			return p.OnPaymentProcessed(ctx, pay, sub)
		})
	}
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, pay *payment.Payment, cause error) {
	r.mu.RLock()
	plugins := r.onPaymentFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentFailed", p.Name(), func(ctx context.Context) error {
			return p.OnPaymentFailed(ctx, pay, cause)
		})
	}
}

// EmitPaymentReversed emits a payment reversed event.
func (r *Registry) EmitPaymentReversed(ctx context.Context, reversal *payment.Payment, cause error) {
	r.mu.RLock()
	plugins := r.onPaymentReversed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnPaymentReversed", p.Name(), func(ctx context.Context) error {
			return p.OnPaymentReversed(ctx, reversal, cause)
		})
	}
}

// EmitTransitionRejected emits a transition rejected event.
func (r *Registry) EmitTransitionRejected(ctx context.Context, op string, caller types.Principal, cause error) {
	r.mu.RLock()
	plugins := r.onTransitionRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransitionRejected", p.Name(), func(ctx context.Context) error {
			return p.OnTransitionRejected(ctx, op, caller, cause)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, name string, fn func(context.Context) error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout runs fn with the registry timeout. A panicking hook is
// reported as an error.
func (r *Registry) callWithTimeout(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin %s panicked: %v", name, rec)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("plugin %s timed out: %w", name, ctx.Err())
	}
}

package subledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plugin"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/types"
)

// Transition names reported to plugins and logs.
const (
	OpCreatePlan         = "create-plan"
	OpDeactivatePlan     = "deactivate-plan"
	OpReactivatePlan     = "reactivate-plan"
	OpSubscribe          = "subscribe"
	OpProcessPayment     = "process-payment"
	OpCancelSubscription = "cancel-subscription"
)

// Ledger owns the plan registry, the subscription index and the counters
// behind them. Every transition runs under one lock: validation, value
// transfer and write-back complete before the next transition starts.
type Ledger struct {
	mu sync.Mutex

	store      store.Store
	transferer payment.Transferer
	plugins    *plugin.Registry
	logger     *slog.Logger

	currency string
}

// New creates a new Ledger instance. t moves value for subscribe and
// process-payment.
func New(s store.Store, t payment.Transferer, opts ...Option) *Ledger {
	l := &Ledger{
		store:      s,
		transferer: t,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		currency:   types.DefaultCurrency,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCurrency sets the single currency plans are priced in.
func WithCurrency(currency string) Option {
	return func(l *Ledger) {
		if currency != "" {
			l.currency = strings.ToLower(currency)
		}
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// Currency returns the ledger currency.
func (l *Ledger) Currency() string { return l.currency }

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("subledger: migrate: %w", err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("subledger started",
		"currency", l.currency,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Health checks store connectivity.
func (l *Ledger) Health(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// reject logs a failed transition. Precondition failures go to plugins;
// anything else is an infrastructure error.
func (l *Ledger) reject(ctx context.Context, op string, caller types.Principal, err error) {
	if IsRejection(err) {
		l.logger.Warn("transition rejected",
			"op", op,
			"caller", caller,
			"kind", KindOf(err),
			"error", err,
		)
		l.plugins.EmitTransitionRejected(ctx, op, caller, err)
		return
	}
	l.logger.Error("transition failed",
		"op", op,
		"caller", caller,
		"error", err,
	)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM. Active
// counts and the plan counter are derived from the rows.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("subledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("subledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Plan registry ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	res, err := s.pg.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subledger.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID plan.ID) (*plan.Plan, error) {
	m := new(planModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(planID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subledger.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m), nil
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.pg.NewSelect(&models)

	argIdx := 1
	if opts.Provider != "" {
		q = q.Where(fmt.Sprintf("provider = $%d", argIdx), opts.Provider.String())
		argIdx++
	}
	if opts.ActiveOnly {
		q = q.Where(fmt.Sprintf("active = $%d", argIdx), true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		result[i] = fromPlanModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetPlanActive(ctx context.Context, planID plan.ID, active bool) error {
	res, err := s.pg.NewUpdate((*planModel)(nil)).
		Set("active = $1", active).
		Set("updated_at = $2", now()).
		Where("id = $3", int64(planID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subledger.ErrPlanNotFound
	}
	return nil
}

// PlanCounter counts plan rows. Plans are never deleted.
func (s *Store) PlanCounter(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.pg.NewRaw(`SELECT COUNT(*) FROM subledger_plans`).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ==================== Subscription index ====================

func (s *Store) GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("subscriber = $1", key.Subscriber.String()).
		Where("plan_id = $2", int64(key.PlanID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subledger.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, subscriber types.Principal, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models).Where("subscriber = $1", subscriber.String())

	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("plan_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// EnrollSubscription replaces a canceled row for the key or inserts a new
// one. An active enrollment is never overwritten.
func (s *Store) EnrollSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("id = $1", m.ID).
		Set("start_marker = $2", m.StartMarker).
		Set("last_payment_marker = $3", m.LastPaymentMarker).
		Set("payments_made = $4", m.PaymentsMade).
		Set("status = $5", m.Status).
		Set("created_at = $6", m.CreatedAt).
		Set("updated_at = $7", m.UpdatedAt).
		Where("subscriber = $8", m.Subscriber).
		Where("plan_id = $9", m.PlanID).
		Where("status = $10", string(subscription.StatusCanceled)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	res, err = s.pg.NewInsert(m).
		OnConflict("(subscriber, plan_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subledger.ErrAlreadySubscribed
	}
	return nil
}

// RecordPayment advances the payment metadata of an active row, guarded
// by the previous payment count.
func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription) error {
	if sub.PaymentsMade < 2 {
		return subledger.ErrInvariantViolation
	}
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("payments_made = $1", int64(sub.PaymentsMade)).
		Set("last_payment_marker = $2", int64(sub.LastPaymentMarker)).
		Set("updated_at = $3", sub.UpdatedAt).
		Where("subscriber = $4", sub.Subscriber.String()).
		Where("plan_id = $5", int64(sub.PlanID)).
		Where("status = $6", string(subscription.StatusActive)).
		Where("payments_made = $7", int64(sub.PaymentsMade-1)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.guardFailed(ctx, sub.Key())
	}
	return nil
}

// CancelSubscription flips an active row to canceled.
func (s *Store) CancelSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("status = $1", string(subscription.StatusCanceled)).
		Set("updated_at = $2", sub.UpdatedAt).
		Where("subscriber = $3", sub.Subscriber.String()).
		Where("plan_id = $4", int64(sub.PlanID)).
		Where("status = $5", string(subscription.StatusActive)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.guardFailed(ctx, sub.Key())
	}
	return nil
}

// ActiveCount counts the subscriber's active rows.
func (s *Store) ActiveCount(ctx context.Context, subscriber types.Principal) (uint64, error) {
	var n int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM subledger_subscriptions
		WHERE subscriber = $1 AND status = $2
	`, subscriber.String(), string(subscription.StatusActive)).Scan(ctx, &n)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// guardFailed explains why a guarded update matched no row.
func (s *Store) guardFailed(ctx context.Context, key subscription.Key) error {
	current, err := s.GetSubscription(ctx, key)
	if err != nil {
		return err
	}
	if !current.IsActive() {
		return subledger.ErrSubscriptionExpired
	}
	return subledger.ErrInvariantViolation
}

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM. Active counts
// and the plan counter are derived from the rows, so they cannot drift
// from the records.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("subledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("subledger/sqlite: migration failed: %w", err)
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
	res, err := s.sdb.NewInsert(m).
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", int64(planID)).
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
	q := s.sdb.NewSelect(&models)

	if opts.Provider != "" {
		q = q.Where("provider = ?", opts.Provider.String())
	}
	if opts.ActiveOnly {
		q = q.Where("active = ?", true)
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
	res, err := s.sdb.NewUpdate((*planModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", now()).
		Where("id = ?", int64(planID)).
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
	if err := s.sdb.NewRaw(`SELECT COUNT(*) FROM subledger_plans`).Scan(ctx, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ==================== Subscription index ====================

func (s *Store) GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("subscriber = ?", key.Subscriber.String()).
		Where("plan_id = ?", int64(key.PlanID)).
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
	q := s.sdb.NewSelect(&models).Where("subscriber = ?", subscriber.String())

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
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
// one. Each statement only touches a row that is not active, so an active
// enrollment is never overwritten.
func (s *Store) EnrollSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("id = ?", m.ID).
		Set("start_marker = ?", m.StartMarker).
		Set("last_payment_marker = ?", m.LastPaymentMarker).
		Set("payments_made = ?", m.PaymentsMade).
		Set("status = ?", m.Status).
		Set("created_at = ?", m.CreatedAt).
		Set("updated_at = ?", m.UpdatedAt).
		Where("subscriber = ?", m.Subscriber).
		Where("plan_id = ?", m.PlanID).
		Where("status = ?", string(subscription.StatusCanceled)).
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

	res, err = s.sdb.NewInsert(m).
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

// RecordPayment advances the payment metadata of an active row. The
// previous count is part of the guard, so a stale write changes nothing.
func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription) error {
	if sub.PaymentsMade < 2 {
		return subledger.ErrInvariantViolation
	}
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("payments_made = ?", int64(sub.PaymentsMade)).
		Set("last_payment_marker = ?", int64(sub.LastPaymentMarker)).
		Set("updated_at = ?", sub.UpdatedAt).
		Where("subscriber = ?", sub.Subscriber.String()).
		Where("plan_id = ?", int64(sub.PlanID)).
		Where("status = ?", string(subscription.StatusActive)).
		Where("payments_made = ?", int64(sub.PaymentsMade-1)).
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
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("status = ?", string(subscription.StatusCanceled)).
		Set("updated_at = ?", sub.UpdatedAt).
		Where("subscriber = ?", sub.Subscriber.String()).
		Where("plan_id = ?", int64(sub.PlanID)).
		Where("status = ?", string(subscription.StatusActive)).
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
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM subledger_subscriptions
		WHERE subscriber = ? AND status = ?
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

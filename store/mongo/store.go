package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Collection name constants.
const (
	colPlans         = "subledger_plans"
	colSubscriptions = "subledger_subscriptions"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Active counts
// and the plan counter are document counts.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("subledger/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return subledger.ErrAlreadyExists
		}
		return fmt.Errorf("subledger/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID plan.ID) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(planID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subledger.ErrPlanNotFound
		}
		return nil, fmt.Errorf("subledger/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m), nil
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	filter := bson.M{}
	if opts.Provider != "" {
		filter["provider"] = opts.Provider.String()
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subledger/mongo: list plans: %w", err)
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		result[i] = fromPlanModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetPlanActive(ctx context.Context, planID plan.ID, active bool) error {
	res, err := s.mdb.NewUpdate((*planModel)(nil)).
		Filter(bson.M{"_id": int64(planID)}).
		Set("active", active).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subledger/mongo: set plan active: %w", err)
	}
	if res.MatchedCount() == 0 {
		return subledger.ErrPlanNotFound
	}
	return nil
}

// PlanCounter counts plan documents. Plans are never deleted.
func (s *Store) PlanCounter(ctx context.Context) (uint64, error) {
	n, err := s.mdb.Collection(colPlans).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("subledger/mongo: count plans: %w", err)
	}
	return uint64(n), nil
}

// ==================== Subscription index ====================

func (s *Store) GetSubscription(ctx context.Context, key subscription.Key) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subledger.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subledger/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, subscriber types.Principal, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{"subscriber": subscriber.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "plan_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("subledger/mongo: list subscriptions: %w", err)
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

// EnrollSubscription replaces a canceled document for the key or inserts a
// new one. The _id is the key, so a second active insert is a duplicate.
func (s *Store) EnrollSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": m.Key, "status": string(subscription.StatusCanceled)}).
		Set("record_id", m.RecordID).
		Set("start_marker", m.StartMarker).
		Set("last_payment_marker", m.LastPaymentMarker).
		Set("payments_made", m.PaymentsMade).
		Set("status", m.Status).
		Set("created_at", m.CreatedAt).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subledger/mongo: re-enroll subscription: %w", err)
	}
	if res.MatchedCount() == 1 {
		return nil
	}

	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return subledger.ErrAlreadySubscribed
		}
		return fmt.Errorf("subledger/mongo: enroll subscription: %w", err)
	}
	return nil
}

// RecordPayment advances the payment metadata of an active document,
// guarded by the previous payment count.
func (s *Store) RecordPayment(ctx context.Context, sub *subscription.Subscription) error {
	if sub.PaymentsMade < 2 {
		return subledger.ErrInvariantViolation
	}
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{
			"_id":           sub.Key().String(),
			"status":        string(subscription.StatusActive),
			"payments_made": int64(sub.PaymentsMade - 1),
		}).
		Set("payments_made", int64(sub.PaymentsMade)).
		Set("last_payment_marker", int64(sub.LastPaymentMarker)).
		Set("updated_at", sub.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subledger/mongo: record payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.guardFailed(ctx, sub.Key())
	}
	return nil
}

// CancelSubscription flips an active document to canceled.
func (s *Store) CancelSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{
			"_id":    sub.Key().String(),
			"status": string(subscription.StatusActive),
		}).
		Set("status", string(subscription.StatusCanceled)).
		Set("updated_at", sub.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("subledger/mongo: cancel subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return s.guardFailed(ctx, sub.Key())
	}
	return nil
}

// ActiveCount counts the subscriber's active documents.
func (s *Store) ActiveCount(ctx context.Context, subscriber types.Principal) (uint64, error) {
	n, err := s.mdb.Collection(colSubscriptions).CountDocuments(ctx, bson.M{
		"subscriber": subscriber.String(),
		"status":     string(subscription.StatusActive),
	})
	if err != nil {
		return 0, fmt.Errorf("subledger/mongo: count active subscriptions: %w", err)
	}
	return uint64(n), nil
}

// ==================== Helpers ====================

// guardFailed explains why a guarded update matched no document.
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPlans: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "active", Value: 1}}},
		},
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "record_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "plan_id", Value: 1}}},
		},
	}
}

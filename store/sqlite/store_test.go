package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store/sqlite"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
	"github.com/xraph/subledger/wallet"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, filepath.Join(t.TempDir(), "subledger.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}
	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func newPlan(planID plan.ID) *plan.Plan {
	return &plan.Plan{
		Entity:   types.NewEntity(),
		ID:       planID,
		Provider: "acme",
		Name:     "Pro",
		Price:    types.USD(100),
		Duration: 30,
		Active:   true,
	}
}

func newSub(subscriber types.Principal, planID plan.ID) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:       types.NewEntity(),
		ID:           id.NewSubscriptionID(),
		Subscriber:   subscriber,
		PlanID:       planID,
		PaymentsMade: 1,
		Status:       subscription.StatusActive,
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestPlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	if err := s.CreatePlan(ctx, newPlan(1)); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.CreatePlan(ctx, newPlan(1)); !errors.Is(err, subledger.ErrAlreadyExists) {
		t.Fatalf("duplicate plan: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetPlan(ctx, 1)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Provider != "acme" || !got.Price.Equal(types.USD(100)) || !got.Active {
		t.Errorf("unexpected plan: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not read back")
	}

	if err := s.SetPlanActive(ctx, 1, false); err != nil {
		t.Fatalf("SetPlanActive: %v", err)
	}
	if got, _ := s.GetPlan(ctx, 1); got.Active {
		t.Error("plan still active")
	}
	if err := s.SetPlanActive(ctx, 9, false); !errors.Is(err, subledger.ErrPlanNotFound) {
		t.Errorf("missing plan: got %v, want ErrPlanNotFound", err)
	}

	n, err := s.PlanCounter(ctx)
	if err != nil || n != 1 {
		t.Errorf("PlanCounter: got %d, %v; want 1", n, err)
	}
}

func TestSubscriptionGuards(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.CreatePlan(ctx, newPlan(1)); err != nil {
		t.Fatal(err)
	}

	sub := newSub("alice", 1)
	if err := s.EnrollSubscription(ctx, sub); err != nil {
		t.Fatalf("EnrollSubscription: %v", err)
	}
	if err := s.EnrollSubscription(ctx, newSub("alice", 1)); !errors.Is(err, subledger.ErrAlreadySubscribed) {
		t.Fatalf("second enroll: got %v, want ErrAlreadySubscribed", err)
	}

	renewed := *sub
	renewed.PaymentsMade = 2
	renewed.LastPaymentMarker = 1
	if err := s.RecordPayment(ctx, &renewed); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	// Replaying the same write finds payments_made already at 2.
	if err := s.RecordPayment(ctx, &renewed); !errors.Is(err, subledger.ErrInvariantViolation) {
		t.Fatalf("stale RecordPayment: got %v, want ErrInvariantViolation", err)
	}

	if n, _ := s.ActiveCount(ctx, "alice"); n != 1 {
		t.Fatalf("ActiveCount: got %d, want 1", n)
	}

	if err := s.CancelSubscription(ctx, &renewed); err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}
	if err := s.CancelSubscription(ctx, &renewed); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Fatalf("second cancel: got %v, want ErrSubscriptionExpired", err)
	}
	next := renewed
	next.PaymentsMade = 3
	if err := s.RecordPayment(ctx, &next); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Fatalf("payment on canceled: got %v, want ErrSubscriptionExpired", err)
	}
	if n, _ := s.ActiveCount(ctx, "alice"); n != 0 {
		t.Fatalf("ActiveCount after cancel: got %d, want 0", n)
	}

	// A canceled row is replaced by a fresh enrollment.
	fresh := newSub("alice", 1)
	if err := s.EnrollSubscription(ctx, fresh); err != nil {
		t.Fatalf("re-enroll: %v", err)
	}
	got, err := s.GetSubscription(ctx, fresh.Key())
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if got.ID.String() != fresh.ID.String() || got.PaymentsMade != 1 || !got.IsActive() {
		t.Errorf("re-enrollment not stored: %+v", got)
	}

	if _, err := s.GetSubscription(ctx, subscription.Key{Subscriber: "bob", PlanID: 1}); !errors.Is(err, subledger.ErrSubscriptionNotFound) {
		t.Errorf("missing subscription: got %v, want ErrSubscriptionNotFound", err)
	}
}

func TestLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	w := wallet.New()
	if _, err := w.Credit("alice", types.USD(1000)); err != nil {
		t.Fatal(err)
	}
	l := subledger.New(s, w)
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	planID, err := l.CreatePlan(ctx, "acme", "Pro", types.USD(100), 30)
	if err != nil || planID != 1 {
		t.Fatalf("CreatePlan: got %d, %v; want 1", planID, err)
	}
	if _, err := l.Subscribe(ctx, "alice", planID); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := l.Subscribe(ctx, "alice", planID); !errors.Is(err, subledger.ErrAlreadySubscribed) {
		t.Fatalf("second Subscribe: got %v, want ErrAlreadySubscribed", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := l.ProcessPayment(ctx, "billing-cron", "alice", planID); err != nil {
			t.Fatalf("ProcessPayment #%d: %v", i+1, err)
		}
	}

	sub := l.GetSubscription(ctx, "alice", planID)
	if sub == nil || sub.PaymentsMade != 3 {
		t.Fatalf("payments made: got %+v, want 3", sub)
	}
	if got := w.Balance("acme"); !got.Equal(types.USD(300)) {
		t.Errorf("provider balance: got %s, want $3.00", got)
	}
	if n := l.GetUserSubscriptionCount(ctx, "alice"); n != 1 {
		t.Errorf("active count: got %d, want 1", n)
	}

	if err := l.CancelSubscription(ctx, "alice", planID); err != nil {
		t.Fatalf("CancelSubscription: %v", err)
	}
	if err := l.CancelSubscription(ctx, "alice", planID); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Fatalf("second cancel: got %v, want ErrSubscriptionExpired", err)
	}
	if _, err := l.ProcessPayment(ctx, "billing-cron", "alice", planID); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Fatalf("payment after cancel: got %v, want ErrSubscriptionExpired", err)
	}
	if l.IsSubscriptionActive(ctx, "alice", planID) || l.GetUserSubscriptionCount(ctx, "alice") != 0 {
		t.Fatal("subscription still counted after cancel")
	}

	again, err := l.Subscribe(ctx, "alice", planID)
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if again.ID.String() == sub.ID.String() || again.PaymentsMade != 1 {
		t.Errorf("resubscribe reused the old record: %+v", again)
	}
	if n := l.GetUserSubscriptionCount(ctx, "alice"); n != 1 {
		t.Errorf("active count after resubscribe: got %d, want 1", n)
	}

	if err := l.DeactivatePlan(ctx, "acme", planID); err != nil {
		t.Fatalf("DeactivatePlan: %v", err)
	}
	if l.IsSubscriptionValid(ctx, "alice", planID) {
		t.Error("subscription valid on an inactive plan")
	}
	if _, err := l.ProcessPayment(ctx, "billing-cron", "alice", planID); !errors.Is(err, subledger.ErrPlanInactive) {
		t.Errorf("payment on inactive plan: got %v, want ErrPlanInactive", err)
	}
}

package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/store/memory"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

func newPlan(planID plan.ID, provider types.Principal) *plan.Plan {
	return &plan.Plan{
		Entity:   types.NewEntity(),
		ID:       planID,
		Provider: provider,
		Name:     "plan-" + planID.String(),
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

func TestPlanRegistry(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.CreatePlan(ctx, newPlan(1, "prov")); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.CreatePlan(ctx, newPlan(2, "other")); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.CreatePlan(ctx, newPlan(1, "prov")); !errors.Is(err, subledger.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	n, err := s.PlanCounter(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PlanCounter: got %d, %v; want 2", n, err)
	}

	if _, err := s.GetPlan(ctx, 99); !errors.Is(err, subledger.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
	if err := s.SetPlanActive(ctx, 99, false); !errors.Is(err, subledger.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}

	if err := s.SetPlanActive(ctx, 1, false); err != nil {
		t.Fatalf("SetPlanActive: %v", err)
	}
	got, err := s.GetPlan(ctx, 1)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Active {
		t.Error("expected plan 1 to be inactive")
	}

	// Returned records are copies.
	got.Active = true
	again, _ := s.GetPlan(ctx, 1)
	if again.Active {
		t.Error("mutating a returned plan must not change the store")
	}
}

func TestListPlans(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for i := plan.ID(1); i <= 5; i++ {
		provider := types.Principal("a")
		if i%2 == 0 {
			provider = "b"
		}
		if err := s.CreatePlan(ctx, newPlan(i, provider)); err != nil {
			t.Fatalf("CreatePlan: %v", err)
		}
	}
	_ = s.SetPlanActive(ctx, 3, false)

	tests := []struct {
		name string
		opts plan.ListOpts
		want []plan.ID
	}{
		{"all", plan.ListOpts{}, []plan.ID{1, 2, 3, 4, 5}},
		{"provider", plan.ListOpts{Provider: "a"}, []plan.ID{1, 3, 5}},
		{"active provider", plan.ListOpts{Provider: "a", ActiveOnly: true}, []plan.ID{1, 5}},
		{"paged", plan.ListOpts{Limit: 2, Offset: 1}, []plan.ID{2, 3}},
		{"offset past end", plan.ListOpts{Offset: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := s.ListPlans(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListPlans: %v", err)
			}
			if len(plans) != len(tt.want) {
				t.Fatalf("got %d plans, want %d", len(plans), len(tt.want))
			}
			for i, p := range plans {
				if p.ID != tt.want[i] {
					t.Errorf("plans[%d]: got %s, want %s", i, p.ID, tt.want[i])
				}
			}
		})
	}
}

func TestEnrollAndCancelKeepCountsInStep(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.EnrollSubscription(ctx, newSub("alice", 1)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := s.EnrollSubscription(ctx, newSub("alice", 2)); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if err := s.EnrollSubscription(ctx, newSub("alice", 1)); !errors.Is(err, subledger.ErrAlreadySubscribed) {
		t.Errorf("expected ErrAlreadySubscribed, got %v", err)
	}

	if n, _ := s.ActiveCount(ctx, "alice"); n != 2 {
		t.Fatalf("ActiveCount: got %d, want 2", n)
	}

	sub, err := s.GetSubscription(ctx, subscription.Key{Subscriber: "alice", PlanID: 1})
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if err := s.CancelSubscription(ctx, sub); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.CancelSubscription(ctx, sub); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Errorf("expected ErrSubscriptionExpired, got %v", err)
	}
	if n, _ := s.ActiveCount(ctx, "alice"); n != 1 {
		t.Fatalf("ActiveCount: got %d, want 1", n)
	}

	// Re-enrollment replaces the canceled record.
	fresh := newSub("alice", 1)
	if err := s.EnrollSubscription(ctx, fresh); err != nil {
		t.Fatalf("re-Enroll: %v", err)
	}
	got, _ := s.GetSubscription(ctx, fresh.Key())
	if got.ID != fresh.ID || !got.IsActive() {
		t.Errorf("expected fresh active record, got %+v", got)
	}
	if n, _ := s.ActiveCount(ctx, "alice"); n != 2 {
		t.Fatalf("ActiveCount: got %d, want 2", n)
	}

	active, err := s.ListSubscriptions(ctx, "alice", subscription.ListOpts{Status: subscription.StatusActive})
	if err != nil || len(active) != 2 {
		t.Fatalf("ListSubscriptions: got %d, %v; want 2", len(active), err)
	}
	if active[0].PlanID != 1 || active[1].PlanID != 2 {
		t.Errorf("expected plan order 1, 2; got %s, %s", active[0].PlanID, active[1].PlanID)
	}
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	sub := newSub("alice", 1)
	_ = s.EnrollSubscription(ctx, sub)

	next := *sub
	next.LastPaymentMarker = 1
	next.PaymentsMade = 2
	if err := s.RecordPayment(ctx, &next); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	got, _ := s.GetSubscription(ctx, sub.Key())
	if got.PaymentsMade != 2 || got.LastPaymentMarker != 1 {
		t.Errorf("unexpected payment metadata: %+v", got)
	}

	// payments-made never goes backwards
	stale := *sub
	if err := s.RecordPayment(ctx, &stale); !errors.Is(err, subledger.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}

	missing := newSub("bob", 1)
	if err := s.RecordPayment(ctx, missing); !errors.Is(err, subledger.ErrSubscriptionNotFound) {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}

	_ = s.CancelSubscription(ctx, got)
	next.PaymentsMade = 3
	if err := s.RecordPayment(ctx, &next); !errors.Is(err, subledger.ErrSubscriptionExpired) {
		t.Errorf("expected ErrSubscriptionExpired, got %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, subledger.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.CreatePlan(ctx, newPlan(1, "p")); !errors.Is(err, subledger.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

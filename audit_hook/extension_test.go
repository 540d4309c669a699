package audithook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/subledger"
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

type captured struct {
	events []*AuditEvent
}

func (c *captured) recorder() Recorder {
	return RecorderFunc(func(_ context.Context, evt *AuditEvent) error {
		c.events = append(c.events, evt)
		return nil
	})
}

func (c *captured) last(t *testing.T) *AuditEvent {
	t.Helper()
	if len(c.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return c.events[len(c.events)-1]
}

func testPlan() *plan.Plan {
	return &plan.Plan{
		ID:       3,
		Provider: "acme",
		Name:     "pro",
		Price:    types.USD(1500),
		Duration: 30,
		Active:   true,
	}
}

func TestPlanAndSubscriptionEvents(t *testing.T) {
	ctx := context.Background()
	c := &captured{}
	ext := New(c.recorder())

	if err := ext.OnPlanCreated(ctx, testPlan()); err != nil {
		t.Fatal(err)
	}
	evt := c.last(t)
	if evt.Action != ActionPlanCreated || evt.Resource != ResourcePlan || evt.ResourceID != "3" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Metadata["provider"] != "acme" || evt.Metadata["price"] != int64(1500) {
		t.Fatalf("unexpected metadata %v", evt.Metadata)
	}

	sub := &subscription.Subscription{
		ID:           id.NewSubscriptionID(),
		Subscriber:   "alice",
		PlanID:       3,
		PaymentsMade: 1,
		Status:       subscription.StatusActive,
	}
	if err := ext.OnSubscriptionCreated(ctx, sub); err != nil {
		t.Fatal(err)
	}
	evt = c.last(t)
	if evt.Action != ActionSubscriptionCreated || evt.ResourceID != sub.ID.String() {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Outcome != OutcomeSuccess || evt.Reason != "" {
		t.Fatalf("expected clean success, got %+v", evt)
	}
}

func TestPaymentEvents(t *testing.T) {
	ctx := context.Background()
	c := &captured{}
	ext := New(c.recorder())

	pay := payment.New(payment.KindRenewal, "alice", "acme", 3, types.USD(1500), 2)
	pay.Reference = "wallet-7"

	if err := ext.OnPaymentFailed(ctx, pay, subledger.ErrPaymentFailed); err != nil {
		t.Fatal(err)
	}
	evt := c.last(t)
	if evt.Outcome != OutcomeFailure || evt.Reason != subledger.ErrPaymentFailed.Error() {
		t.Fatalf("unexpected failure event %+v", evt)
	}
	if evt.Metadata["reference"] != "wallet-7" || evt.Metadata["sequence"] != uint64(2) {
		t.Fatalf("unexpected metadata %v", evt.Metadata)
	}

	reversal := pay.Reverse()
	tests := []struct {
		name     string
		err      error
		severity string
		outcome  string
	}{
		{"refunded", nil, SeverityWarning, OutcomeSuccess},
		{"refund failed", errors.New("wallet offline"), SeverityCritical, OutcomeFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ext.OnPaymentReversed(ctx, reversal, tt.err); err != nil {
				t.Fatal(err)
			}
			evt := c.last(t)
			if evt.Severity != tt.severity || evt.Outcome != tt.outcome {
				t.Fatalf("got severity=%s outcome=%s", evt.Severity, evt.Outcome)
			}
			if evt.Metadata["reversal_of"] != pay.ID.String() {
				t.Fatalf("reversal_of = %v, want %s", evt.Metadata["reversal_of"], pay.ID)
			}
		})
	}
}

func TestTransitionRejectedCategory(t *testing.T) {
	ctx := context.Background()
	c := &captured{}
	ext := New(c.recorder())

	tests := []struct {
		err      error
		category string
	}{
		{subledger.ErrNotAuthorized, CategoryAccess},
		{fmt.Errorf("plan 9: %w", subledger.ErrPlanNotFound), CategoryBilling},
	}
	for _, tt := range tests {
		if err := ext.OnTransitionRejected(ctx, subledger.OpDeactivatePlan, "mallory", tt.err); err != nil {
			t.Fatal(err)
		}
		evt := c.last(t)
		if evt.Category != tt.category {
			t.Errorf("%v: category = %s, want %s", tt.err, evt.Category, tt.category)
		}
		if evt.Resource != subledger.OpDeactivatePlan || evt.ResourceID != "mallory" {
			t.Errorf("unexpected resource %s/%s", evt.Resource, evt.ResourceID)
		}
	}
}

func TestActionFiltering(t *testing.T) {
	ctx := context.Background()

	c := &captured{}
	ext := New(c.recorder(), WithEnabledActions(ActionPlanDeactivated))
	_ = ext.OnPlanCreated(ctx, testPlan())
	_ = ext.OnPlanDeactivated(ctx, testPlan())
	if len(c.events) != 1 || c.events[0].Action != ActionPlanDeactivated {
		t.Fatalf("enabled filter: got %d events", len(c.events))
	}

	c = &captured{}
	ext = New(c.recorder(), WithDisabledActions(ActionPlanCreated))
	_ = ext.OnPlanCreated(ctx, testPlan())
	_ = ext.OnPlanReactivated(ctx, testPlan())
	if len(c.events) != 1 || c.events[0].Action != ActionPlanReactivated {
		t.Fatalf("disabled filter: got %d events", len(c.events))
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("audit backend down")
	}))
	if err := ext.OnPlanCreated(context.Background(), testPlan()); err != nil {
		t.Fatalf("recorder failure must not surface, got %v", err)
	}
}

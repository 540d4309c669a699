package subledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/types"
)

// CreatePlan registers a plan owned by caller and returns its identifier.
// Identifiers are sequential from 1. An empty price currency means the
// ledger currency.
func (l *Ledger) CreatePlan(ctx context.Context, caller types.Principal, name string, price types.Money, duration int64) (plan.ID, error) {
	l.mu.Lock()
	p, err := l.createPlan(ctx, caller, name, price, duration)
	l.mu.Unlock()

	if err != nil {
		l.reject(ctx, OpCreatePlan, caller, err)
		return 0, err
	}

	l.logger.Debug("plan created",
		"plan_id", p.ID,
		"provider", caller,
		"price", p.Price.String(),
		"duration", duration,
	)
	l.plugins.EmitPlanCreated(ctx, p)
	return p.ID, nil
}

func (l *Ledger) createPlan(ctx context.Context, caller types.Principal, name string, price types.Money, duration int64) (*plan.Plan, error) {
	if price.Currency == "" {
		price.Currency = l.currency
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidAmount, price.Amount)
	}
	if !price.SameCurrency(types.Zero(l.currency)) {
		return nil, fmt.Errorf("%w: price currency %q, ledger currency %q", ErrInvalidAmount, price.Currency, l.currency)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidDuration, duration)
	}

	counter, err := l.store.PlanCounter(ctx)
	if err != nil {
		return nil, fmt.Errorf("subledger: read plan counter: %w", err)
	}

	p := &plan.Plan{
		Entity:   types.NewEntity(),
		ID:       plan.ID(counter + 1),
		Provider: caller,
		Name:     name,
		Price:    types.New(price.Amount, l.currency),
		Duration: duration,
		Active:   true,
	}

	if err := l.store.CreatePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("subledger: create plan %s: %w", p.ID, err)
	}
	return p, nil
}

// DeactivatePlan stops new enrollments and payments on a plan. Only the
// provider may call it; repeated calls succeed without emitting events.
func (l *Ledger) DeactivatePlan(ctx context.Context, caller types.Principal, planID plan.ID) error {
	p, changed, err := l.togglePlan(ctx, OpDeactivatePlan, caller, planID, false)
	if err != nil || !changed {
		return err
	}
	l.plugins.EmitPlanDeactivated(ctx, p)
	return nil
}

// ReactivatePlan reopens a plan for enrollments and payments. Only the
// provider may call it; repeated calls succeed without emitting events.
func (l *Ledger) ReactivatePlan(ctx context.Context, caller types.Principal, planID plan.ID) error {
	p, changed, err := l.togglePlan(ctx, OpReactivatePlan, caller, planID, true)
	if err != nil || !changed {
		return err
	}
	l.plugins.EmitPlanReactivated(ctx, p)
	return nil
}

// togglePlan reports whether the active flag actually flipped.
func (l *Ledger) togglePlan(ctx context.Context, op string, caller types.Principal, planID plan.ID, active bool) (*plan.Plan, bool, error) {
	l.mu.Lock()
	p, changed, err := l.setPlanActive(ctx, caller, planID, active)
	l.mu.Unlock()

	if err != nil {
		l.reject(ctx, op, caller, err)
		return nil, false, err
	}

	l.logger.Debug("plan toggled",
		"op", op,
		"plan_id", planID,
		"active", active,
		"changed", changed,
	)
	return p, changed, nil
}

func (l *Ledger) setPlanActive(ctx context.Context, caller types.Principal, planID plan.ID, active bool) (*plan.Plan, bool, error) {
	p, err := l.lookupPlan(ctx, planID)
	if err != nil {
		return nil, false, err
	}
	if !p.OwnedBy(caller) {
		return nil, false, fmt.Errorf("%w: %s is not the provider of plan %s", ErrNotAuthorized, caller, planID)
	}
	if p.Active == active {
		return p, false, nil
	}

	if err := l.store.SetPlanActive(ctx, planID, active); err != nil {
		return nil, false, fmt.Errorf("subledger: update plan %s: %w", planID, err)
	}
	p.Active = active
	p.Touch()
	return p, true, nil
}

// lookupPlan reads a plan and wraps store failures that are not a miss.
func (l *Ledger) lookupPlan(ctx context.Context, planID plan.ID) (*plan.Plan, error) {
	p, err := l.store.GetPlan(ctx, planID)
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	case err != nil:
		return nil, fmt.Errorf("subledger: get plan %s: %w", planID, err)
	}
	return p, nil
}

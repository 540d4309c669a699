package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:subledger_plans"`

	ID          int64     `grove:"id,pk"`
	Provider    string    `grove:"provider"`
	Name        string    `grove:"name"`
	PriceAmount int64     `grove:"price_amount"`
	Currency    string    `grove:"currency"`
	Duration    int64     `grove:"duration"`
	Active      bool      `grove:"active"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:          int64(p.ID),
		Provider:    p.Provider.String(),
		Name:        p.Name,
		PriceAmount: p.Price.Amount,
		Currency:    p.Price.Currency,
		Duration:    p.Duration,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) *plan.Plan {
	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       plan.ID(m.ID),
		Provider: types.Principal(m.Provider),
		Name:     m.Name,
		Price:    types.New(m.PriceAmount, m.Currency),
		Duration: m.Duration,
		Active:   m.Active,
	}
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:subledger_subscriptions"`

	ID                string    `grove:"id,pk"`
	Subscriber        string    `grove:"subscriber"`
	PlanID            int64     `grove:"plan_id"`
	StartMarker       int64     `grove:"start_marker"`
	LastPaymentMarker int64     `grove:"last_payment_marker"`
	PaymentsMade      int64     `grove:"payments_made"`
	Status            string    `grove:"status"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                s.ID.String(),
		Subscriber:        s.Subscriber.String(),
		PlanID:            int64(s.PlanID),
		StartMarker:       int64(s.StartMarker),
		LastPaymentMarker: int64(s.LastPaymentMarker),
		PaymentsMade:      int64(s.PaymentsMade),
		Status:            string(s.Status),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                subID,
		Subscriber:        types.Principal(m.Subscriber),
		PlanID:            plan.ID(m.PlanID),
		StartMarker:       uint64(m.StartMarker),
		LastPaymentMarker: uint64(m.LastPaymentMarker),
		PaymentsMade:      uint64(m.PaymentsMade),
		Status:            subscription.Status(m.Status),
	}, nil
}

package subscription

import (
	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// BaselineMarker is the start and last-payment marker of a fresh enrollment.
const BaselineMarker uint64 = 0

// Key identifies a subscription: at most one record exists per key.
type Key struct {
	Subscriber types.Principal `json:"subscriber"`
	PlanID     plan.ID         `json:"plan_id"`
}

func (k Key) String() string {
	return k.Subscriber.String() + "/" + k.PlanID.String()
}

// Subscription is a subscriber's enrollment against one plan.
//
// StartMarker and LastPaymentMarker are opaque sequencing metadata, not
// timestamps. PaymentsMade starts at 1 (the enrollment payment) and never
// decreases. A canceled record is never reactivated; enrolling again
// replaces it with a fresh record under a new ID.
type Subscription struct {
	types.Entity
	ID                id.SubscriptionID `json:"id"`
	Subscriber        types.Principal   `json:"subscriber"`
	PlanID            plan.ID           `json:"plan_id"`
	StartMarker       uint64            `json:"start_marker"`
	LastPaymentMarker uint64            `json:"last_payment_marker"`
	PaymentsMade      uint64            `json:"payments_made"`
	Status            Status            `json:"status"`
}

// Key returns the record's identity.
func (s *Subscription) Key() Key {
	return Key{Subscriber: s.Subscriber, PlanID: s.PlanID}
}

// IsActive reports whether the subscription has not been canceled.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsCanceled reports whether the subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

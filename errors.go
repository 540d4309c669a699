package subledger

import (
	"errors"
)

// Sentinel errors, one per failure kind a transition can report.
var (
	ErrNotAuthorized        = errors.New("subledger: not authorized")
	ErrPlanNotFound         = errors.New("subledger: plan not found")
	ErrSubscriptionNotFound = errors.New("subledger: subscription not found")
	ErrAlreadySubscribed    = errors.New("subledger: already subscribed")
	ErrPaymentFailed        = errors.New("subledger: payment failed")
	ErrInvalidAmount        = errors.New("subledger: invalid amount")
	ErrInvalidDuration      = errors.New("subledger: invalid duration")
	ErrSubscriptionExpired  = errors.New("subledger: subscription expired")
	ErrPlanInactive         = errors.New("subledger: plan inactive")
)

// Infrastructure errors. These never come from a caller's precondition.
var (
	ErrInvariantViolation = errors.New("subledger: invariant violation")
	ErrAlreadyExists      = errors.New("subledger: already exists")
	ErrStoreClosed        = errors.New("subledger: store is closed")
)

// Kind classifies a transition failure.
type Kind string

const (
	KindNone                 Kind = ""
	KindNotAuthorized        Kind = "not_authorized"
	KindPlanNotFound         Kind = "plan_not_found"
	KindSubscriptionNotFound Kind = "subscription_not_found"
	KindAlreadySubscribed    Kind = "already_subscribed"
	KindPaymentFailed        Kind = "payment_failed"
	KindInvalidAmount        Kind = "invalid_amount"
	KindInvalidDuration      Kind = "invalid_duration"
	KindSubscriptionExpired  Kind = "subscription_expired"
	KindPlanInactive         Kind = "plan_inactive"
	KindInvariantViolation   Kind = "invariant_violation"
	KindInternal             Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotAuthorized, KindNotAuthorized},
	{ErrPlanNotFound, KindPlanNotFound},
	{ErrSubscriptionNotFound, KindSubscriptionNotFound},
	{ErrAlreadySubscribed, KindAlreadySubscribed},
	{ErrPaymentFailed, KindPaymentFailed},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidDuration, KindInvalidDuration},
	{ErrSubscriptionExpired, KindSubscriptionExpired},
	{ErrPlanInactive, KindPlanInactive},
	{ErrInvariantViolation, KindInvariantViolation},
}

// KindOf returns the failure kind of err. It returns KindNone for a nil
// error and KindInternal for errors outside the ledger taxonomy, such as
// store failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound)
}

// IsRejection reports whether err is a precondition failure reported to the
// caller, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindNone, KindInternal, KindInvariantViolation:
		return false
	default:
		return true
	}
}

// IsRetryable returns true if the error is temporary and the caller may
// retry the transition. The ledger itself never retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPaymentFailed) ||
		errors.Is(err, ErrStoreClosed)
}

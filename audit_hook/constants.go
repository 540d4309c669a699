package audithook

// Action constants for audit events.
const (
	// Plan actions
	ActionPlanCreated     = "plan.created"
	ActionPlanDeactivated = "plan.deactivated"
	ActionPlanReactivated = "plan.reactivated"

	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionCanceled = "subscription.canceled"

	// Payment actions
	ActionPaymentProcessed = "payment.processed"
	ActionPaymentFailed    = "payment.failed"
	ActionPaymentReversed  = "payment.reversed"

	// Rejections
	ActionTransitionRejected = "transition.rejected"
)

// Resource constants for audit events.
const (
	ResourcePlan         = "plan"
	ResourceSubscription = "subscription"
	ResourcePayment      = "payment"
)

// Category constants for audit events.
const (
	CategoryBilling      = "billing"
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryAccess       = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

package subledger

import (
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/subscription"
	"github.com/xraph/subledger/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Principal is re-exported from types package.
type Principal = types.Principal

// PlanID is re-exported from plan package.
type PlanID = plan.ID

// SubscriptionKey is re-exported from subscription package.
type SubscriptionKey = subscription.Key

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	JPY  = types.JPY
	Zero = types.Zero
)

package plan

import (
	"strconv"

	"github.com/xraph/subledger/types"
)

// ID is a plan identifier. Identifiers are assigned sequentially by the
// ledger starting at 1; zero never names a plan.
type ID uint64

// String returns the decimal form of the identifier.
func (i ID) String() string { return strconv.FormatUint(uint64(i), 10) }

// Parse parses a decimal plan identifier.
func Parse(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Plan is a provider-defined offering with a price and billing duration.
// Price and Duration are fixed at creation; only Active is ever toggled.
type Plan struct {
	types.Entity
	ID       ID              `json:"id"`
	Provider types.Principal `json:"provider"`
	Name     string          `json:"name"`
	Price    types.Money     `json:"price"`
	Duration int64           `json:"duration"` // abstract billing units
	Active   bool            `json:"active"`
}

// OwnedBy reports whether p is the plan's provider.
func (p *Plan) OwnedBy(principal types.Principal) bool {
	return p.Provider == principal
}

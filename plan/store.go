package plan

import "github.com/xraph/subledger/types"

// ListOpts filters and pages plan listings. Results are ordered by ID.
type ListOpts struct {
	Provider   types.Principal
	ActiveOnly bool
	Limit      int
	Offset     int
}

package subscription

// ListOpts filters and pages a subscriber's subscriptions. Results are
// ordered by plan ID.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}

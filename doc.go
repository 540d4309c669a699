// Package subledger provides a recurring-billing subscription ledger for Go
// applications.
//
// Subledger is designed as a library, not a service. The ledger state is
// the source of truth and changes only through six transitions:
//
//   - CreatePlan registers a plan owned by the caller
//   - DeactivatePlan and ReactivatePlan toggle a plan (provider only)
//   - Subscribe enrolls the caller and charges the first payment
//   - ProcessPayment charges one billing cycle
//   - CancelSubscription cancels the caller's enrollment
//
// Each transition validates, transfers value and writes back as one unit.
// A failed check or a refused transfer leaves the ledger untouched. There
// are no retries and no background workers; when to bill is decided by the
// caller of ProcessPayment.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/subledger"
//	    "github.com/xraph/subledger/store/memory"
//	    "github.com/xraph/subledger/wallet"
//	)
//
//	w := wallet.New()
//	l := subledger.New(memory.New(), w)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	planID, err := l.CreatePlan(ctx, "acme", "Pro", subledger.USD(4900), 30)
//	sub, err := l.Subscribe(ctx, "alice", planID)
//	sub, err = l.ProcessPayment(ctx, "scheduler", "alice", planID)
//	err = l.CancelSubscription(ctx, "alice", planID)
//
// # Errors
//
// Every failed transition returns exactly one of the sentinel errors in
// this package, possibly wrapped. Use errors.Is or KindOf to inspect it.
// Queries never fail: a missing record reads as nil, zero or false.
//
// # Stores
//
// The store package defines the persistence contract. Implementations live
// in store/memory, store/sqlite, store/postgres and store/mongo.
//
// # Identifiers
//
// Plans use sequential integer IDs starting at 1. Subscription records and
// payments use TypeIDs:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41  // Subscription ID
//	pay_01h455vb4pex5vsknk084sn02q  // Payment ID
//
// All monetary amounts are integers in the smallest currency unit.
package subledger

package payment

import (
	"time"

	"github.com/xraph/subledger/id"
	"github.com/xraph/subledger/plan"
	"github.com/xraph/subledger/types"
)

type Kind string

const (
	KindInitial  Kind = "initial"  // charged by subscribe
	KindRenewal  Kind = "renewal"  // charged by process-payment
	KindReversal Kind = "reversal" // refund of a transfer whose ledger write failed
)

// Payment is one value transfer requested by the ledger.
type Payment struct {
	ID         id.PaymentID    `json:"id"`
	Kind       Kind            `json:"kind"`
	From       types.Principal `json:"from"`
	To         types.Principal `json:"to"`
	PlanID     plan.ID         `json:"plan_id"`
	Amount     types.Money     `json:"amount"`
	Sequence   uint64          `json:"sequence"` // payments-made count after this payment
	Reference  string          `json:"reference,omitempty"`
	ReversalOf id.PaymentID    `json:"reversal_of,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// New builds a payment of amount from one principal to another.
func New(kind Kind, from, to types.Principal, planID plan.ID, amount types.Money, sequence uint64) *Payment {
	return &Payment{
		ID:        id.NewPaymentID(),
		Kind:      kind,
		From:      from,
		To:        to,
		PlanID:    planID,
		Amount:    amount,
		Sequence:  sequence,
		CreatedAt: time.Now().UTC(),
	}
}

// Reverse returns the refund of p: same amount, parties swapped.
func (p *Payment) Reverse() *Payment {
	r := New(KindReversal, p.To, p.From, p.PlanID, p.Amount, p.Sequence)
	r.ReversalOf = p.ID
	return r
}

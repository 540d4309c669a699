package payment

import (
	"context"
	"errors"
)

// ErrDeclined is returned by transferers that refuse a transfer without a
// more specific reason.
var ErrDeclined = errors.New("payment: transfer declined")

// Transferer moves value between principals. A nil error means the full
// amount moved; any error means nothing moved. The returned reference is
// recorded on the payment.
type Transferer interface {
	Transfer(ctx context.Context, p *Payment) (reference string, err error)
}

// TransfererFunc is an adapter to use a plain function as a Transferer.
type TransfererFunc func(ctx context.Context, p *Payment) (string, error)

// Transfer implements Transferer.
func (f TransfererFunc) Transfer(ctx context.Context, p *Payment) (string, error) {
	return f(ctx, p)
}

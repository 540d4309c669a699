// Package wallet provides an in-memory value-transfer service.
//
// A Wallet holds single-currency balances per principal and implements
// payment.Transferer: a transfer either moves the full amount or fails
// without touching any balance.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/types"
)

var (
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrCurrencyMismatch  = types.ErrCurrencyMismatch
	ErrInvalidAmount     = errors.New("wallet: amount must be greater than zero")
	ErrOverflow          = types.ErrMoneyOverflow
)

// compile-time interface check
var _ payment.Transferer = (*Wallet)(nil)

// Wallet is an in-memory balance book.
type Wallet struct {
	mu             sync.Mutex
	currency       string
	balances       map[types.Principal]types.Money
	journal        []payment.Payment
	allowOverdraft bool
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithCurrency sets the wallet currency (default "usd").
func WithCurrency(currency string) Option {
	return func(w *Wallet) { w.currency = strings.ToLower(currency) }
}

// WithOverdraft lets balances go negative.
func WithOverdraft() Option {
	return func(w *Wallet) { w.allowOverdraft = true }
}

// New creates an empty wallet.
func New(opts ...Option) *Wallet {
	w := &Wallet{
		currency: types.DefaultCurrency,
		balances: make(map[types.Principal]types.Money),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Currency returns the wallet currency.
func (w *Wallet) Currency() string { return w.currency }

// Credit adds funds to a principal's balance.
func (w *Wallet) Credit(p types.Principal, amount types.Money) (types.Money, error) {
	if err := w.checkAmount(amount); err != nil {
		return types.Money{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := w.balance(p).Add(w.normalize(amount))
	if err != nil {
		return types.Money{}, err
	}
	w.balances[p] = next
	return next, nil
}

// Balance returns a principal's balance; zero if never credited.
func (w *Wallet) Balance(p types.Principal) types.Money {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance(p)
}

// Transfer implements payment.Transferer. A transfer to oneself only checks
// funds; balances stay as they are.
func (w *Wallet) Transfer(ctx context.Context, p *payment.Payment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := w.checkAmount(p.Amount); err != nil {
		return "", err
	}
	amount := w.normalize(p.Amount)

	w.mu.Lock()
	defer w.mu.Unlock()

	from, err := w.balance(p.From).Subtract(amount)
	if err != nil {
		return "", err
	}
	if !w.allowOverdraft && from.IsNegative() {
		return "", fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds,
			p.From, w.balance(p.From), p.Amount)
	}

	if p.From != p.To {
		to, err := w.balance(p.To).Add(amount)
		if err != nil {
			return "", err
		}
		w.balances[p.From] = from
		w.balances[p.To] = to
	}

	w.journal = append(w.journal, *p)
	return fmt.Sprintf("wallet:%d", len(w.journal)), nil
}

// Journal returns a copy of every completed transfer in order.
func (w *Wallet) Journal() []payment.Payment {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := make([]payment.Payment, len(w.journal))
	copy(result, w.journal)
	return result
}

func (w *Wallet) balance(p types.Principal) types.Money {
	if b, ok := w.balances[p]; ok {
		return b
	}
	return types.Zero(w.currency)
}

// normalize stamps the wallet currency on an amount that carries none.
func (w *Wallet) normalize(amount types.Money) types.Money {
	return types.New(amount.Amount, w.currency)
}

func (w *Wallet) checkAmount(amount types.Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Currency != "" && !amount.SameCurrency(types.Zero(w.currency)) {
		return fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, amount.Currency, w.currency)
	}
	return nil
}

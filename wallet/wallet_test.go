package wallet_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/xraph/subledger/payment"
	"github.com/xraph/subledger/types"
	"github.com/xraph/subledger/wallet"
)

func TestCreditAndBalance(t *testing.T) {
	w := wallet.New()

	if got := w.Balance("alice"); !got.Equal(types.USD(0)) {
		t.Fatalf("expected zero balance, got %v", got)
	}

	bal, err := w.Credit("alice", types.USD(500))
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !bal.Equal(types.USD(500)) {
		t.Errorf("Credit returned %v, want %v", bal, types.USD(500))
	}
	if got := w.Balance("alice"); !got.Equal(types.USD(500)) {
		t.Errorf("Balance: got %v, want %v", got, types.USD(500))
	}
}

func TestCreditRejectsBadAmounts(t *testing.T) {
	w := wallet.New()

	tests := []struct {
		name   string
		amount types.Money
		want   error
	}{
		{"zero", types.USD(0), wallet.ErrInvalidAmount},
		{"negative", types.USD(-1), wallet.ErrInvalidAmount},
		{"other currency", types.EUR(10), wallet.ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.Credit("alice", tt.amount); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreditOverflow(t *testing.T) {
	w := wallet.New()
	if _, err := w.Credit("alice", types.USD(math.MaxInt64)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := w.Credit("alice", types.USD(1)); !errors.Is(err, wallet.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestTransferMovesFunds(t *testing.T) {
	ctx := context.Background()
	w := wallet.New()
	if _, err := w.Credit("alice", types.USD(300)); err != nil {
		t.Fatal(err)
	}

	p := payment.New(payment.KindInitial, "alice", "acme", 1, types.USD(100), 1)
	ref, err := w.Transfer(ctx, p)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if ref == "" {
		t.Error("expected a transfer reference")
	}

	if got := w.Balance("alice"); !got.Equal(types.USD(200)) {
		t.Errorf("alice: got %v, want %v", got, types.USD(200))
	}
	if got := w.Balance("acme"); !got.Equal(types.USD(100)) {
		t.Errorf("acme: got %v, want %v", got, types.USD(100))
	}
	if n := len(w.Journal()); n != 1 {
		t.Errorf("journal: got %d entries, want 1", n)
	}
}

func TestTransferInsufficientFundsLeavesBalances(t *testing.T) {
	ctx := context.Background()
	w := wallet.New()
	if _, err := w.Credit("alice", types.USD(50)); err != nil {
		t.Fatal(err)
	}

	p := payment.New(payment.KindRenewal, "alice", "acme", 1, types.USD(100), 2)
	if _, err := w.Transfer(ctx, p); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := w.Balance("alice"); !got.Equal(types.USD(50)) {
		t.Errorf("alice: got %v, want %v", got, types.USD(50))
	}
	if got := w.Balance("acme"); !got.Equal(types.USD(0)) {
		t.Errorf("acme: got %v, want zero", got)
	}
	if n := len(w.Journal()); n != 0 {
		t.Errorf("journal: got %d entries, want 0", n)
	}
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	ctx := context.Background()
	w := wallet.New()
	if _, err := w.Credit("acme", types.USD(100)); err != nil {
		t.Fatal(err)
	}

	p := payment.New(payment.KindInitial, "acme", "acme", 1, types.USD(100), 1)
	if _, err := w.Transfer(ctx, p); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := w.Balance("acme"); !got.Equal(types.USD(100)) {
		t.Errorf("acme: got %v, want %v", got, types.USD(100))
	}
	if n := len(w.Journal()); n != 1 {
		t.Errorf("journal: got %d entries, want 1", n)
	}

	// The funds check still applies to oneself.
	p = payment.New(payment.KindRenewal, "acme", "acme", 1, types.USD(150), 2)
	if _, err := w.Transfer(ctx, p); !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := w.Balance("acme"); !got.Equal(types.USD(100)) {
		t.Errorf("acme after failed transfer: got %v, want %v", got, types.USD(100))
	}
}

func TestTransferOverflowLeavesBalances(t *testing.T) {
	ctx := context.Background()
	w := wallet.New()
	if _, err := w.Credit("alice", types.USD(10)); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Credit("acme", types.USD(math.MaxInt64)); err != nil {
		t.Fatal(err)
	}

	p := payment.New(payment.KindInitial, "alice", "acme", 1, types.USD(10), 1)
	if _, err := w.Transfer(ctx, p); !errors.Is(err, wallet.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if got := w.Balance("alice"); !got.Equal(types.USD(10)) {
		t.Errorf("alice: got %v, want %v", got, types.USD(10))
	}
}

func TestTransferWithOverdraft(t *testing.T) {
	w := wallet.New(wallet.WithOverdraft())
	p := payment.New(payment.KindInitial, "alice", "acme", 1, types.USD(100), 1)
	if _, err := w.Transfer(context.Background(), p); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := w.Balance("alice"); !got.Equal(types.USD(-100)) {
		t.Errorf("alice: got %v, want %v", got, types.USD(-100))
	}
}

func TestTransferCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := wallet.New(wallet.WithOverdraft())
	p := payment.New(payment.KindInitial, "alice", "acme", 1, types.USD(100), 1)
	if _, err := w.Transfer(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWalletCurrency(t *testing.T) {
	w := wallet.New(wallet.WithCurrency("EUR"))
	if w.Currency() != "eur" {
		t.Errorf("Currency: got %q, want eur", w.Currency())
	}
	if _, err := w.Credit("alice", types.EUR(10)); err != nil {
		t.Errorf("Credit in wallet currency failed: %v", err)
	}
}

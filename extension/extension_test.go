package extension

import (
	"testing"
	"time"

	"github.com/xraph/subledger/store/memory"
	"github.com/xraph/subledger/wallet"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{})
	if cfg.Currency != "usd" || cfg.HookTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	cfg = mergeWithDefaults(Config{Currency: "eur", HookTimeout: time.Second})
	if cfg.Currency != "eur" || cfg.HookTimeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name string
		yaml Config
		prog Config
		want Config
	}{
		{
			name: "yaml wins",
			yaml: Config{Currency: "gbp", HookTimeout: 2 * time.Second},
			prog: Config{Currency: "eur", HookTimeout: time.Second},
			want: Config{Currency: "gbp", HookTimeout: 2 * time.Second},
		},
		{
			name: "programmatic fills gaps",
			yaml: Config{},
			prog: Config{Currency: "eur", DisableMigrate: true},
			want: Config{Currency: "eur", HookTimeout: 5 * time.Second, DisableMigrate: true},
		},
		{
			name: "defaults last",
			yaml: Config{DisableMigrate: true},
			prog: Config{},
			want: Config{Currency: "usd", HookTimeout: 5 * time.Second, DisableMigrate: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mergeConfigurations(tt.yaml, tt.prog); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	s := memory.New()
	w := wallet.New()
	e := New(
		WithStore(s),
		WithTransferer(w),
		WithCurrency("jpy"),
		WithHookTimeout(time.Second),
		WithDisableMigrate(),
		WithRequireConfig(true),
	)

	if e.store != s || e.transferer != w {
		t.Fatal("store or transferer not applied")
	}
	want := Config{Currency: "jpy", HookTimeout: time.Second, DisableMigrate: true, RequireConfig: true}
	if e.config != want {
		t.Fatalf("config = %+v, want %+v", e.config, want)
	}
	if e.Engine() != nil {
		t.Fatal("engine must be nil before Register")
	}
	if got := len(e.buildLedgerOpts()); got != 2 {
		t.Fatalf("buildLedgerOpts returned %d options, want 2", got)
	}
}

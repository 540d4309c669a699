package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the subscription ledger
// store (SQLite).
var Migrations = migrate.NewGroup("subledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_subledger_plans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subledger_plans (
    id           INTEGER PRIMARY KEY,
    provider     TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    price_amount INTEGER NOT NULL CHECK (price_amount > 0),
    currency     TEXT NOT NULL DEFAULT 'usd',
    duration     INTEGER NOT NULL CHECK (duration > 0),
    active       INTEGER NOT NULL DEFAULT 1,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_subledger_plans_provider ON subledger_plans (provider, active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subledger_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_subledger_subscriptions",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subledger_subscriptions (
    id                  TEXT PRIMARY KEY,
    subscriber          TEXT NOT NULL,
    plan_id             INTEGER NOT NULL REFERENCES subledger_plans (id),
    start_marker        INTEGER NOT NULL DEFAULT 0,
    last_payment_marker INTEGER NOT NULL DEFAULT 0,
    payments_made       INTEGER NOT NULL DEFAULT 1 CHECK (payments_made >= 1),
    status              TEXT NOT NULL DEFAULT 'active',
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subledger_subs_key ON subledger_subscriptions (subscriber, plan_id);
CREATE INDEX IF NOT EXISTS idx_subledger_subs_active ON subledger_subscriptions (subscriber, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS subledger_subscriptions`)
				return err
			},
		},
	)
}

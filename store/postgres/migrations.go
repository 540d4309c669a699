package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the subscription ledger
// store (PostgreSQL).
var Migrations = migrate.NewGroup("subledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_subledger_plans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subledger_plans (
    id           BIGINT PRIMARY KEY,
    provider     TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    price_amount BIGINT NOT NULL CHECK (price_amount > 0),
    currency     TEXT NOT NULL DEFAULT 'usd',
    duration     BIGINT NOT NULL CHECK (duration > 0),
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    plan_id             BIGINT NOT NULL REFERENCES subledger_plans (id),
    start_marker        BIGINT NOT NULL DEFAULT 0,
    last_payment_marker BIGINT NOT NULL DEFAULT 0,
    payments_made       BIGINT NOT NULL DEFAULT 1 CHECK (payments_made >= 1),
    status              TEXT NOT NULL DEFAULT 'active',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_subledger_subs_key ON subledger_subscriptions (subscriber, plan_id);
CREATE INDEX IF NOT EXISTS idx_subledger_subs_active ON subledger_subscriptions (subscriber) WHERE status = 'active';
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

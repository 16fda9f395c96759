package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tariwatch/tariwatch/internal/config"
)

// schema creates the three core tables. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	token TEXT UNIQUE,
	photo TEXT,
	discord_enabled BOOLEAN NOT NULL DEFAULT true,
	discord_webhook_url TEXT,
	last_discord_notification TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scores (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	total_score BIGINT NOT NULL DEFAULT 0,
	gems BIGINT NOT NULL DEFAULT 0,
	shells BIGINT NOT NULL DEFAULT 0,
	hammers BIGINT NOT NULL DEFAULT 0,
	yat_holding BIGINT NOT NULL DEFAULT 0,
	followers BIGINT NOT NULL DEFAULT 0,
	rank TEXT
);

CREATE INDEX IF NOT EXISTS idx_scores_user_time ON scores (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
	id INT PRIMARY KEY CHECK (id = 1),
	tari_api_url TEXT NOT NULL,
	fetch_interval INT,
	fetch_interval_min INT,
	fetch_interval_max INT,
	discord_notification_interval INT
);
`

// backfills bring rows created by older deployments up to the current shape.
// Older settings rows carried a single fetch_interval column; it seeds both
// interval bounds when the newer columns are absent.
var backfills = []string{
	"ALTER TABLE users ADD COLUMN IF NOT EXISTS discord_webhook_url TEXT",
	"ALTER TABLE users ADD COLUMN IF NOT EXISTS last_discord_notification TIMESTAMPTZ",
	"ALTER TABLE settings ADD COLUMN IF NOT EXISTS fetch_interval_min INT",
	"ALTER TABLE settings ADD COLUMN IF NOT EXISTS fetch_interval_max INT",
	"ALTER TABLE settings ADD COLUMN IF NOT EXISTS discord_notification_interval INT",
	`UPDATE settings SET
		fetch_interval_min = COALESCE(fetch_interval_min, fetch_interval, 240),
		fetch_interval_max = COALESCE(fetch_interval_max, fetch_interval, 300),
		discord_notification_interval = COALESCE(discord_notification_interval, 300)
		WHERE id = 1`,
}

// initSchema creates tables, applies column backfills, and seeds the settings
// singleton from process configuration. Runs on a dedicated connection so the
// pool's prepared statements always see a complete schema.
func initSchema(ctx context.Context, cfg *config.Config) error {
	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	for _, stmt := range backfills {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
	}

	// Seed or refresh the settings row. The upstream URL is only written on
	// first boot; interval values follow the environment on every start.
	_, err = conn.Exec(ctx, `
		INSERT INTO settings (id, tari_api_url, fetch_interval_min, fetch_interval_max, discord_notification_interval)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			fetch_interval_min = EXCLUDED.fetch_interval_min,
			fetch_interval_max = EXCLUDED.fetch_interval_max,
			discord_notification_interval = EXCLUDED.discord_notification_interval`,
		cfg.TariAPIURL, cfg.FetchIntervalMin, cfg.FetchIntervalMax, cfg.NotificationInterval,
	)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

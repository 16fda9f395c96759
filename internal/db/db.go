// Package db provides a pgxpool-based connection pool with schema
// initialization, prepared statement registration, and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tariwatch/tariwatch/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New initializes the schema and creates a validated connection pool.
// Schema init runs on a dedicated connection before the pool is built so
// that prepared statement registration never races table creation.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if err := initSchema(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API and polling
// layers use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	const snapshotCols = "id, user_id, created_at, total_score, gems, shells, hammers, yat_holding, followers, rank"
	const userCols = "id, name, token, photo, discord_enabled, discord_webhook_url, last_discord_notification"

	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Users
		"list_users":            "SELECT id, name, photo, discord_enabled FROM users ORDER BY id",
		"list_users_with_token": "SELECT " + userCols + " FROM users WHERE token IS NOT NULL ORDER BY id",
		"user_by_id":            "SELECT " + userCols + " FROM users WHERE id = $1",
		"user_by_token":         "SELECT " + userCols + " FROM users WHERE token = $1",
		"insert_user":           "INSERT INTO users (name, token, photo, discord_enabled) VALUES ($1, $2, $3, true) RETURNING id",
		"update_user_discord": `UPDATE users SET
			discord_enabled = COALESCE($2, discord_enabled),
			discord_webhook_url = COALESCE($3, discord_webhook_url)
			WHERE id = $1`,
		"update_last_notified": "UPDATE users SET last_discord_notification = $2 WHERE id = $1",
		"clear_user_token":     "UPDATE users SET token = NULL WHERE id = $1",
		"delete_user_scores":   "DELETE FROM scores WHERE user_id = $1",
		"delete_user":          "DELETE FROM users WHERE id = $1",

		// Score snapshots
		"insert_snapshot": `INSERT INTO scores
			(user_id, total_score, gems, shells, hammers, yat_holding, followers, rank)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
		"recent_snapshots": "SELECT " + snapshotCols + " FROM scores WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		"snapshots_since":  "SELECT " + snapshotCols + " FROM scores WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at ASC, id ASC",
		"snapshots_all":    "SELECT " + snapshotCols + " FROM scores WHERE user_id = $1 ORDER BY created_at ASC, id ASC",
		"first_snapshot":   "SELECT " + snapshotCols + " FROM scores WHERE user_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1",
		"user_stats": `SELECT
			COALESCE(MAX(total_score), 0),
			COALESCE(MAX(gems), 0),
			COALESCE(MAX(shells), 0),
			COALESCE(MAX(hammers), 0),
			COALESCE(MAX(yat_holding), 0),
			COALESCE(MAX(followers), 0),
			MIN(rank::bigint) FILTER (WHERE rank ~ '^[0-9]+$' AND rank::bigint > 0),
			COUNT(*)
			FROM scores WHERE user_id = $1`,

		// Settings singleton
		"get_settings": `SELECT tari_api_url, fetch_interval_min, fetch_interval_max,
			discord_notification_interval FROM settings WHERE id = 1`,
		"save_settings": `UPDATE settings SET tari_api_url = $1, fetch_interval_min = $2,
			fetch_interval_max = $3, discord_notification_interval = $4 WHERE id = 1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

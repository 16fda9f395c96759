// Package store provides the relational persistence surface for users,
// score snapshots, and the settings singleton. Queries run through prepared
// statements registered in the db package.
package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store executes all application queries against the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// User is a registered account identified by its upstream access token.
// Token is nil after a soft delete; score history is retained.
type User struct {
	ID                      int64
	Name                    string
	Token                   *string
	Photo                   *string
	DiscordEnabled          bool
	DiscordWebhookURL       *string
	LastDiscordNotification *time.Time
}

// UserSummary is the reduced shape returned by user listings.
type UserSummary struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Photo          *string `json:"photo"`
	DiscordEnabled bool    `json:"discord_enabled"`
}

// Snapshot is one immutable point-in-time record of a user's score metrics.
// CreatedAt is assigned by the database, never by the caller.
type Snapshot struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CreatedAt  time.Time `json:"timestamp"`
	TotalScore int64     `json:"total_score"`
	Gems       int64     `json:"gems"`
	Shells     int64     `json:"shells"`
	Hammers    int64     `json:"hammers"`
	YatHolding int64     `json:"yat_holding"`
	Followers  int64     `json:"followers"`
	Rank       *string   `json:"rank"`
}

// Settings is the process-wide singleton consulted on every fetch cycle.
type Settings struct {
	TariAPIURL                  string `json:"tari_api_url"`
	FetchIntervalMin            int    `json:"fetch_interval_min"`
	FetchIntervalMax            int    `json:"fetch_interval_max"`
	DiscordNotificationInterval int    `json:"discord_notification_interval"`
}

// UserStats aggregates a user's historical highs.
type UserStats struct {
	HighScore     int64  `json:"highScore"`
	HighGems      int64  `json:"highGems"`
	HighShells    int64  `json:"highShells"`
	HighHammers   int64  `json:"highHammers"`
	HighYat       int64  `json:"highYat"`
	HighFollowers int64  `json:"highFollowers"`
	BestRank      *int64 `json:"bestRank"`
	TotalRecords  int64  `json:"totalRecords"`
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/tariwatch/tariwatch/internal/config"
)

// GetSettings returns the settings singleton, or ErrNotFound when the row
// is absent.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	var st Settings
	err := s.pool.QueryRow(ctx, "get_settings").Scan(
		&st.TariAPIURL, &st.FetchIntervalMin, &st.FetchIntervalMax,
		&st.DiscordNotificationInterval,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

// SaveSettings overwrites the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	if _, err := s.pool.Exec(ctx, "save_settings",
		st.TariAPIURL, st.FetchIntervalMin, st.FetchIntervalMax,
		st.DiscordNotificationInterval,
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Resolver
// --------------------------------------------------------------------------

// SettingsLoader supplies the current runtime settings. Injected into the
// scheduler and notification gate so tests can swap settings deterministically.
type SettingsLoader interface {
	Load(ctx context.Context) Settings
}

// Resolver re-reads the settings singleton on every call — never cached —
// so administrative changes take effect on the next tick without a restart.
// When the row is missing or unreadable it synthesizes an in-memory default
// from process configuration.
type Resolver struct {
	store    *Store
	defaults Settings
	logger   *slog.Logger
}

// NewResolver builds a resolver with fallback defaults taken from config.
func NewResolver(s *Store, cfg *config.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store: s,
		defaults: Settings{
			TariAPIURL:                  cfg.TariAPIURL,
			FetchIntervalMin:            cfg.FetchIntervalMin,
			FetchIntervalMax:            cfg.FetchIntervalMax,
			DiscordNotificationInterval: cfg.NotificationInterval,
		},
		logger: logger,
	}
}

// Load returns the persisted settings, falling back to defaults. Always
// produces a usable value.
func (r *Resolver) Load(ctx context.Context) Settings {
	st, err := r.store.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("settings read failed, using defaults", "error", err)
		}
		return r.defaults
	}
	return *st
}

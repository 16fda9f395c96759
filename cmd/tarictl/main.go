// Command tarictl is the Tari Score Monitor administrative CLI.
//
// Usage:
//
//	tarictl cycle
//	tarictl fetch --user 3
//	tarictl notify --user 3
//	tarictl register --token <upstream-token>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tariwatch/tariwatch/internal/config"
	"github.com/tariwatch/tariwatch/internal/db"
	"github.com/tariwatch/tariwatch/internal/notify"
	"github.com/tariwatch/tariwatch/internal/poller"
	"github.com/tariwatch/tariwatch/internal/store"
	"github.com/tariwatch/tariwatch/internal/tari"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "tarictl",
		Short: "Tari Score Monitor administrative CLI",
	}

	root.AddCommand(cycleCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(notifyCmd())
	root.AddCommand(registerCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func cycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one full fetch cycle over all registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, d *deps) error {
				result := d.scheduler.RunCycle(ctx)
				logger.Info("Cycle finished", "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Warn("cycle error", "error", e)
				}
				return nil
			})
		},
	}
}

func fetchCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Force an immediate fetch+store for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, d *deps) error {
				snap, err := d.scheduler.ForceFetch(ctx, userID)
				if err != nil {
					return err
				}
				logger.Info("Snapshot stored",
					"user_id", userID,
					"total_score", snap.TotalScore,
					"at", snap.CreatedAt)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func notifyCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Force a Discord notification attempt, bypassing the interval throttle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, d *deps) error {
				user, err := d.store.GetUser(ctx, userID)
				if err != nil {
					return err
				}
				recent, err := d.store.RecentSnapshots(ctx, userID, 2)
				if err != nil {
					return err
				}
				if len(recent) < 2 {
					return fmt.Errorf("not enough score data (minimum 2 records needed)")
				}
				result := d.gate.Notify(ctx, *user, recent[0], recent[1], d.resolver.Load(ctx), true)
				logger.Info("Notification attempt", "status", result.Status, "message", result.Message)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func registerCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user from an upstream access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(func(ctx context.Context, d *deps) error {
				settings := d.resolver.Load(ctx)
				rec, err := d.client.FetchDetails(ctx, settings.TariAPIURL, token)
				if err != nil {
					return fmt.Errorf("validate token: %w", err)
				}
				id, err := d.store.CreateUser(ctx, rec.Username, token, rec.Avatar)
				if err != nil {
					return err
				}
				if _, err := d.store.InsertSnapshot(ctx, id, rec); err != nil {
					return err
				}
				logger.Info("User registered", "id", id, "name", rec.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "upstream access token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

type deps struct {
	store     *store.Store
	resolver  *store.Resolver
	client    *tari.Client
	gate      *notify.Gate
	scheduler *poller.Scheduler
}

// withDeps loads config, connects the pool, and runs fn with wired components.
func withDeps(fn func(ctx context.Context, d *deps) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool.Pool)
	resolver := store.NewResolver(st, cfg, logger)
	client := tari.NewClient(cfg.UpstreamRatePerMinute, logger)
	gate := notify.NewGate(st, notify.NewWebhookSender(), nil, logger)

	return fn(ctx, &deps{
		store:     st,
		resolver:  resolver,
		client:    client,
		gate:      gate,
		scheduler: poller.New(st, client, gate, resolver, nil, logger),
	})
}

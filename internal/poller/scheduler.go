// Package poller runs the self-rescheduling fetch cycle: on each tick it
// fetches every registered user's current score, stores a snapshot, and
// evaluates the notification gate, then arms a one-shot timer with a
// randomized delay for the next cycle.
//
// Users are processed sequentially, one HTTP call in flight at a time, as a
// deliberate backpressure policy toward the upstream API. Settings are
// re-read every cycle so administrative changes apply on the next tick.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tariwatch/tariwatch/internal/metrics"
	"github.com/tariwatch/tariwatch/internal/notify"
	"github.com/tariwatch/tariwatch/internal/store"
	"github.com/tariwatch/tariwatch/internal/tari"
)

// Warm-up bounds for the first tick after process start, avoiding
// synchronized load immediately at boot.
const (
	warmupMin = 10 * time.Second
	warmupMax = 20 * time.Second
)

// Store is the persistence surface the scheduler consumes.
type Store interface {
	ListUsersWithToken(ctx context.Context) ([]store.User, error)
	GetUser(ctx context.Context, id int64) (*store.User, error)
	InsertSnapshot(ctx context.Context, userID int64, rec tari.Record) (*store.Snapshot, error)
	RecentSnapshots(ctx context.Context, userID int64, limit int) ([]store.Snapshot, error)
}

// Fetcher retrieves a user's current score record from the upstream API.
type Fetcher interface {
	FetchDetails(ctx context.Context, apiURL, token string) (tari.Record, error)
}

// Notifier evaluates the notification gate for a detected score change.
type Notifier interface {
	Notify(ctx context.Context, user store.User, current, previous store.Snapshot, settings store.Settings, forced bool) notify.Result
}

// Scheduler drives the perpetual fetch loop.
type Scheduler struct {
	store    Store
	fetcher  Fetcher
	gate     Notifier
	settings store.SettingsLoader
	clock    clockwork.Clock
	logger   *slog.Logger
}

// New creates a scheduler. A nil clock defaults to the real clock.
func New(s Store, fetcher Fetcher, gate Notifier, settings store.SettingsLoader, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		fetcher:  fetcher,
		gate:     gate,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. Intended to be called with `go`.
// Each completed cycle arms exactly one timer for the next; there is never
// more than one cycle in flight.
func (s *Scheduler) Run(ctx context.Context) {
	warmup := warmupMin + time.Duration(rand.Int63n(int64(warmupMax-warmupMin+1)))
	s.logger.Info("Fetch scheduler started", "first_cycle_in", warmup.Round(time.Second))

	timer := s.clock.NewTimer(warmup)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Fetch scheduler stopped")
			return
		case <-timer.Chan():
		}

		result := s.RunCycle(ctx)
		s.logger.Info("Fetch cycle complete", "summary", result.Summary())

		delay := s.nextDelay(ctx)
		s.logger.Info("Next fetch scheduled", "in", delay)
		timer.Reset(delay)
	}
}

// RunCycle performs one full pass over all registered users with a non-null
// token. Per-user failures are logged and collected; the cycle always
// proceeds to the next user.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	start := s.clock.Now()
	var result CycleResult

	s.logger.Info("Fetching user scores...")

	users, err := s.store.ListUsersWithToken(ctx)
	if err != nil {
		result.AddError(fmt.Sprintf("list users: %v", err))
		result.Duration = s.clock.Since(start)
		return result
	}

	settings := s.settings.Load(ctx)

	for _, user := range users {
		outcome := s.processUser(ctx, user, settings)
		result.Outcomes = append(result.Outcomes, outcome)
		result.UsersProcessed++

		if outcome.Error != "" {
			result.UsersFailed++
			result.AddError(fmt.Sprintf("user %s: %s", user.Name, outcome.Error))
			continue
		}
		result.SnapshotsInserted++
		if outcome.Notification == notify.StatusSent {
			result.NotificationsSent++
		}
	}

	result.Duration = s.clock.Since(start)
	metrics.CyclesTotal.Inc()
	metrics.CycleDuration.Observe(result.Duration.Seconds())
	return result
}

// processUser fetches, stores, and evaluates notification for a single user.
func (s *Scheduler) processUser(ctx context.Context, user store.User, settings store.Settings) UserOutcome {
	outcome := UserOutcome{UserID: user.ID, Name: user.Name}

	rec, err := s.fetcher.FetchDetails(ctx, settings.TariAPIURL, deref(user.Token))
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Error processing user", "user", user.Name, "error", err)
		outcome.Error = err.Error()
		return outcome
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()

	if _, err := s.store.InsertSnapshot(ctx, user.ID, rec); err != nil {
		s.logger.Error("Error storing snapshot", "user", user.Name, "error", err)
		outcome.Error = err.Error()
		return outcome
	}
	metrics.SnapshotsInserted.Inc()

	latest, err := s.store.RecentSnapshots(ctx, user.ID, 2)
	if err != nil {
		s.logger.Error("Error reading recent snapshots", "user", user.Name, "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	// Automatic notifications trigger only on a total_score delta between
	// the two latest snapshots.
	if len(latest) > 1 && latest[0].TotalScore != latest[1].TotalScore {
		outcome.ScoreChanged = true
		res := s.gate.Notify(ctx, user, latest[0], latest[1], settings, false)
		outcome.Notification = res.Status
		metrics.NotificationsTotal.WithLabelValues(string(res.Status)).Inc()
	}

	return outcome
}

// ForceFetch performs an immediate fetch+store for one user, outside the
// regular cycle. The user must still hold a token.
func (s *Scheduler) ForceFetch(ctx context.Context, userID int64) (*store.Snapshot, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Token == nil || *user.Token == "" {
		return nil, fmt.Errorf("user %s has no token", user.Name)
	}

	settings := s.settings.Load(ctx)
	rec, err := s.fetcher.FetchDetails(ctx, settings.TariAPIURL, *user.Token)
	if err != nil {
		return nil, fmt.Errorf("fetch for %s: %w", user.Name, err)
	}

	snap, err := s.store.InsertSnapshot(ctx, user.ID, rec)
	if err != nil {
		return nil, err
	}
	metrics.SnapshotsInserted.Inc()
	return snap, nil
}

// nextDelay computes a uniformly random whole-second delay within the
// configured inclusive bounds. A misconfigured max below min is clamped
// to min rather than crashing.
func (s *Scheduler) nextDelay(ctx context.Context) time.Duration {
	settings := s.settings.Load(ctx)

	min := settings.FetchIntervalMin
	max := settings.FetchIntervalMax
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	secs := min + rand.Intn(max-min+1)
	return time.Duration(secs) * time.Second
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

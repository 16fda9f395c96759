package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tariwatch/tariwatch/internal/notify"
	"github.com/tariwatch/tariwatch/internal/store"
	"github.com/tariwatch/tariwatch/internal/tari"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// memStore is an in-memory store covering the scheduler's persistence surface.
type memStore struct {
	mu           sync.Mutex
	users        []store.User
	snaps        map[int64][]store.Snapshot
	nextSnapID   int64
	clockTick    int64
	insertErrFor map[int64]error
	lastNotified map[int64]time.Time
}

func newMemStore(users ...store.User) *memStore {
	return &memStore{
		users:        users,
		snaps:        make(map[int64][]store.Snapshot),
		insertErrFor: make(map[int64]error),
		lastNotified: make(map[int64]time.Time),
	}
}

func (m *memStore) ListUsersWithToken(context.Context) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.User
	for _, u := range m.users {
		if u.Token != nil && *u.Token != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) InsertSnapshot(_ context.Context, userID int64, rec tari.Record) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErrFor[userID]; err != nil {
		return nil, err
	}
	m.nextSnapID++
	m.clockTick++
	snap := store.Snapshot{
		ID:         m.nextSnapID,
		UserID:     userID,
		CreatedAt:  time.Unix(m.clockTick, 0),
		TotalScore: rec.TotalScore,
		Gems:       rec.Gems,
		Shells:     rec.Shells,
		Hammers:    rec.Hammers,
		YatHolding: rec.YatHolding,
		Followers:  rec.Followers,
		Rank:       rec.Rank,
	}
	m.snaps[userID] = append(m.snaps[userID], snap)
	return &snap, nil
}

func (m *memStore) RecentSnapshots(_ context.Context, userID int64, limit int) ([]store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.snaps[userID]
	var out []store.Snapshot
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *memStore) SetLastNotified(_ context.Context, userID int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastNotified[userID] = t
	return nil
}

// scriptedFetcher returns successive records per token.
type scriptedFetcher struct {
	mu      sync.Mutex
	records map[string][]tari.Record
	errFor  map[string]error
	calls   int
}

func (f *scriptedFetcher) FetchDetails(_ context.Context, _ string, token string) (tari.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errFor[token]; err != nil {
		return tari.Record{}, err
	}
	script := f.records[token]
	if len(script) == 0 {
		return tari.Record{}, fmt.Errorf("no scripted record for token %q", token)
	}
	rec := script[0]
	if len(script) > 1 {
		f.records[token] = script[1:]
	}
	return rec, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type gateCall struct {
	user     store.User
	current  store.Snapshot
	previous store.Snapshot
	forced   bool
}

type fakeGate struct {
	mu     sync.Mutex
	result notify.Result
	calls  []gateCall
}

func (g *fakeGate) Notify(_ context.Context, user store.User, current, previous store.Snapshot, _ store.Settings, forced bool) notify.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gateCall{user, current, previous, forced})
	return g.result
}

// staticSettings is a SettingsLoader returning a fixed value.
type staticSettings store.Settings

func (s staticSettings) Load(context.Context) store.Settings { return store.Settings(s) }

func tokenUser(id int64, name, token string) store.User {
	return store.User{ID: id, Name: name, Token: &token}
}

func defaultSettings() staticSettings {
	return staticSettings{
		TariAPIURL:       "https://airdrop.example/api",
		FetchIntervalMin: 240,
		FetchIntervalMax: 300,
	}
}

// --------------------------------------------------------------------------
// Cycle tests
// --------------------------------------------------------------------------

func TestRunCycle_PartialFailureIsolation(t *testing.T) {
	st := newMemStore(
		tokenUser(1, "alice", "tok-a"),
		tokenUser(2, "bob", "tok-b"),
		tokenUser(3, "carol", "tok-c"),
	)
	fetcher := &scriptedFetcher{
		records: map[string][]tari.Record{
			"tok-a": {{Username: "alice", TotalScore: 10}},
			"tok-c": {{Username: "carol", TotalScore: 30}},
		},
		errFor: map[string]error{"tok-b": errors.New("API Error: 500")},
	}
	gate := &fakeGate{result: notify.Result{Status: notify.StatusSent}}

	sched := New(st, fetcher, gate, defaultSettings(), clockwork.NewFakeClock(), nil)
	result := sched.RunCycle(context.Background())

	assert.Equal(t, 3, result.UsersProcessed, "a failing user must not abort the cycle")
	assert.Equal(t, 1, result.UsersFailed)
	assert.Equal(t, 2, result.SnapshotsInserted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bob")

	assert.Len(t, st.snaps[1], 1)
	assert.Empty(t, st.snaps[2])
	assert.Len(t, st.snaps[3], 1)
}

func TestRunCycle_ExcludesUsersWithoutToken(t *testing.T) {
	cleared := store.User{ID: 2, Name: "bob"} // token nil after soft delete
	st := newMemStore(tokenUser(1, "alice", "tok-a"), cleared)
	st.snaps[2] = []store.Snapshot{{ID: 99, UserID: 2, TotalScore: 500}}

	fetcher := &scriptedFetcher{records: map[string][]tari.Record{
		"tok-a": {{Username: "alice", TotalScore: 10}},
	}}
	sched := New(st, fetcher, &fakeGate{}, defaultSettings(), clockwork.NewFakeClock(), nil)

	result := sched.RunCycle(context.Background())

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 1, fetcher.callCount())
	// Prior snapshots remain readable.
	prior, err := st.RecentSnapshots(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, int64(500), prior[0].TotalScore)
}

func TestRunCycle_NotifiesOnlyOnScoreDelta(t *testing.T) {
	st := newMemStore(tokenUser(1, "alice", "tok-a"))
	fetcher := &scriptedFetcher{records: map[string][]tari.Record{
		"tok-a": {
			{Username: "alice", TotalScore: 100},
			{Username: "alice", TotalScore: 100},
			{Username: "alice", TotalScore: 150},
		},
	}}
	gate := &fakeGate{result: notify.Result{Status: notify.StatusSent}}
	sched := New(st, fetcher, gate, defaultSettings(), clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	// Cycle 1: single snapshot, nothing to compare.
	sched.RunCycle(ctx)
	assert.Empty(t, gate.calls)

	// Cycle 2: same score, no delta.
	sched.RunCycle(ctx)
	assert.Empty(t, gate.calls)

	// Cycle 3: score changed.
	result := sched.RunCycle(ctx)
	require.Len(t, gate.calls, 1)
	call := gate.calls[0]
	assert.Equal(t, int64(150), call.current.TotalScore)
	assert.Equal(t, int64(100), call.previous.TotalScore)
	assert.False(t, call.forced)
	assert.Equal(t, 1, result.NotificationsSent)
}

func TestRunCycle_SnapshotsReadableInReverseChronologicalOrder(t *testing.T) {
	st := newMemStore(tokenUser(1, "alice", "tok-a"))
	fetcher := &scriptedFetcher{records: map[string][]tari.Record{
		"tok-a": {
			{TotalScore: 1}, {TotalScore: 2}, {TotalScore: 3},
		},
	}}
	sched := New(st, fetcher, &fakeGate{}, defaultSettings(), clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sched.RunCycle(ctx)
	}

	recent, err := st.RecentSnapshots(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(3), recent[0].TotalScore)
	assert.Equal(t, int64(2), recent[1].TotalScore)
	assert.True(t, recent[0].CreatedAt.After(recent[1].CreatedAt))
}

// --------------------------------------------------------------------------
// Delay computation
// --------------------------------------------------------------------------

func TestNextDelay_WithinInclusiveBounds(t *testing.T) {
	sched := New(newMemStore(), &scriptedFetcher{}, &fakeGate{},
		staticSettings{FetchIntervalMin: 240, FetchIntervalMax: 300},
		clockwork.NewFakeClock(), nil)

	for i := 0; i < 500; i++ {
		d := sched.nextDelay(context.Background())
		assert.GreaterOrEqual(t, d, 240*time.Second)
		assert.LessOrEqual(t, d, 300*time.Second)
		assert.Zero(t, d%time.Second, "delay must be whole seconds")
	}
}

func TestNextDelay_EqualBounds(t *testing.T) {
	sched := New(newMemStore(), &scriptedFetcher{}, &fakeGate{},
		staticSettings{FetchIntervalMin: 60, FetchIntervalMax: 60},
		clockwork.NewFakeClock(), nil)

	assert.Equal(t, 60*time.Second, sched.nextDelay(context.Background()))
}

func TestNextDelay_ClampsMisconfiguredMax(t *testing.T) {
	sched := New(newMemStore(), &scriptedFetcher{}, &fakeGate{},
		staticSettings{FetchIntervalMin: 300, FetchIntervalMax: 60},
		clockwork.NewFakeClock(), nil)

	assert.Equal(t, 300*time.Second, sched.nextDelay(context.Background()))
}

// --------------------------------------------------------------------------
// Loop behavior
// --------------------------------------------------------------------------

func TestRun_WarmupThenReschedulesOncePerCycle(t *testing.T) {
	st := newMemStore(tokenUser(1, "alice", "tok-a"))
	fetcher := &scriptedFetcher{records: map[string][]tari.Record{
		"tok-a": {{Username: "alice", TotalScore: 1}},
	}}
	clock := clockwork.NewFakeClock()
	sched := New(st, fetcher, &fakeGate{},
		staticSettings{FetchIntervalMin: 60, FetchIntervalMax: 60},
		clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	// Warm-up timer armed.
	clock.BlockUntil(1)
	assert.Equal(t, 0, fetcher.callCount(), "no cycle before warm-up elapses")

	// Fire the warm-up (10–20s window) and wait for the reschedule.
	clock.Advance(20 * time.Second)
	clock.BlockUntil(1)
	assert.Equal(t, 1, fetcher.callCount(), "exactly one cycle per timer fire")

	// Fire the rescheduled timer.
	clock.Advance(60 * time.Second)
	clock.BlockUntil(1)
	assert.Equal(t, 2, fetcher.callCount())
}

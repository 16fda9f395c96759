package poller

import (
	"fmt"
	"time"

	"github.com/tariwatch/tariwatch/internal/notify"
)

// UserOutcome records what happened for one user during a cycle. A failure
// for one user never aborts the batch; it is collected here instead.
type UserOutcome struct {
	UserID       int64
	Name         string
	Error        string // empty on success
	ScoreChanged bool
	Notification notify.Status // zero value when the gate was not invoked
}

// CycleResult aggregates the outcomes of one full pass over all users.
type CycleResult struct {
	UsersProcessed    int
	UsersFailed       int
	SnapshotsInserted int
	NotificationsSent int
	Outcomes          []UserOutcome
	Errors            []string
	Duration          time.Duration
}

// AddError records a cycle-level error message.
func (r *CycleResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Summary returns a human-readable summary of the cycle.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf(
		"users=%d failed=%d snapshots=%d notified=%d errors=%d duration=%s",
		r.UsersProcessed, r.UsersFailed, r.SnapshotsInserted,
		r.NotificationsSent, len(r.Errors), r.Duration.Round(time.Millisecond),
	)
}

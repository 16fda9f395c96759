// Package notify decides whether a Discord alert should fire for a score
// change and delivers it via the user's configured webhook.
//
// Preconditions are checked in order, short-circuiting on the first failure:
// toggle+webhook, then the per-user interval throttle (bypassed by forced
// triggers). Outcomes distinguish policy skips from delivery failures; the
// last-notified timestamp advances only on confirmed delivery.
package notify

import (
	"time"
)

// Status classifies the outcome of a notification attempt.
type Status string

const (
	StatusSent           Status = "sent"
	StatusDisabled       Status = "disabled"
	StatusThrottled      Status = "throttled"
	StatusDeliveryFailed Status = "delivery_failed"
)

// Result is the structured, non-fatal outcome reported to the caller.
type Result struct {
	Status  Status
	Message string
	// Wait is how long until the next push is allowed. Set when throttled.
	Wait time.Duration
}

// Sent reports whether the notification was delivered.
func (r Result) Sent() bool { return r.Status == StatusSent }

// SkippedByPolicy reports whether the attempt was refused without any
// network call (disabled or throttled), as opposed to a delivery failure.
func (r Result) SkippedByPolicy() bool {
	return r.Status == StatusDisabled || r.Status == StatusThrottled
}

// WaitMinutes returns the throttle wait rounded up to whole minutes.
func (r Result) WaitMinutes() int {
	return int((r.Wait + time.Minute - 1) / time.Minute)
}

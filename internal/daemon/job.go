package daemon

import (
	"context"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// Job is one scheduled unit of work. Exactly one of Every / At is set.
type Job struct {
	Name        string
	Description string

	// Every runs the job on a fixed interval.
	Every time.Duration

	// At runs the job once daily at a local "HH:MM".
	At string

	// RunAtStart fires an interval job immediately on daemon start instead
	// of waiting out the first interval.
	RunAtStart bool

	Run func(ctx context.Context) error
}

// Dispatcher rate-limits check notifications against the heartbeat log. One
// window per check name: a notification inside the window is suppressed but
// still recorded as triggered.
type Dispatcher struct {
	Store  *store.Store
	Notify func(ctx context.Context, title, message string) error
}

// Dispatch sends a check notification unless one was already sent within the
// window. Every outcome lands in the heartbeat log.
func (dp *Dispatcher) Dispatch(ctx context.Context, checkName, message string, window time.Duration) error {
	if window > 0 {
		last, err := dp.Store.LastNotifiedAt(checkName)
		if err == nil && time.Since(last) < window {
			logging.ChecksDebug("Suppressing %s: notified %s ago (window %s)",
				checkName, time.Since(last).Round(time.Second), window)
			return dp.Store.RecordHeartbeatCheck(checkName, true, message, false)
		}
	}

	notified := true
	if err := dp.Notify(ctx, checkName, message); err != nil {
		logging.DaemonWarn("Notification for %s failed: %v", checkName, err)
		notified = false
	}
	return dp.Store.RecordHeartbeatCheck(checkName, true, message, notified)
}

// RecordQuiet logs a non-triggered check evaluation.
func (dp *Dispatcher) RecordQuiet(checkName string) error {
	return dp.Store.RecordHeartbeatCheck(checkName, false, "", false)
}

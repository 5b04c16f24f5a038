// Package daemon runs the long-lived scheduler: a single instance per host
// that owns all recurring jobs, enforced by a PID lock file and the
// daemon_state table. Jobs execute on a bounded worker pool with per-job
// re-entry locks; a supervisor goroutine heartbeats every 30 s.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
	"jaybrain/internal/notify"
	"jaybrain/internal/store"
)

// HeartbeatEvery is the supervisor heartbeat interval.
const HeartbeatEvery = 30 * time.Second

// tickEvery is the scheduler resolution. Clock triggers fire within one tick
// of their target minute.
const tickEvery = 20 * time.Second

// Daemon is the scheduler process.
type Daemon struct {
	cfg      *config.Config
	store    *store.Store
	notifier notify.Notifier

	jobs    []*Job
	pool    *semaphore.Weighted
	timeout time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time
	running map[string]bool
}

// New builds a daemon. Jobs are registered afterwards via Register.
func New(cfg *config.Config, s *store.Store, n notify.Notifier) (*Daemon, error) {
	if cfg == nil || s == nil {
		return nil, fmt.Errorf("validation: config and store are required")
	}
	workers := cfg.Daemon.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Daemon{
		cfg:      cfg,
		store:    s,
		notifier: n,
		pool:     semaphore.NewWeighted(int64(workers)),
		timeout:  cfg.GetJobTimeout(),
		lastRun:  make(map[string]time.Time),
		running:  make(map[string]bool),
	}, nil
}

// Register adds a job to the schedule. Call before Run.
func (d *Daemon) Register(j *Job) {
	d.jobs = append(d.jobs, j)
}

// ModuleNames lists the registered job names, for daemon_state.
func (d *Daemon) ModuleNames() []string {
	names := make([]string, len(d.jobs))
	for i, j := range d.jobs {
		names[i] = j.Name
	}
	return names
}

// Run acquires the singleton, starts the heartbeat, and loops the scheduler
// until the context is cancelled, then shuts down cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	pid := os.Getpid()

	if err := d.acquireSingleton(pid); err != nil {
		return err
	}
	defer d.release()

	if err := d.store.SetDaemonRunning(pid, d.ModuleNames()); err != nil {
		return fmt.Errorf("failed to record daemon start: %w", err)
	}
	if err := d.store.LogLifecycleEvent("started", "", pid); err != nil {
		logging.DaemonWarn("Lifecycle log failed: %v", err)
	}
	logging.Daemon("Daemon started: pid=%d jobs=%d", pid, len(d.jobs))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.heartbeatLoop(ctx)
	}()

	// Interval jobs with RunAtStart fire immediately; the rest wait out
	// their first interval.
	now := time.Now()
	for _, j := range d.jobs {
		if j.Every > 0 && !j.RunAtStart {
			d.mu.Lock()
			d.lastRun[j.Name] = now
			d.mu.Unlock()
		}
	}

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			logging.Daemon("Daemon stopping: pid=%d", pid)
			return nil
		case t := <-ticker.C:
			d.tick(ctx, t)
		}
	}
}

// tick launches every job whose trigger has elapsed.
func (d *Daemon) tick(ctx context.Context, now time.Time) {
	for _, j := range d.jobs {
		if d.shouldRun(j, now) {
			d.launch(ctx, j, now)
		}
	}
}

func (d *Daemon) shouldRun(j *Job, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running[j.Name] {
		return false
	}
	last := d.lastRun[j.Name]

	if j.Every > 0 {
		return now.Sub(last) >= j.Every
	}
	if j.At != "" {
		target, err := clockToday(j.At, now)
		if err != nil {
			return false
		}
		// Fire once per day, on the first tick at or past the target minute.
		return !now.Before(target) && last.Before(target)
	}
	return false
}

func (d *Daemon) launch(ctx context.Context, j *Job, now time.Time) {
	d.mu.Lock()
	d.running[j.Name] = true
	d.lastRun[j.Name] = now
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			d.running[j.Name] = false
			d.mu.Unlock()
		}()

		if err := d.pool.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.pool.Release(1)

		jobCtx := ctx
		var cancel context.CancelFunc
		if d.timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logging.DaemonError("Job %s panicked: %v", j.Name, r)
			}
		}()

		start := time.Now()
		if err := j.Run(jobCtx); err != nil {
			logging.DaemonWarn("Job %s failed after %s: %v", j.Name, time.Since(start), err)
			return
		}
		logging.DaemonDebug("Job %s completed in %s", j.Name, time.Since(start))
	}()
}

func (d *Daemon) heartbeatLoop(ctx context.Context) {
	every := d.cfg.GetHeartbeatInterval()
	if every <= 0 {
		every = HeartbeatEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	modules := d.ModuleNames()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.DaemonHeartbeat(modules); err != nil {
				logging.DaemonWarn("Heartbeat write failed: %v", err)
			}
		}
	}
}

// ==== SINGLETON DISCIPLINE ====

// acquireSingleton takes the PID lock file and cross-checks daemon_state.
// A live rival refuses startup; a stale lock (dead PID, unreadable) is
// removed and taken over.
func (d *Daemon) acquireSingleton(pid int) error {
	lockPath := d.cfg.LockFilePath()

	if raw, err := os.ReadFile(lockPath); err == nil {
		rival, perr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if perr == nil && rival != pid && processAlive(rival) {
			d.refuse(fmt.Sprintf("lock file held by live pid %d", rival), pid)
			return fmt.Errorf("daemon already running (pid %d)", rival)
		}
		logging.Daemon("Removing stale lock file (pid %s)", strings.TrimSpace(string(raw)))
		os.Remove(lockPath)
	}

	state, err := d.store.GetDaemonState()
	if err == nil && state.Status == "running" && state.PID != pid && processAlive(state.PID) {
		d.refuse(fmt.Sprintf("daemon_state records live pid %d", state.PID), pid)
		return fmt.Errorf("daemon already running (pid %d)", state.PID)
	}

	if err := os.MkdirAll(d.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

func (d *Daemon) refuse(detail string, pid int) {
	if err := d.store.LogLifecycleEvent("startup_refused", detail, pid); err != nil {
		logging.DaemonWarn("Failed to log startup refusal: %v", err)
	}
	logging.DaemonError("Startup refused: %s", detail)
}

func (d *Daemon) release() {
	if err := d.store.SetDaemonStopped(); err != nil {
		logging.DaemonWarn("Failed to mark daemon stopped: %v", err)
	}
	if err := d.store.LogLifecycleEvent("stopped", "", os.Getpid()); err != nil {
		logging.DaemonWarn("Lifecycle log failed: %v", err)
	}
	os.Remove(d.cfg.LockFilePath())
}

// processAlive reports whether a PID refers to a live process we can see.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// clockToday resolves an "HH:MM" spec to today's local occurrence.
func clockToday(spec string, now time.Time) (time.Time, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("validation: clock trigger must be HH:MM, got %q", spec)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return time.Time{}, fmt.Errorf("validation: bad hour in %q", spec)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("validation: bad minute in %q", spec)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
}

package daemon

import (
	"context"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"jaybrain/internal/config"
	"jaybrain/internal/store"
)

func newTestDaemon(t *testing.T) (*Daemon, *config.Config) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Daemon.HeartbeatEvery = "50ms"

	d, err := New(cfg, s, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, cfg
}

func TestRunAcquiresAndReleases(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Wait for the lock file to appear.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(cfg.LockFilePath()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Lock file never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}

	state, err := d.store.GetDaemonState()
	if err != nil {
		t.Fatalf("GetDaemonState failed: %v", err)
	}
	if state.Status != "running" || state.PID != os.Getpid() {
		t.Errorf("State wrong: %+v", state)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, err := os.Stat(cfg.LockFilePath()); !os.IsNotExist(err) {
		t.Error("Lock file not removed on shutdown")
	}
	state, _ = d.store.GetDaemonState()
	if state.Status != "stopped" {
		t.Errorf("Status after stop = %q", state.Status)
	}
}

func TestRunRefusesLiveRival(t *testing.T) {
	d, cfg := newTestDaemon(t)

	// PID 1 is alive on any Linux host and is never the test process.
	if err := os.WriteFile(cfg.LockFilePath(), []byte("1"), 0o644); err != nil {
		t.Fatalf("Failed to plant lock: %v", err)
	}

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("Expected startup refusal with live rival PID")
	}

	events, err := d.store.ListLifecycleEvents(5)
	if err != nil {
		t.Fatalf("ListLifecycleEvents failed: %v", err)
	}
	if len(events) == 0 || events[0]["event"] != "startup_refused" {
		t.Errorf("startup_refused not logged: %+v", events)
	}
}

func TestRunTakesOverStaleLock(t *testing.T) {
	d, cfg := newTestDaemon(t)

	// A PID far beyond pid_max is never alive.
	if err := os.WriteFile(cfg.LockFilePath(), []byte("999999999"), 0o644); err != nil {
		t.Fatalf("Failed to plant lock: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		raw, err := os.ReadFile(cfg.LockFilePath())
		if err == nil {
			if pid, _ := strconv.Atoi(string(raw)); pid == os.Getpid() {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("Stale lock never taken over")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func TestIntervalJobRunsAndNeverOverlaps(t *testing.T) {
	d, _ := newTestDaemon(t)

	var running, overlaps, runs int32
	d.Register(&Job{
		Name:  "probe",
		Every: time.Millisecond,
		Run: func(ctx context.Context) error {
			if !atomic.CompareAndSwapInt32(&running, 0, 1) {
				atomic.AddInt32(&overlaps, 1)
			}
			atomic.AddInt32(&runs, 1)
			time.Sleep(5 * time.Millisecond)
			atomic.StoreInt32(&running, 0)
			return nil
		},
	})

	now := time.Now()
	for i := 0; i < 50; i++ {
		d.tick(context.Background(), now.Add(time.Duration(i)*time.Second))
		time.Sleep(time.Millisecond)
	}
	// Let in-flight runs drain.
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&runs) == 0 {
		t.Error("Job never ran")
	}
	if n := atomic.LoadInt32(&overlaps); n != 0 {
		t.Errorf("Job overlapped %d times", n)
	}
}

func TestJobPanicDoesNotKillScheduler(t *testing.T) {
	d, _ := newTestDaemon(t)

	var ran int32
	d.Register(&Job{Name: "bomb", Every: time.Millisecond, Run: func(ctx context.Context) error {
		panic("boom")
	}})
	d.Register(&Job{Name: "survivor", Every: time.Millisecond, Run: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}})

	now := time.Now()
	d.tick(context.Background(), now)
	time.Sleep(20 * time.Millisecond)
	d.tick(context.Background(), now.Add(time.Minute))
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&ran) == 0 {
		t.Error("Scheduler died with the panicking job")
	}
}

func TestClockTrigger(t *testing.T) {
	d, _ := newTestDaemon(t)
	j := &Job{Name: "daily", At: "07:00"}
	d.Register(j)

	day := time.Date(2026, 8, 25, 0, 0, 0, 0, time.Local)

	if d.shouldRun(j, day.Add(6*time.Hour)) {
		t.Error("Fired before target time")
	}
	if !d.shouldRun(j, day.Add(7*time.Hour+5*time.Minute)) {
		t.Error("Did not fire after target time")
	}

	// Mark as run; same day must not refire.
	d.mu.Lock()
	d.lastRun[j.Name] = day.Add(7*time.Hour + 5*time.Minute)
	d.mu.Unlock()
	if d.shouldRun(j, day.Add(9*time.Hour)) {
		t.Error("Refired on the same day")
	}

	// Next day fires again.
	if !d.shouldRun(j, day.Add(24*time.Hour+8*time.Hour)) {
		t.Error("Did not fire the next day")
	}
}

func TestClockTodayValidation(t *testing.T) {
	now := time.Now()
	for _, bad := range []string{"7am", "25:00", "07:61", "0700", ""} {
		if _, err := clockToday(bad, now); err == nil {
			t.Errorf("clockToday(%q) should fail", bad)
		}
	}
	got, err := clockToday("07:30", time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("clockToday failed: %v", err)
	}
	if got.Hour() != 7 || got.Minute() != 30 || got.Day() != 25 {
		t.Errorf("clockToday wrong: %v", got)
	}
}

func TestDispatcherRateLimits(t *testing.T) {
	d, _ := newTestDaemon(t)

	var sent int32
	dp := &Dispatcher{
		Store: d.store,
		Notify: func(ctx context.Context, title, message string) error {
			atomic.AddInt32(&sent, 1)
			return nil
		},
	}

	ctx := context.Background()
	if err := dp.Dispatch(ctx, "study", "5 due", 2*time.Hour); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := dp.Dispatch(ctx, "study", "6 due", 2*time.Hour); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if atomic.LoadInt32(&sent) != 1 {
		t.Errorf("Expected 1 delivery inside the window, got %d", sent)
	}

	// Both evaluations are on the log; only the first was notified.
	entries, err := d.store.ListHeartbeatLog("study", 10)
	if err != nil {
		t.Fatalf("ListHeartbeatLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log rows, got %d", len(entries))
	}
	notified := 0
	for _, e := range entries {
		if e.Notified {
			notified++
		}
	}
	if notified != 1 {
		t.Errorf("Expected exactly 1 notified row, got %d", notified)
	}

	// A different check has its own window.
	if err := dp.Dispatch(ctx, "countdown", "14 days", 2*time.Hour); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if atomic.LoadInt32(&sent) != 2 {
		t.Errorf("Independent check suppressed: sent=%d", sent)
	}
}

func TestStatusReportsDeadPIDAsStopped(t *testing.T) {
	d, cfg := newTestDaemon(t)

	if err := d.store.SetDaemonRunning(999999999, []string{"feeds"}); err != nil {
		t.Fatalf("SetDaemonRunning failed: %v", err)
	}

	report := Status(d.store, cfg.LockFilePath())
	if report.Status != "stopped" {
		t.Errorf("Dead PID must report stopped, got %q", report.Status)
	}
	if report.ProcessAlive {
		t.Error("ProcessAlive must be false for a dead PID")
	}
	if report.PID != 999999999 {
		t.Errorf("PID not carried through: %d", report.PID)
	}
}

func TestStatusReportsLiveDaemon(t *testing.T) {
	d, cfg := newTestDaemon(t)

	if err := d.store.SetDaemonRunning(os.Getpid(), []string{"feeds", "vault"}); err != nil {
		t.Fatalf("SetDaemonRunning failed: %v", err)
	}
	if err := os.WriteFile(cfg.LockFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("Failed to write lock: %v", err)
	}

	report := Status(d.store, cfg.LockFilePath())
	if report.Status != "running" || !report.ProcessAlive {
		t.Errorf("Live daemon misreported: %+v", report)
	}
	if report.LockPID != os.Getpid() {
		t.Errorf("LockPID = %d", report.LockPID)
	}
	if len(report.Modules) != 2 {
		t.Errorf("Modules not carried: %v", report.Modules)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("Own PID must read as alive")
	}
	if processAlive(0) || processAlive(-1) {
		t.Error("Non-positive PIDs must read as dead")
	}
	if processAlive(999999999) {
		t.Error("Absurd PID must read as dead")
	}
}

func TestModuleNames(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.Register(&Job{Name: "a"})
	d.Register(&Job{Name: "b"})
	names := d.ModuleNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("ModuleNames = %v", names)
	}
}

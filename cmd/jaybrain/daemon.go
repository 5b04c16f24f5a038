package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jaybrain/internal/checks"
	"jaybrain/internal/config"
	"jaybrain/internal/daemon"
	"jaybrain/internal/jobs"
	"jaybrain/internal/logging"
	"jaybrain/internal/notify"
	"jaybrain/internal/pulse"
	"jaybrain/internal/store"
	"jaybrain/internal/trash"
)

var (
	daemonStart      bool
	daemonStop       bool
	daemonStatusFlag bool
	daemonForeground bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Control the scheduler daemon",
	Long: `The daemon is the single background process that owns all recurring
work: heartbeat checks, feed polling, vault sync, trash sweeps, git shadow
snapshots, the daily briefing, and conversation archiving. One instance per
host, enforced by a PID lock file.

Exit codes: 0 ok, 1 already running, 2 invalid invocation.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonStart, "start", false, "start the daemon")
	daemonCmd.Flags().BoolVar(&daemonStop, "stop", false, "stop the running daemon")
	daemonCmd.Flags().BoolVar(&daemonStatusFlag, "status", false, "report daemon status")
	daemonCmd.Flags().BoolVar(&daemonForeground, "foreground", false,
		"with --start: run in this process instead of detaching")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	modes := 0
	for _, m := range []bool{daemonStart, daemonStop, daemonStatusFlag} {
		if m {
			modes++
		}
	}
	if modes != 1 || len(args) > 0 {
		fmt.Fprintln(os.Stderr, "usage: jaybrain daemon --start|--stop|--status [--foreground]")
		os.Exit(2)
	}

	switch {
	case daemonStop:
		return daemonDoStop()
	case daemonStatusFlag:
		return daemonDoStatus()
	default:
		if daemonForeground {
			return daemonRunForeground(cmd.Context())
		}
		return daemonDetach()
	}
}

// daemonDetach re-execs the binary as a foreground daemon in its own session
// and returns once the child has claimed the lock (or died trying).
func daemonDetach() error {
	if report := quickStatus(); report.Status == "running" {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", report.PID)
		os.Exit(1)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot resolve own executable: %w", err)
	}

	child := exec.Command(exe, "daemon", "--start", "--foreground",
		"--data-dir", cfg.DataDir)
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to spawn daemon: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()
	logger.Debug("spawned daemon child", zap.Int("pid", pid))

	// Give the child a moment to claim the singleton before reporting.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if raw, err := os.ReadFile(cfg.LockFilePath()); err == nil {
			if got, _ := strconv.Atoi(strings.TrimSpace(string(raw))); got == pid {
				fmt.Printf("daemon started (pid %d)\n", pid)
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "daemon did not claim the lock; it may have refused startup")
	os.Exit(1)
	return nil
}

// daemonRunForeground builds the full job schedule and blocks until
// signalled. The deletion watcher runs beside the scheduler; both share one
// cancellation.
func daemonRunForeground(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	notifier := notify.NewPaced(cfg)
	d, err := daemon.New(cfg, s, notifier)
	if err != nil {
		return err
	}
	registerSchedule(d, cfg, s, notifier)
	logger.Info("scheduler starting", zap.Int("jobs", len(d.ModuleNames())))

	g, ctx := errgroup.WithContext(ctx)
	if roots := cfg.Vault.WatchRoots; len(roots) > 0 {
		watcher := jobs.NewDeletionWatcher(s, roots)
		g.Go(func() error {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logging.JobsWarn("Deletion watcher exited: %v", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return d.Run(ctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		// A live rival holding the lock is the one start failure with its
		// own exit code.
		fmt.Fprintln(os.Stderr, err)
		logging.CloseAll()
		os.Exit(1)
	}
	return nil
}

// registerSchedule mounts every recurring job: the heartbeat checks wrapped
// in the notification dispatcher, then the auxiliary jobs on their configured
// triggers.
func registerSchedule(d *daemon.Daemon, cfg *config.Config, s *store.Store, notifier notify.Notifier) {
	dispatcher := &daemon.Dispatcher{Store: s, Notify: notifier.Notify}
	deps := checks.Deps{Store: s, Cfg: cfg}

	wrap := func(c checks.Check) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			res, err := c.Run(ctx, deps)
			if err != nil {
				return err
			}
			if !res.Triggered {
				return dispatcher.RecordQuiet(c.Name)
			}
			return dispatcher.Dispatch(ctx, c.Name, res.Message, c.Window)
		}
	}

	// Built-in checks. Study checks ride the morning/evening clock; the
	// crash check polls; the rest are daily or weekly.
	weekly := durationOr(cfg.Jobs.WeeklyEvery, 168*time.Hour)
	clockFor := map[string]string{
		"forge_study_morning": cfg.Jobs.StudyMorningAt,
		"forge_study_evening": cfg.Jobs.StudyEveningAt,
		"exam_countdown":      cfg.Jobs.StudyMorningAt,
		"stale_applications":  cfg.Jobs.BriefingAt,
	}
	everyFor := map[string]time.Duration{
		"session_crash":  durationOr(cfg.Jobs.SessionCrashEvery, 10*time.Minute),
		"goal_staleness": weekly,
		"network_decay":  weekly,
	}
	for _, c := range checks.BuiltIn(cfg) {
		job := &daemon.Job{Name: c.Name, Description: c.Description, Run: wrap(c)}
		if at, ok := clockFor[c.Name]; ok {
			job.At = at
		} else {
			job.Every = everyFor[c.Name]
		}
		d.Register(job)
	}

	// User-authored checks from <data-dir>/checks, via the interpreter.
	customWindow := durationOr(cfg.Checks.CustomWindow, 6*time.Hour)
	custom, err := checks.LoadCustom(cfg.ChecksDir(), customWindow)
	if err != nil {
		logging.DaemonWarn("Custom checks unavailable: %v", err)
	}
	for _, c := range custom {
		d.Register(&daemon.Job{
			Name:        c.Name,
			Description: c.Description,
			Every:       durationOr(cfg.Checks.CustomEvery, time.Hour),
			Run:         wrap(c),
		})
	}

	reader := pulse.NewReader(s, cfg.Pulse.TranscriptsDir)

	feeds := jobs.NewFeedPoller(s, cfg)
	d.Register(&daemon.Job{
		Name:        "feed_poll",
		Description: "Poll RSS/Atom sources for new articles",
		Every:       durationOr(cfg.Jobs.FeedPollEvery, 30*time.Minute),
		RunAtStart:  true,
		Run:         feeds.Poll,
	})

	boards := jobs.NewBoardWatcher(s, cfg, notifier.Notify)
	d.Register(&daemon.Job{
		Name:        "board_watch",
		Description: "Detect content changes on registered job boards",
		Every:       durationOr(cfg.Jobs.FeedPollEvery, 30*time.Minute),
		Run:         boards.Run,
	})

	vault := jobs.NewVaultSync(s, cfg.VaultPath())
	d.Register(&daemon.Job{
		Name:        "vault_sync",
		Description: "Mirror the store into the markdown vault",
		Every:       durationOr(cfg.Jobs.VaultSyncEvery, time.Hour),
		Run:         vault.Run,
	})

	bin := trash.NewManager(s, cfg.TrashDir())
	d.Register(&daemon.Job{
		Name:        "trash_sweep",
		Description: "Purge expired recycle-bin entries",
		Every:       durationOr(cfg.Jobs.TrashSweepEvery, 24*time.Hour),
		Run: func(ctx context.Context) error {
			_, err := bin.SweepExpired(ctx)
			return err
		},
	})

	if repos := cfg.Vault.GitShadowRepos; len(repos) > 0 {
		shadow := jobs.NewGitShadow(s, repos)
		d.Register(&daemon.Job{
			Name:        "git_shadow",
			Description: "Snapshot uncommitted work in watched repositories",
			Every:       durationOr(cfg.Jobs.GitShadowEvery, 15*time.Minute),
			Run:         shadow.Run,
		})
	}

	briefing := jobs.NewBriefing(s, reader, notifier.Notify)
	d.Register(&daemon.Job{
		Name:        "daily_briefing",
		Description: "Compose and deliver the morning briefing",
		At:          cfg.Jobs.BriefingAt,
		Run:         briefing.Run,
	})

	archiver := jobs.NewArchiver(s, cfg.Pulse.TranscriptsDir, cfg.ArchiveDir(),
		cfg.Jobs.ArchiveMaxAgeDays)
	d.Register(&daemon.Job{
		Name:        "conversation_archive",
		Description: "Archive completed transcripts to markdown",
		At:          cfg.Jobs.ArchiveAt,
		Run:         archiver.Run,
	})

	alloc := jobs.NewTimeAlloc(s, cfg)
	d.Register(&daemon.Job{
		Name:        "weekly_time_report",
		Description: "Weekly per-domain time allocation summary",
		Every:       durationOr(cfg.Jobs.WeeklyEvery, 168*time.Hour),
		Run: func(ctx context.Context) error {
			report, err := alloc.WeeklyReport(ctx)
			if err != nil {
				return err
			}
			if report.TotalHours == 0 {
				return nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Tracked %.1fh this week:", report.TotalHours)
			for _, dom := range report.Domains {
				fmt.Fprintf(&b, "\n- %s: %.1fh", dom.Domain, dom.Hours)
				if dom.Deficit > 0 {
					fmt.Fprintf(&b, " (%.1fh under target)", dom.Deficit)
				}
			}
			return notifier.Notify(ctx, "Weekly time allocation", b.String())
		},
	})
}

func daemonDoStop() error {
	raw, err := os.ReadFile(cfg.LockFilePath())
	if err != nil {
		fmt.Println("daemon not running")
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		fmt.Fprintln(os.Stderr, "lock file is corrupt; removing it")
		os.Remove(cfg.LockFilePath())
		return nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil || proc.Signal(syscall.Signal(0)) != nil {
		fmt.Println("daemon not running (stale lock removed)")
		os.Remove(cfg.LockFilePath())
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			fmt.Printf("daemon stopped (pid %d)\n", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit within 10s", pid)
}

var (
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusStopped = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	statusLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(15)
)

func daemonDoStatus() error {
	report := quickStatus()

	badge := statusStopped.Render("● stopped")
	if report.Status == "running" {
		badge = statusRunning.Render("● running")
	}
	fmt.Println(badge)
	if report.PID > 0 {
		fmt.Println(statusLabel.Render("pid") + strconv.Itoa(report.PID))
	}
	if !report.StartedAt.IsZero() {
		fmt.Println(statusLabel.Render("started") +
			report.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !report.LastHeartbeat.IsZero() {
		fmt.Println(statusLabel.Render("last heartbeat") +
			time.Since(report.LastHeartbeat).Round(time.Second).String() + " ago")
	}
	if len(report.Modules) > 0 {
		fmt.Println(statusLabel.Render("jobs") + strings.Join(report.Modules, ", "))
	}
	return nil
}

// quickStatus opens the store read-only just long enough to answer a status
// probe.
func quickStatus() daemon.StatusReport {
	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return daemon.StatusReport{Status: "stopped"}
	}
	defer s.Close()
	return daemon.Status(s, cfg.LockFilePath())
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

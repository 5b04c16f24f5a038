// Package checks defines the heartbeat checks the daemon evaluates: each one
// reads store state, decides whether a condition warrants the user's
// attention, and composes the notification message. Dispatch and rate
// limiting belong to the daemon; a check only answers "triggered or not".
package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/config"
	"jaybrain/internal/forge"
	"jaybrain/internal/store"
)

// Deps is what a check may read.
type Deps struct {
	Store *store.Store
	Cfg   *config.Config
}

// Result is one check evaluation.
type Result struct {
	Triggered bool                   `json:"triggered"`
	Message   string                 `json:"message,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Check is a named condition with a notification rate-limit window.
type Check struct {
	Name        string
	Description string
	Window      time.Duration
	Run         func(ctx context.Context, deps Deps) (Result, error)
}

// BuiltIn returns the standard check set, with windows and thresholds taken
// from config.
func BuiltIn(cfg *config.Config) []Check {
	studyWindow := parseWindow(cfg.Checks.StudyWindow, 20*time.Hour)
	countdownWindow := parseWindow(cfg.Checks.CountdownWindow, 22*time.Hour)
	staleWindow := parseWindow(cfg.Checks.StaleAppsWindow, 22*time.Hour)
	crashWindow := parseWindow(cfg.Checks.SessionCrashWindow, 2*time.Hour)
	weeklyWindow := parseWindow(cfg.Checks.WeeklyWindow, 160*time.Hour)

	return []Check{
		{
			Name:        "forge_study_morning",
			Description: "Morning study reminder with due/new/struggling counts",
			Window:      studyWindow,
			Run:         studyCheck(false),
		},
		{
			Name:        "forge_study_evening",
			Description: "Evening study reminder focused on the streak at risk",
			Window:      studyWindow,
			Run:         studyCheck(true),
		},
		{
			Name:        "exam_countdown",
			Description: "Days-to-exam reminder inside the final two weeks",
			Window:      countdownWindow,
			Run:         examCountdown,
		},
		{
			Name:        "stale_applications",
			Description: "Job applications sitting in applied with no movement",
			Window:      staleWindow,
			Run:         staleApplications,
		},
		{
			Name:        "session_crash",
			Description: "Active sessions whose heartbeat went silent",
			Window:      crashWindow,
			Run:         sessionCrash,
		},
		{
			Name:        "goal_staleness",
			Description: "Active life goals untouched for two weeks",
			Window:      weeklyWindow,
			Run:         goalStaleness,
		},
		{
			Name:        "network_decay",
			Description: "People overdue for contact per their decay threshold",
			Window:      weeklyWindow,
			Run:         networkDecay,
		},
	}
}

// ==== STUDY ====

// crashSilence is how long an active session may go quiet before it reads as
// crashed.
const crashSilence = 30 * time.Minute

// goalStaleAfter is how long an active goal may sit unchanged.
const goalStaleAfter = 14 * 24 * time.Hour

// examCrunch is the countdown horizon; also the adaptive-threshold window
// inside which any due item triggers the study check.
const examCrunch = 14 * 24 * time.Hour

func studyCheck(evening bool) func(ctx context.Context, deps Deps) (Result, error) {
	return func(ctx context.Context, deps Deps) (Result, error) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		now := time.Now().UTC()

		due, err := deps.Store.DueConcepts("", now, 500)
		if err != nil {
			return Result{}, err
		}
		fresh, err := deps.Store.NewConcepts("", 500)
		if err != nil {
			return Result{}, err
		}
		struggling, err := deps.Store.StrugglingConcepts("", forge.StrugglingBelow, 1, 500)
		if err != nil {
			return Result{}, err
		}

		engine := forge.NewEngine(deps.Store)
		streak, _, err := engine.Streaks(now)
		if err != nil {
			return Result{}, err
		}

		threshold := deps.Cfg.Checks.StudyDueThreshold
		if threshold <= 0 {
			threshold = 5
		}
		// Crunch mode: any due item matters in the final week.
		examDate := deps.Cfg.GetExamDate()
		daysToExam := -1
		if !examDate.IsZero() {
			daysToExam = int(time.Until(examDate).Hours() / 24)
			if daysToExam >= 0 && daysToExam <= 7 {
				threshold = 1
			}
		}

		result := Result{Context: map[string]interface{}{
			"due":          len(due),
			"new":          len(fresh),
			"struggling":   len(struggling),
			"streak":       streak,
			"days_to_exam": daysToExam,
		}}
		if len(due) < threshold {
			return result, nil
		}

		result.Triggered = true
		if evening {
			result.Message = eveningMessage(len(due), streak)
		} else {
			result.Message = morningMessage(len(due), len(fresh), len(struggling), daysToExam)
		}
		return result, nil
	}
}

func morningMessage(due, fresh, struggling, daysToExam int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d concepts due for review", due)
	if fresh > 0 {
		fmt.Fprintf(&b, ", %d never studied", fresh)
	}
	if struggling > 0 {
		fmt.Fprintf(&b, ", %d struggling", struggling)
	}
	if daysToExam >= 0 {
		fmt.Fprintf(&b, ". Exam in %d days", daysToExam)
	}
	return b.String()
}

func eveningMessage(due, streak int) string {
	if streak > 0 {
		return fmt.Sprintf("%d concepts still due today. Your %d-day streak ends at midnight", due, streak)
	}
	return fmt.Sprintf("%d concepts due. No reviews yet today; a short session starts a new streak", due)
}

// ==== EXAM COUNTDOWN ====

func examCountdown(ctx context.Context, deps Deps) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	examDate := deps.Cfg.GetExamDate()
	if examDate.IsZero() {
		return Result{}, nil
	}
	until := time.Until(examDate)
	if until < 0 || until > examCrunch {
		return Result{}, nil
	}

	days := int(until.Hours() / 24)
	return Result{
		Triggered: true,
		Message:   fmt.Sprintf("Exam in %d days (%s)", days, examDate.Format("Jan 2")),
		Context:   map[string]interface{}{"days_to_exam": days},
	}, nil
}

// ==== APPLICATIONS ====

func staleApplications(ctx context.Context, deps Deps) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	staleDays := deps.Cfg.Checks.StaleApplicationDays
	if staleDays <= 0 {
		staleDays = 14
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -staleDays)

	apps, err := deps.Store.ListApplications("applied", 500)
	if err != nil {
		return Result{}, err
	}

	var stale []string
	for _, a := range apps {
		if a.AppliedDate != nil && a.AppliedDate.Before(cutoff) {
			stale = append(stale, a.ID)
		}
	}
	if len(stale) == 0 {
		return Result{}, nil
	}
	return Result{
		Triggered: true,
		Message:   fmt.Sprintf("%d applications have been sitting in 'applied' for over %d days", len(stale), staleDays),
		Context:   map[string]interface{}{"application_ids": stale},
	}, nil
}

// ==== SESSIONS ====

func sessionCrash(ctx context.Context, deps Deps) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sessions, err := deps.Store.ListClaudeSessions("active", 100)
	if err != nil {
		return Result{}, err
	}

	cutoff := time.Now().UTC().Add(-crashSilence)
	var silent []string
	for _, cs := range sessions {
		if cs.LastHeartbeat.Before(cutoff) {
			silent = append(silent, cs.SessionID)
		}
	}
	if len(silent) == 0 {
		return Result{}, nil
	}
	return Result{
		Triggered: true,
		Message:   fmt.Sprintf("%d sessions look crashed (active but silent for over 30 minutes)", len(silent)),
		Context:   map[string]interface{}{"session_ids": silent},
	}, nil
}

// ==== LIFE GOALS ====

func goalStaleness(ctx context.Context, deps Deps) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	goals, err := deps.Store.ListLifeGoals("", "active")
	if err != nil {
		return Result{}, err
	}

	cutoff := time.Now().UTC().Add(-goalStaleAfter)
	var stale []string
	for _, g := range goals {
		if g.UpdatedAt.Before(cutoff) {
			stale = append(stale, g.Title)
		}
	}
	if len(stale) == 0 {
		return Result{}, nil
	}
	return Result{
		Triggered: true,
		Message:   fmt.Sprintf("%d goals untouched for two weeks: %s", len(stale), strings.Join(stale, "; ")),
		Context:   map[string]interface{}{"goals": stale},
	}, nil
}

// ==== NETWORK ====

func networkDecay(ctx context.Context, deps Deps) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	people, err := deps.Store.ListEntities("person", 500)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	var overdue []string
	for _, p := range people {
		lastContact, ok := propTime(p.Properties, "last_contact")
		if !ok {
			continue
		}
		thresholdDays := propFloat(p.Properties, "decay_threshold_days", 0)
		if thresholdDays <= 0 {
			continue
		}
		if now.Sub(lastContact) > time.Duration(thresholdDays)*24*time.Hour {
			overdue = append(overdue, p.Name)
		}
	}
	if len(overdue) == 0 {
		return Result{}, nil
	}
	return Result{
		Triggered: true,
		Message:   fmt.Sprintf("Overdue for contact: %s", strings.Join(overdue, ", ")),
		Context:   map[string]interface{}{"people": overdue},
	}, nil
}

// ==== HELPERS ====

func propTime(props map[string]interface{}, key string) (time.Time, bool) {
	raw, ok := props[key].(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func propFloat(props map[string]interface{}, key string, fallback float64) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func parseWindow(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

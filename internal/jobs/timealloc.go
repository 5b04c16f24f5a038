package jobs

import (
	"context"
	"sort"
	"strings"
	"time"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// TimeAlloc derives where working time actually went from session activity
// timestamps and compares it against the weekly targets in life_domains.
type TimeAlloc struct {
	Store         *store.Store
	IdleThreshold time.Duration
	Prefixes      []config.DomainPrefix
}

// NewTimeAlloc builds a time-allocation reporter from config.
func NewTimeAlloc(s *store.Store, cfg *config.Config) *TimeAlloc {
	return &TimeAlloc{
		Store:         s,
		IdleThreshold: cfg.GetIdleThreshold(),
		Prefixes:      cfg.Jobs.DomainPrefixes,
	}
}

// DomainHours is actual versus target time for one life domain.
type DomainHours struct {
	Domain      string  `json:"domain"`
	Hours       float64 `json:"hours"`
	TargetHours float64 `json:"target_hours,omitempty"`
	Deficit     float64 `json:"deficit,omitempty"` // target minus actual, when positive
}

// AllocationReport summarizes a window of tracked activity.
type AllocationReport struct {
	Since      time.Time     `json:"since"`
	TotalHours float64       `json:"total_hours"`
	Domains    []DomainHours `json:"domains"`
}

// Report computes time spent per domain since the given time. Activity within
// one session accumulates while consecutive timestamps are closer than the
// idle threshold; larger gaps contribute nothing.
func (t *TimeAlloc) Report(ctx context.Context, since time.Time) (*AllocationReport, error) {
	timer := logging.StartTimer(logging.CategoryJobs, "TimeAlloc")
	defer timer.Stop()

	samples, err := t.Store.ActivityTimestamps(since)
	if err != nil {
		return nil, err
	}

	perDomain, total := t.tally(samples)

	targets := make(map[string]float64)
	if domains, err := t.Store.ListLifeDomains(); err == nil {
		for _, d := range domains {
			targets[d.Name] = d.HoursPerWeek
		}
	}

	report := &AllocationReport{Since: since, TotalHours: total.Hours()}
	for domain, dur := range perDomain {
		dh := DomainHours{Domain: domain, Hours: dur.Hours(), TargetHours: targets[domain]}
		if dh.TargetHours > dh.Hours {
			dh.Deficit = dh.TargetHours - dh.Hours
		}
		report.Domains = append(report.Domains, dh)
	}
	// Targets with zero tracked time still show up as full deficits.
	for name, target := range targets {
		if _, tracked := perDomain[name]; !tracked && target > 0 {
			report.Domains = append(report.Domains, DomainHours{
				Domain: name, TargetHours: target, Deficit: target,
			})
		}
	}
	sort.Slice(report.Domains, func(i, j int) bool {
		return report.Domains[i].Hours > report.Domains[j].Hours
	})
	return report, nil
}

// tally sums consecutive same-session gaps no larger than the idle
// threshold, bucketed by the session cwd's life domain.
func (t *TimeAlloc) tally(samples []store.ActivitySample) (map[string]time.Duration, time.Duration) {
	perDomain := make(map[string]time.Duration)
	var total time.Duration
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if cur.SessionID != prev.SessionID {
			continue
		}
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap > t.IdleThreshold {
			continue
		}
		perDomain[t.domainFor(cur.CWD)] += gap
		total += gap
	}
	return perDomain, total
}

// WeeklyReport covers the trailing seven days.
func (t *TimeAlloc) WeeklyReport(ctx context.Context) (*AllocationReport, error) {
	return t.Report(ctx, time.Now().UTC().Add(-7*24*time.Hour))
}

// domainFor maps a working directory to a life domain. First configured
// prefix that matches wins; unmatched paths land in "uncategorized".
func (t *TimeAlloc) domainFor(cwd string) string {
	for _, p := range t.Prefixes {
		if p.Prefix != "" && strings.HasPrefix(cwd, p.Prefix) {
			return p.Domain
		}
	}
	return "uncategorized"
}

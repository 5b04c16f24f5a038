package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/forge"
	"jaybrain/internal/logging"
	"jaybrain/internal/pulse"
	"jaybrain/internal/store"
)

// briefing caps per section.
const (
	briefingArticles = 8
	briefingEvents   = 5
	briefingTasks    = 5
)

// Briefing composes the daily morning summary: study queue, live sessions,
// fresh articles, upcoming events, and in-flight applications.
type Briefing struct {
	Store  *store.Store
	Pulse  *pulse.Reader
	Forge  *forge.Engine
	Notify func(ctx context.Context, title, message string) error
}

// NewBriefing wires a briefing composer.
func NewBriefing(s *store.Store, reader *pulse.Reader, notify func(ctx context.Context, title, message string) error) *Briefing {
	return &Briefing{Store: s, Pulse: reader, Forge: forge.NewEngine(s), Notify: notify}
}

// Run composes and delivers the briefing.
func (b *Briefing) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryJobs, "Briefing")
	defer timer.Stop()

	text, err := b.Compose(ctx)
	if err != nil {
		return err
	}
	if b.Notify == nil {
		return nil
	}
	return b.Notify(ctx, "Daily briefing", text)
}

// Compose renders the briefing as markdown. Sections with nothing to say are
// omitted rather than rendered empty.
func (b *Briefing) Compose(ctx context.Context) (string, error) {
	var sections []string

	if s := b.studySection(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := b.sessionsSection(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := b.tasksSection(); s != "" {
		sections = append(sections, s)
	}
	if s := b.eventsSection(); s != "" {
		sections = append(sections, s)
	}
	if s := b.applicationsSection(); s != "" {
		sections = append(sections, s)
	}
	if s := b.articlesSection(); s != "" {
		sections = append(sections, s)
	}

	if len(sections) == 0 {
		return "Nothing on the radar today.", nil
	}
	return strings.Join(sections, "\n\n"), nil
}

func (b *Briefing) studySection(ctx context.Context) string {
	queue, err := b.Forge.BuildQueue(ctx, "", forge.DefaultQueueLimit)
	if err != nil || queue.Total() == 0 {
		return ""
	}
	current, _, err := b.Forge.Streaks(time.Now())
	if err != nil {
		current = 0
	}

	var sb strings.Builder
	sb.WriteString("## Study\n")
	fmt.Fprintf(&sb, "- %d due now, %d struggling, %d new, %d coming up\n",
		len(queue.DueNow), len(queue.Struggling), len(queue.New), len(queue.UpNext))
	if current > 0 {
		fmt.Fprintf(&sb, "- Streak: %d days\n", current)
	}
	for i, c := range queue.DueNow {
		if i >= 3 {
			fmt.Fprintf(&sb, "- ...and %d more due\n", len(queue.DueNow)-3)
			break
		}
		fmt.Fprintf(&sb, "- Due: %s (mastery %.0f%%)\n", c.Term, c.MasteryLevel*100)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Briefing) sessionsSection(ctx context.Context) string {
	if b.Pulse == nil {
		return ""
	}
	result, err := b.Pulse.ActiveSessions(ctx)
	if err != nil || len(result.Active) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Active sessions\n")
	for _, s := range result.Active {
		desc := s.Description
		if desc == "" {
			desc = s.CWD
		}
		fmt.Fprintf(&sb, "- %s (%s, last seen %.0f min ago)\n",
			desc, shortID(s.SessionID), s.MinutesSinceHeartbeat)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Briefing) tasksSection() string {
	tasks, err := b.Store.ListTasks(store.TaskTodo, "", briefingTasks)
	if err != nil || len(tasks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Tasks\n")
	for _, t := range tasks {
		line := "- " + t.Title
		if t.DueDate != nil {
			line += " (due " + t.DueDate.Format("Jan 2") + ")"
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Briefing) eventsSection() string {
	events, err := b.Store.UpcomingEvents(7 * 24 * time.Hour)
	if err != nil || len(events) == 0 {
		return ""
	}
	if len(events) > briefingEvents {
		events = events[:briefingEvents]
	}
	var sb strings.Builder
	sb.WriteString("## Coming up\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "- %s — %s\n", e.StartsAt.Format("Mon Jan 2 15:04"), e.Title)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Briefing) applicationsSection() string {
	apps, err := b.Store.ListApplications("applied", 50)
	if err != nil || len(apps) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Applications\n")
	for _, a := range apps {
		posting, err := b.Store.GetJobPosting(a.PostingID)
		label := a.PostingID
		if err == nil {
			label = posting.Title + " @ " + posting.Company
		}
		age := ""
		if a.AppliedDate != nil {
			age = fmt.Sprintf(", applied %d days ago", int(time.Since(*a.AppliedDate).Hours()/24))
		}
		fmt.Fprintf(&sb, "- %s (%s%s)\n", label, a.Status, age)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Briefing) articlesSection() string {
	articles, err := b.Store.RecentFeedArticles(time.Now().Add(-24*time.Hour), briefingArticles)
	if err != nil || len(articles) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## New articles\n")
	for _, a := range articles {
		fmt.Fprintf(&sb, "- %s\n  %s\n", a.Title, a.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

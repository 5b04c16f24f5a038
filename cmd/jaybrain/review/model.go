// Package review is the interactive study session: one concept at a time,
// flip to reveal, grade the outcome, watch mastery move.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"jaybrain/internal/forge"
	"jaybrain/internal/store"
)

// Item is one card in the session. ObjectiveCode is set when the queue came
// from the interleaved builder.
type Item struct {
	Concept       *store.Concept
	ObjectiveCode string
}

// Summary is what a finished session reports back to the command.
type Summary struct {
	Reviewed   int
	Understood int
	Struggled  int
	Skipped    int
	NetMastery float64
}

type phase int

const (
	phaseFront phase = iota
	phaseBack
	phaseSaving
	phaseDone
)

// Styles
var (
	termStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	defStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	deltaUp      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	deltaDown    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	correctStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	frameStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)
)

// Model drives one study session.
type Model struct {
	engine *forge.Engine
	items  []Item

	idx        int
	phase      phase
	confidence int
	wasCorrect *bool
	toast      string

	bar      progress.Model
	renderer *glamour.TermRenderer
	rendered map[int]string
	summary  Summary
	width    int
}

// New builds a session over a non-empty queue.
func New(engine *forge.Engine, items []Item) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(70),
	)
	return Model{
		engine:     engine,
		items:      items,
		confidence: 3,
		bar:        bar,
		renderer:   renderer,
		rendered:   make(map[int]string),
		width:      80,
	}
}

// definition renders the current card's back as markdown, cached per card.
// A renderer failure falls back to the raw definition text.
func (m Model) definition() string {
	if cached, ok := m.rendered[m.idx]; ok {
		return cached
	}
	raw := m.items[m.idx].Concept.Definition
	out := defStyle.Render(raw)
	if m.renderer != nil {
		if pretty, err := m.renderer.Render(raw); err == nil {
			out = strings.TrimRight(pretty, "\n")
		}
	}
	m.rendered[m.idx] = out
	return out
}

// Result returns the session tally; meaningful once the program exits.
func (m Model) Result() Summary { return m.summary }

func (m Model) Init() tea.Cmd { return nil }

// reviewedMsg carries the outcome of one persisted review.
type reviewedMsg struct {
	applied *forge.ReviewApplied
	outcome string
	err     error
}

func (m Model) recordCmd(outcome string) tea.Cmd {
	conceptID := m.items[m.idx].Concept.ID
	in := forge.ReviewInput{
		Outcome:    outcome,
		Confidence: m.confidence,
		WasCorrect: m.wasCorrect,
	}
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		applied, err := engine.RecordReview(ctx, conceptID, in)
		return reviewedMsg{applied: applied, outcome: outcome, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 10; w > 10 && w < 60 {
			m.bar.Width = w
		}
		return m, nil

	case reviewedMsg:
		if msg.err != nil {
			m.toast = "save failed: " + msg.err.Error()
			m.phase = phaseBack
			return m, nil
		}
		m.summary.Reviewed++
		m.summary.NetMastery += msg.applied.Delta
		switch msg.outcome {
		case "understood":
			m.summary.Understood++
		case "struggled":
			m.summary.Struggled++
		}
		if msg.applied.Delta >= 0 {
			m.toast = deltaUp.Render(fmt.Sprintf("mastery %+.2f → %.2f", msg.applied.Delta, msg.applied.Mastery))
		} else {
			m.toast = deltaDown.Render(fmt.Sprintf("mastery %+.2f → %.2f", msg.applied.Delta, msg.applied.Mastery))
		}
		return m.advance()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" || key == "esc" {
		m.phase = phaseDone
		return m, tea.Quit
	}
	if m.phase == phaseSaving || m.phase == phaseDone {
		return m, nil
	}

	switch m.phase {
	case phaseFront:
		switch key {
		case " ", "enter":
			m.phase = phaseBack
			m.confidence = 3
			m.wasCorrect = nil
			m.toast = ""
		case "x":
			m.summary.Skipped++
			return m.advance()
		}

	case phaseBack:
		switch key {
		case "1", "2", "3", "4", "5":
			m.confidence = int(key[0] - '0')
		case "c":
			t := true
			m.wasCorrect = &t
		case "w":
			f := false
			m.wasCorrect = &f
		case "u":
			m.phase = phaseSaving
			return m, m.recordCmd("understood")
		case "r":
			m.phase = phaseSaving
			return m, m.recordCmd("reviewed")
		case "s":
			m.phase = phaseSaving
			return m, m.recordCmd("struggled")
		case "x":
			m.summary.Skipped++
			return m.advance()
		}
	}
	return m, nil
}

func (m Model) advance() (tea.Model, tea.Cmd) {
	m.idx++
	if m.idx >= len(m.items) {
		m.phase = phaseDone
		return m, tea.Quit
	}
	m.phase = phaseFront
	m.wasCorrect = nil
	return m, nil
}

func (m Model) View() string {
	if m.phase == phaseDone || m.idx >= len(m.items) {
		return ""
	}

	item := m.items[m.idx]
	c := item.Concept

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n\n",
		m.bar.ViewAs(float64(m.idx)/float64(len(m.items))),
		metaStyle.Render(fmt.Sprintf("%d/%d", m.idx+1, len(m.items))))

	b.WriteString(termStyle.Render(c.Term))
	b.WriteString("\n")
	meta := fmt.Sprintf("mastery %.2f · reviews %d", c.MasteryLevel, c.ReviewCount)
	if item.ObjectiveCode != "" {
		meta += " · " + item.ObjectiveCode
	}
	if c.Difficulty != "" {
		meta += " · " + c.Difficulty
	}
	b.WriteString(metaStyle.Render(meta))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseFront:
		b.WriteString(helpStyle.Render("space reveal · x skip · q quit"))
	case phaseBack, phaseSaving:
		b.WriteString(m.definition())
		b.WriteString("\n\n")
		conf := fmt.Sprintf("confidence: %d/5", m.confidence)
		if m.wasCorrect != nil {
			if *m.wasCorrect {
				conf += "  " + correctStyle.Render("[correct]")
			} else {
				conf += "  " + correctStyle.Render("[wrong]")
			}
		}
		b.WriteString(metaStyle.Render(conf))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("1-5 confidence · c/w correct/wrong · u understood · r reviewed · s struggled · x skip"))
	}

	if m.toast != "" {
		b.WriteString("\n\n")
		b.WriteString(m.toast)
	}

	return frameStyle.Width(min(m.width-2, 78)).Render(b.String())
}

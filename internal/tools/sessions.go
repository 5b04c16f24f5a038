package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jaybrain/internal/store"
)

func registerSessionTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "session_start",
		Description: "Start a work session and set it as the active session",
		Schema: Schema{
			Required: []string{"title"},
			Properties: map[string]Property{
				"title": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Title string `json:"title"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			sess := &store.Session{Title: in.Title}
			if err := deps.Store.CreateSession(sess); err != nil {
				return nil, err
			}
			if err := writeActiveSession(deps, sess.ID); err != nil {
				return nil, err
			}
			return sess, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "session_end",
		Description: "End a session with a summary, decisions, and next steps",
		Schema: Schema{
			Required: []string{"summary"},
			Properties: map[string]Property{
				"session_id": {Type: "string", Description: "Defaults to the active session"},
				"summary":    {Type: "string"},
				"decisions":  {Type: "array", Items: &PropertyItems{Type: "string"}},
				"next_steps": {Type: "array", Items: &PropertyItems{Type: "string"}},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SessionID string   `json:"session_id"`
				Summary   string   `json:"summary"`
				Decisions []string `json:"decisions"`
				NextSteps []string `json:"next_steps"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			id := in.SessionID
			if id == "" {
				id = readActiveSession(deps)
			}
			if id == "" {
				return errorResult{Error: "no active session"}, nil
			}
			if err := deps.Store.EndSession(id, in.Summary, in.Decisions, in.NextSteps); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("session", id), nil
				}
				return nil, err
			}
			clearActiveSession(deps, id)
			sess, err := deps.Store.GetSession(id)
			if err != nil {
				return nil, err
			}
			return sess, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "session_handoff",
		Description: "Write a human-readable handoff note for the session",
		Schema: Schema{
			Properties: map[string]Property{
				"session_id": {Type: "string", Description: "Defaults to the active session"},
				"notes":      {Type: "string", Description: "Extra context for whoever picks this up"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SessionID string `json:"session_id"`
				Notes     string `json:"notes"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			id := in.SessionID
			if id == "" {
				id = readActiveSession(deps)
			}
			if id == "" {
				return errorResult{Error: "no active session"}, nil
			}
			sess, err := deps.Store.GetSession(id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("session", id), nil
				}
				return nil, err
			}

			path, err := writeHandoff(deps, sess, in.Notes)
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": path, "session_id": id}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "session_recent",
		Description: "List recent sessions with summaries",
		Schema: Schema{
			Properties: map[string]Property{
				"days":  {Type: "integer", Default: 7},
				"limit": {Type: "integer", Default: 10},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Days  int `json:"days"`
				Limit int `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Days <= 0 {
				in.Days = 7
			}
			if in.Limit <= 0 {
				in.Limit = 10
			}
			since := time.Now().AddDate(0, 0, -in.Days)
			sessions, err := deps.Store.ListRecentSessions(since, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"sessions": sessions, "count": len(sessions)}, nil
		},
	})
}

// writeActiveSession records the current session id in the pointer file.
func writeActiveSession(deps *Deps, id string) error {
	path := deps.Cfg.ActiveSessionPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to prepare data dir: %w", err)
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o644)
}

func readActiveSession(deps *Deps) string {
	data, err := os.ReadFile(deps.Cfg.ActiveSessionPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// clearActiveSession removes the pointer only when it still names id.
func clearActiveSession(deps *Deps, id string) {
	if readActiveSession(deps) == id {
		os.Remove(deps.Cfg.ActiveSessionPath())
	}
}

func writeHandoff(deps *Deps, sess *store.Session, notes string) (string, error) {
	dir := deps.Cfg.SessionsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sessions dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Handoff: %s\n\n", sess.Title)
	fmt.Fprintf(&b, "- Session: %s\n- Started: %s\n", sess.ID, sess.StartedAt.Format(time.RFC3339))
	if sess.EndedAt != nil {
		fmt.Fprintf(&b, "- Ended: %s\n", sess.EndedAt.Format(time.RFC3339))
	}
	if sess.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", sess.Summary)
	}
	if len(sess.DecisionsMade) > 0 {
		b.WriteString("\n## Decisions\n\n")
		for _, d := range sess.DecisionsMade {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	if len(sess.NextSteps) > 0 {
		b.WriteString("\n## Next steps\n\n")
		for _, n := range sess.NextSteps {
			fmt.Fprintf(&b, "- [ ] %s\n", n)
		}
	}
	if notes != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", notes)
	}

	path := filepath.Join(dir, fmt.Sprintf("handoff_%s.md", sess.ID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write handoff: %w", err)
	}
	return path, nil
}

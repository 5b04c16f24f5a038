package tools

import (
	"context"
	"encoding/json"

	"jaybrain/internal/pulse"
)

func registerPulseTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "pulse_sessions",
		Description: "Active assistant sessions plus recently ended ones",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return deps.Pulse.ActiveSessions(ctx)
		},
	})

	reg.MustRegister(&Tool{
		Name:        "pulse_activity",
		Description: "Recent tool activity, optionally for one session",
		Schema: Schema{
			Properties: map[string]Property{
				"session_id": {Type: "string"},
				"limit":      {Type: "integer", Default: 50},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SessionID string `json:"session_id"`
				Limit     int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 50
			}
			entries, err := deps.Pulse.SessionActivity(ctx, in.SessionID, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"activity": entries, "count": len(entries)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "pulse_query",
		Description: "Resolve a session by id or prefix and summarise its tool usage",
		Schema: Schema{
			Required: []string{"session"},
			Properties: map[string]Property{
				"session": {Type: "string", Description: "Full id or prefix"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Session string `json:"session"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			return deps.Pulse.QuerySession(ctx, in.Session)
		},
	})

	reg.MustRegister(&Tool{
		Name:        "pulse_context",
		Description: "Read conversation turns from a session's transcript",
		Schema: Schema{
			Required: []string{"session"},
			Properties: map[string]Property{
				"session": {Type: "string", Description: "Full id or prefix"},
				"last_n":  {Type: "integer", Default: 5},
				"snippet": {Type: "string", Description: "Find this text and return a window around it"},
				"window":  {Type: "integer", Description: "Turns either side of a snippet hit", Default: 3},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Session string `json:"session"`
				LastN   int    `json:"last_n"`
				Snippet string `json:"snippet"`
				Window  int    `json:"window"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			return deps.Pulse.SessionContext(ctx, in.Session, pulse.ContextOpts{
				LastN:   in.LastN,
				Snippet: in.Snippet,
				Window:  in.Window,
			})
		},
	})
}

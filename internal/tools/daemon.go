package tools

import (
	"context"
	"encoding/json"

	"jaybrain/internal/daemon"
)

func registerDaemonTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "daemon_status",
		Description: "Scheduler daemon liveness: PID, heartbeat, registered modules",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			return daemon.Status(deps.Store, deps.LockPath), nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "heartbeat_log",
		Description: "Recent heartbeat check outcomes",
		Schema: Schema{
			Properties: map[string]Property{
				"check_name": {Type: "string"},
				"limit":      {Type: "integer", Default: 20},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				CheckName string `json:"check_name"`
				Limit     int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 20
			}
			entries, err := deps.Store.ListHeartbeatLog(in.CheckName, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": entries, "count": len(entries)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "daemon_lifecycle",
		Description: "Daemon lifecycle events (startups, refusals, stops)",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Default: 20},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Limit int `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 20
			}
			events, err := deps.Store.ListLifecycleEvents(in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"events": events, "count": len(events)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "notify_send",
		Description: "Send a notification through the configured transport",
		Schema: Schema{
			Required: []string{"message"},
			Properties: map[string]Property{
				"title":   {Type: "string"},
				"message": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Title   string `json:"title"`
				Message string `json:"message"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Notifier.Notify(ctx, in.Title, in.Message); err != nil {
				return nil, err
			}
			return statusResult{Status: "sent"}, nil
		},
	})
}

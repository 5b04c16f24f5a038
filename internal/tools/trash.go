package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"jaybrain/internal/store"
	"jaybrain/internal/trash"
)

func registerTrashTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "trash_put",
		Description: "Soft-delete a path into the recycle bin",
		Schema: Schema{
			Required: []string{"path"},
			Properties: map[string]Property{
				"path":     {Type: "string"},
				"category": {Type: "string", Description: "bytecode, cache, build_artifact, log, temp, source, general; inferred when omitted"},
				"reason":   {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Path     string `json:"path"`
				Category string `json:"category"`
				Reason   string `json:"reason"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			entry, err := deps.Trash.Trash(ctx, in.Path, in.Category, in.Reason, false)
			if err != nil {
				return nil, err
			}
			return entry, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "trash_list",
		Description: "List recycle-bin entries",
		Schema: Schema{
			Properties: map[string]Property{
				"limit": {Type: "integer", Default: 50},
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
				in.Limit = 50
			}
			entries, err := deps.Trash.List(in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": entries, "count": len(entries)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "trash_restore",
		Description: "Restore a trashed path; fails if the original location is occupied",
		Schema: Schema{
			Required: []string{"trash_id"},
			Properties: map[string]Property{
				"trash_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TrashID string `json:"trash_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			entry, err := deps.Trash.Restore(ctx, in.TrashID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("trash entry", in.TrashID), nil
				}
				if errors.Is(err, trash.ErrTargetOccupied) {
					return statusResult{Status: "target_occupied", Detail: in.TrashID}, nil
				}
				return nil, err
			}
			return map[string]any{"status": "restored", "path": entry.OriginalPath}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "trash_sweep",
		Description: "Permanently delete entries past their retention",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			n, err := deps.Trash.SweepExpired(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"swept": n}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "trash_scan",
		Description: "Scan a directory for trashable artifacts",
		Schema: Schema{
			Required: []string{"root"},
			Properties: map[string]Property{
				"root": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Root string `json:"root"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if strings.TrimSpace(in.Root) == "" {
				return nil, errors.New("validation: root is required")
			}
			candidates, err := deps.Trash.Scan(ctx, in.Root)
			if err != nil {
				return nil, err
			}

			auto := 0
			for _, c := range candidates {
				if c.AutoOK {
					auto++
				}
			}
			return map[string]any{
				"candidates":     candidates,
				"count":          len(candidates),
				"auto_trashable": auto,
			}, nil
		},
	})
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"jaybrain/internal/retrieval"
	"jaybrain/internal/store"
)

func registerMemoryTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "remember",
		Description: "Store a memory with category, tags, and importance",
		Schema: Schema{
			Required: []string{"content"},
			Properties: map[string]Property{
				"content":    {Type: "string", Description: "What to remember"},
				"category":   {Type: "string", Enum: []any{"semantic", "episodic", "procedural", "decision", "preference"}, Default: "semantic"},
				"tags":       {Type: "array", Items: &PropertyItems{Type: "string"}},
				"importance": {Type: "number", Description: "0.0-1.0", Default: 0.5},
				"session_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Content    string   `json:"content"`
				Category   string   `json:"category"`
				Tags       []string `json:"tags"`
				Importance *float64 `json:"importance"`
				SessionID  string   `json:"session_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			m := &store.Memory{
				Content:    in.Content,
				Category:   in.Category,
				Tags:       in.Tags,
				Importance: 0.5,
				SessionID:  in.SessionID,
			}
			if in.Importance != nil {
				m.Importance = *in.Importance
			}
			if err := deps.Retrieval.Remember(ctx, m); err != nil {
				return nil, err
			}
			return m, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "recall",
		Description: "Hybrid keyword+vector memory search with decay scoring",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":    {Type: "string"},
				"category": {Type: "string"},
				"limit":    {Type: "integer", Default: 5},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query    string `json:"query"`
				Category string `json:"category"`
				Limit    int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			hits, err := deps.Retrieval.Recall(ctx, retrieval.RecallQuery{
				Query:    in.Query,
				Category: in.Category,
				Limit:    in.Limit,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"memories": hits, "count": len(hits)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "deep_recall",
		Description: "Wider recall that also searches the memory archive",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {Type: "string"},
				"limit": {Type: "integer", Default: 20},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 20
			}
			hits, err := deps.Retrieval.Recall(ctx, retrieval.RecallQuery{
				Query:           in.Query,
				Limit:           in.Limit,
				IncludeArchived: true,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"memories": hits, "count": len(hits)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forget",
		Description: "Archive a memory (moved to the archive, removed from recall)",
		Schema: Schema{
			Required: []string{"memory_id"},
			Properties: map[string]Property{
				"memory_id": {Type: "string"},
				"reason":    {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				MemoryID string `json:"memory_id"`
				Reason   string `json:"reason"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.ArchiveMemory(in.MemoryID, in.Reason); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("memory", in.MemoryID), nil
				}
				return nil, err
			}
			return statusResult{Status: "archived", Detail: in.MemoryID}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "memory_clusters",
		Description: "Find groups of near-duplicate memories by vector similarity",
		Schema: Schema{
			Properties: map[string]Property{
				"min_similarity": {Type: "number", Default: 0.95},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				MinSimilarity float64 `json:"min_similarity"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.MinSimilarity <= 0 {
				in.MinSimilarity = 0.95
			}
			clusters, err := deps.Retrieval.FindClusters(ctx, in.MinSimilarity)
			if err != nil {
				return nil, err
			}
			return map[string]any{"clusters": clusters, "count": len(clusters)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "memory_update",
		Description: "Edit a memory's content, tags, or importance",
		Schema: Schema{
			Required: []string{"memory_id"},
			Properties: map[string]Property{
				"memory_id":  {Type: "string"},
				"content":    {Type: "string"},
				"tags":       {Type: "array", Items: &PropertyItems{Type: "string"}},
				"importance": {Type: "number"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				MemoryID   string   `json:"memory_id"`
				Content    string   `json:"content"`
				Tags       []string `json:"tags"`
				Importance *float64 `json:"importance"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.UpdateMemory(in.MemoryID, in.Content, in.Tags, in.Importance); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("memory", in.MemoryID), nil
				}
				return nil, fmt.Errorf("failed to update memory: %w", err)
			}
			m, err := deps.Store.GetMemory(in.MemoryID)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
	})
}

package tools

import (
	"context"
	"encoding/json"
	"errors"

	"jaybrain/internal/retrieval"
	"jaybrain/internal/store"
)

func registerKnowledgeTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "knowledge_store",
		Description: "Store a titled knowledge entry",
		Schema: Schema{
			Required: []string{"title", "content"},
			Properties: map[string]Property{
				"title":    {Type: "string"},
				"content":  {Type: "string"},
				"category": {Type: "string"},
				"tags":     {Type: "array", Items: &PropertyItems{Type: "string"}},
				"source":   {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Title    string   `json:"title"`
				Content  string   `json:"content"`
				Category string   `json:"category"`
				Tags     []string `json:"tags"`
				Source   string   `json:"source"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			k := &store.Knowledge{
				Title:    in.Title,
				Content:  in.Content,
				Category: in.Category,
				Tags:     in.Tags,
				Source:   in.Source,
			}
			if err := deps.Retrieval.Learn(ctx, k); err != nil {
				return nil, err
			}
			return k, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "knowledge_search",
		Description: "Hybrid search over knowledge entries",
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
			hits, err := deps.Retrieval.RecallKnowledge(ctx, retrieval.RecallQuery{
				Query:    in.Query,
				Category: in.Category,
				Limit:    in.Limit,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": hits, "count": len(hits)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "knowledge_update",
		Description: "Update knowledge fields (allowlist-checked)",
		Schema: Schema{
			Required: []string{"knowledge_id"},
			Properties: map[string]Property{
				"knowledge_id": {Type: "string"},
				"title":        {Type: "string"},
				"content":      {Type: "string"},
				"category":     {Type: "string"},
				"source":       {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in map[string]any
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			id, _ := in["knowledge_id"].(string)
			if id == "" {
				return nil, errors.New("validation: knowledge_id is required")
			}
			delete(in, "knowledge_id")
			if len(in) == 0 {
				return nil, errors.New("validation: no fields to update")
			}
			if err := deps.Store.UpdateKnowledge(id, in); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("knowledge", id), nil
				}
				return nil, err
			}
			k, err := deps.Store.GetKnowledge(id)
			if err != nil {
				return nil, err
			}
			return k, nil
		},
	})
}

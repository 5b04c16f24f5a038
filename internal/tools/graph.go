package tools

import (
	"context"
	"encoding/json"
	"errors"

	"jaybrain/internal/store"
)

func registerGraphTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "graph_add_entity",
		Description: "Add or merge a typed entity (keyed on name + type)",
		Schema: Schema{
			Required: []string{"name", "entity_type"},
			Properties: map[string]Property{
				"name":        {Type: "string"},
				"entity_type": {Type: "string", Description: "person, project, tool, skill, concept, ..."},
				"description": {Type: "string"},
				"aliases":     {Type: "array", Items: &PropertyItems{Type: "string"}},
				"memory_ids":  {Type: "array", Items: &PropertyItems{Type: "string"}},
				"properties":  {Type: "object"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Name        string         `json:"name"`
				EntityType  string         `json:"entity_type"`
				Description string         `json:"description"`
				Aliases     []string       `json:"aliases"`
				MemoryIDs   []string       `json:"memory_ids"`
				Properties  map[string]any `json:"properties"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			e, err := deps.Store.AddEntity(&store.Entity{
				Name:        in.Name,
				EntityType:  in.EntityType,
				Description: in.Description,
				Aliases:     in.Aliases,
				MemoryIDs:   in.MemoryIDs,
				Properties:  in.Properties,
			})
			if err != nil {
				return nil, err
			}
			return e, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "graph_add_relationship",
		Description: "Add or merge a typed weighted edge between entities (by id or unique name)",
		Schema: Schema{
			Required: []string{"source", "target", "rel_type"},
			Properties: map[string]Property{
				"source":       {Type: "string", Description: "Entity id or unique name"},
				"target":       {Type: "string"},
				"rel_type":     {Type: "string"},
				"weight":       {Type: "number", Default: 0.5},
				"evidence_ids": {Type: "array", Items: &PropertyItems{Type: "string"}},
				"properties":   {Type: "object"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Source      string         `json:"source"`
				Target      string         `json:"target"`
				RelType     string         `json:"rel_type"`
				Weight      *float64       `json:"weight"`
				EvidenceIDs []string       `json:"evidence_ids"`
				Properties  map[string]any `json:"properties"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			rel, err := deps.Store.AddRelationship(in.Source, in.Target, in.RelType, in.Weight, in.EvidenceIDs, in.Properties)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return errorResult{Error: err.Error()}, nil
				}
				return nil, err
			}
			return rel, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "graph_query",
		Description: "BFS neighborhood around an entity",
		Schema: Schema{
			Required: []string{"center"},
			Properties: map[string]Property{
				"center":      {Type: "string", Description: "Entity id or unique name"},
				"depth":       {Type: "integer", Default: 2},
				"entity_type": {Type: "string", Description: "Restrict traversal to one type"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Center     string `json:"center"`
				Depth      int    `json:"depth"`
				EntityType string `json:"entity_type"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Depth <= 0 {
				in.Depth = 2
			}
			hood, err := deps.Store.QueryNeighborhood(in.Center, in.Depth, in.EntityType)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("entity", in.Center), nil
				}
				return nil, err
			}
			return hood, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "graph_search",
		Description: "Case-insensitive substring search on entity names",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":       {Type: "string"},
				"entity_type": {Type: "string"},
				"limit":       {Type: "integer", Default: 20},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query      string `json:"query"`
				EntityType string `json:"entity_type"`
				Limit      int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			entities, err := deps.Store.SearchEntities(in.Query, in.EntityType, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"entities": entities, "count": len(entities)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "graph_list",
		Description: "List entities, optionally by type",
		Schema: Schema{
			Properties: map[string]Property{
				"entity_type": {Type: "string"},
				"limit":       {Type: "integer", Default: 50},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				EntityType string `json:"entity_type"`
				Limit      int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			entities, err := deps.Store.ListEntities(in.EntityType, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"entities": entities, "count": len(entities)}, nil
		},
	})
}

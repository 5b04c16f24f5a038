package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jaybrain/internal/store"
)

func registerLifeTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "life_domain_add",
		Description: "Add a life domain with a weekly hours target",
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name":           {Type: "string"},
				"priority":       {Type: "integer", Description: "Higher sorts earlier", Default: 0},
				"hours_per_week": {Type: "number", Default: 0},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Name         string  `json:"name"`
				Priority     int     `json:"priority"`
				HoursPerWeek float64 `json:"hours_per_week"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			d := &store.LifeDomain{Name: in.Name, Priority: in.Priority, HoursPerWeek: in.HoursPerWeek}
			if err := deps.Store.CreateLifeDomain(d); err != nil {
				return nil, err
			}
			return d, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "life_goal_add",
		Description: "Add a goal to a life domain",
		Schema: Schema{
			Required: []string{"domain", "title"},
			Properties: map[string]Property{
				"domain":      {Type: "string", Description: "Domain id or name"},
				"title":       {Type: "string"},
				"target_date": {Type: "string", Description: "YYYY-MM-DD"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Domain     string `json:"domain"`
				Title      string `json:"title"`
				TargetDate string `json:"target_date"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			d, err := deps.Store.GetLifeDomain(in.Domain)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("life domain", in.Domain), nil
				}
				return nil, err
			}

			g := &store.LifeGoal{DomainID: d.ID, Title: in.Title, Status: "active"}
			if in.TargetDate != "" {
				target, err := time.ParseInLocation("2006-01-02", in.TargetDate, time.Local)
				if err != nil {
					return nil, errors.New("validation: target_date must be YYYY-MM-DD")
				}
				g.TargetDate = &target
			}
			if err := deps.Store.CreateLifeGoal(g); err != nil {
				return nil, err
			}
			return g, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "life_goal_update",
		Description: "Update a goal's progress and status",
		Schema: Schema{
			Required: []string{"goal_id", "progress"},
			Properties: map[string]Property{
				"goal_id":  {Type: "string"},
				"progress": {Type: "number", Description: "0.0-1.0"},
				"status":   {Type: "string", Enum: []any{"active", "paused", "done", "abandoned"}},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				GoalID   string  `json:"goal_id"`
				Progress float64 `json:"progress"`
				Status   string  `json:"status"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.UpdateLifeGoalProgress(in.GoalID, in.Progress, in.Status); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("goal", in.GoalID), nil
				}
				return nil, err
			}
			g, err := deps.Store.GetLifeGoal(in.GoalID)
			if err != nil {
				return nil, err
			}
			return g, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "life_goal_list",
		Description: "List goals, optionally by domain and status",
		Schema: Schema{
			Properties: map[string]Property{
				"domain": {Type: "string", Description: "Domain id or name"},
				"status": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Domain string `json:"domain"`
				Status string `json:"status"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			domainID := ""
			if in.Domain != "" {
				d, err := deps.Store.GetLifeDomain(in.Domain)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return notFound("life domain", in.Domain), nil
					}
					return nil, err
				}
				domainID = d.ID
			}
			goals, err := deps.Store.ListLifeGoals(domainID, in.Status)
			if err != nil {
				return nil, err
			}
			return map[string]any{"goals": goals, "count": len(goals)}, nil
		},
	})
}

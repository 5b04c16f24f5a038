package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jaybrain/internal/store"
)

func registerTaskTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "task_create",
		Description: "Create a task",
		Schema: Schema{
			Required: []string{"title"},
			Properties: map[string]Property{
				"title":       {Type: "string"},
				"description": {Type: "string"},
				"priority":    {Type: "string", Enum: []any{"low", "medium", "high", "critical"}, Default: "medium"},
				"project":     {Type: "string"},
				"tags":        {Type: "array", Items: &PropertyItems{Type: "string"}},
				"due_date":    {Type: "string", Description: "YYYY-MM-DD"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Title       string   `json:"title"`
				Description string   `json:"description"`
				Priority    string   `json:"priority"`
				Project     string   `json:"project"`
				Tags        []string `json:"tags"`
				DueDate     string   `json:"due_date"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			t := &store.Task{
				Title:       in.Title,
				Description: in.Description,
				Status:      store.TaskTodo,
				Priority:    in.Priority,
				Project:     in.Project,
				Tags:        in.Tags,
			}
			if in.DueDate != "" {
				due, err := time.ParseInLocation("2006-01-02", in.DueDate, time.Local)
				if err != nil {
					return nil, errors.New("validation: due_date must be YYYY-MM-DD")
				}
				t.DueDate = &due
			}
			if err := deps.Store.CreateTask(t); err != nil {
				return nil, err
			}
			return t, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_list",
		Description: "List tasks, optionally filtered by status and project",
		Schema: Schema{
			Properties: map[string]Property{
				"status":  {Type: "string", Enum: []any{"todo", "in_progress", "blocked", "done", "cancelled"}},
				"project": {Type: "string"},
				"limit":   {Type: "integer", Default: 50},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Status  string `json:"status"`
				Project string `json:"project"`
				Limit   int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 50
			}
			tasks, err := deps.Store.ListTasks(in.Status, in.Project, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"tasks": tasks, "count": len(tasks)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_update",
		Description: "Update task fields (allowlist-checked)",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id":     {Type: "string"},
				"title":       {Type: "string"},
				"description": {Type: "string"},
				"status":      {Type: "string", Enum: []any{"todo", "in_progress", "blocked", "done", "cancelled"}},
				"priority":    {Type: "string", Enum: []any{"low", "medium", "high", "critical"}},
				"project":     {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in map[string]any
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			id, _ := in["task_id"].(string)
			if id == "" {
				return nil, errors.New("validation: task_id is required")
			}
			delete(in, "task_id")
			if len(in) == 0 {
				return nil, errors.New("validation: no fields to update")
			}
			if err := deps.Store.UpdateTask(id, in); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("task", id), nil
				}
				return nil, err
			}
			t, err := deps.Store.GetTask(id)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_queue_push",
		Description: "Insert a task into the work queue at a position (1-based)",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id":  {Type: "string"},
				"position": {Type: "integer", Description: "1-based; 0 appends", Default: 0},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TaskID   string `json:"task_id"`
				Position int    `json:"position"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			status, err := deps.Store.QueuePush(in.TaskID, in.Position)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("task", in.TaskID), nil
				}
				return nil, err
			}
			return statusResult{Status: status, Detail: in.TaskID}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_queue_pop",
		Description: "Take the front task off the queue",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			t, err := deps.Store.QueuePop()
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return statusResult{Status: "queue_empty"}, nil
				}
				return nil, err
			}
			return t, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_queue_list",
		Description: "Show the work queue in order",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			tasks, err := deps.Store.QueueList()
			if err != nil {
				return nil, err
			}
			return map[string]any{"queue": tasks, "count": len(tasks)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "task_queue_remove",
		Description: "Remove a task from the queue and close the gap",
		Schema: Schema{
			Required: []string{"task_id"},
			Properties: map[string]Property{
				"task_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TaskID string `json:"task_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.QueueRemove(in.TaskID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("task", in.TaskID), nil
				}
				return nil, err
			}
			return statusResult{Status: "removed", Detail: in.TaskID}, nil
		},
	})
}

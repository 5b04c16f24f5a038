package tools

import (
	"context"
	"encoding/json"
	"errors"

	"jaybrain/internal/store"
)

func registerJobTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "jobs_add",
		Description: "Record a job posting; duplicate URLs return the existing posting",
		Schema: Schema{
			Required: []string{"title", "company"},
			Properties: map[string]Property{
				"title":            {Type: "string"},
				"company":          {Type: "string"},
				"url":              {Type: "string"},
				"description":      {Type: "string"},
				"required_skills":  {Type: "array", Items: &PropertyItems{Type: "string"}},
				"preferred_skills": {Type: "array", Items: &PropertyItems{Type: "string"}},
				"salary_min":       {Type: "integer"},
				"salary_max":       {Type: "integer"},
				"work_mode":        {Type: "string", Enum: []any{"remote", "hybrid", "onsite"}},
				"location":         {Type: "string"},
				"board_id":         {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Title           string   `json:"title"`
				Company         string   `json:"company"`
				URL             string   `json:"url"`
				Description     string   `json:"description"`
				RequiredSkills  []string `json:"required_skills"`
				PreferredSkills []string `json:"preferred_skills"`
				SalaryMin       int      `json:"salary_min"`
				SalaryMax       int      `json:"salary_max"`
				WorkMode        string   `json:"work_mode"`
				Location        string   `json:"location"`
				BoardID         string   `json:"board_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			if in.URL != "" {
				if existing, err := deps.Store.FindPostingByURL(in.URL); err == nil {
					return map[string]any{"status": "already_known", "posting": existing}, nil
				}
			}
			p := &store.JobPosting{
				Title:           in.Title,
				Company:         in.Company,
				URL:             in.URL,
				Description:     in.Description,
				RequiredSkills:  in.RequiredSkills,
				PreferredSkills: in.PreferredSkills,
				SalaryMin:       in.SalaryMin,
				SalaryMax:       in.SalaryMax,
				WorkMode:        in.WorkMode,
				Location:        in.Location,
				BoardID:         in.BoardID,
			}
			if err := deps.Store.CreateJobPosting(p); err != nil {
				return nil, err
			}
			return p, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "jobs_search",
		Description: "Keyword search over stored job postings",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {Type: "string"},
				"limit": {Type: "integer", Default: 10},
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
				in.Limit = 10
			}
			hits, err := deps.Store.SearchKeyword(store.JobPostingFTSTable, in.Query, in.Limit)
			if err != nil {
				return nil, err
			}

			postings := make([]*store.JobPosting, 0, len(hits))
			for _, h := range hits {
				if p, err := deps.Store.GetJobPosting(h.ID); err == nil {
					postings = append(postings, p)
				}
			}
			return map[string]any{"postings": postings, "count": len(postings)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "application_create",
		Description: "Start tracking an application for a posting",
		Schema: Schema{
			Required: []string{"posting_id"},
			Properties: map[string]Property{
				"posting_id": {Type: "string"},
				"notes":      {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				PostingID string `json:"posting_id"`
				Notes     string `json:"notes"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if _, err := deps.Store.GetJobPosting(in.PostingID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("posting", in.PostingID), nil
				}
				return nil, err
			}
			a := &store.Application{PostingID: in.PostingID, Status: "discovered", Notes: in.Notes}
			if err := deps.Store.CreateApplication(a); err != nil {
				return nil, err
			}
			return a, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "application_update",
		Description: "Move an application through the pipeline",
		Schema: Schema{
			Required: []string{"application_id", "status"},
			Properties: map[string]Property{
				"application_id": {Type: "string"},
				"status": {Type: "string", Enum: []any{
					"discovered", "preparing", "ready", "applied", "interviewing",
					"offered", "accepted", "rejected", "withdrawn"}},
				"notes": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ApplicationID string `json:"application_id"`
				Status        string `json:"status"`
				Notes         string `json:"notes"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.UpdateApplicationStatus(in.ApplicationID, in.Status, in.Notes); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("application", in.ApplicationID), nil
				}
				return nil, err
			}
			a, err := deps.Store.GetApplication(in.ApplicationID)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "application_list",
		Description: "List applications, optionally by status",
		Schema: Schema{
			Properties: map[string]Property{
				"status": {Type: "string"},
				"limit":  {Type: "integer", Default: 50},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Status string `json:"status"`
				Limit  int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 50
			}
			apps, err := deps.Store.ListApplications(in.Status, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"applications": apps, "count": len(apps)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "board_add",
		Description: "Track a job board URL for change detection",
		Schema: Schema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url":        {Type: "string"},
				"board_type": {Type: "string"},
				"tags":       {Type: "array", Items: &PropertyItems{Type: "string"}},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				URL       string   `json:"url"`
				BoardType string   `json:"board_type"`
				Tags      []string `json:"tags"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if _, err := deps.Cfg.ValidateURL(ctx, in.URL); err != nil {
				return nil, err
			}
			b := &store.JobBoard{URL: in.URL, BoardType: in.BoardType, Tags: in.Tags, Active: true}
			if err := deps.Store.CreateJobBoard(b); err != nil {
				return nil, err
			}
			return b, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "board_list",
		Description: "List tracked job boards",
		Schema: Schema{
			Properties: map[string]Property{
				"active_only": {Type: "boolean", Default: true},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ActiveOnly *bool `json:"active_only"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			activeOnly := in.ActiveOnly == nil || *in.ActiveOnly
			boards, err := deps.Store.ListJobBoards(activeOnly)
			if err != nil {
				return nil, err
			}
			return map[string]any{"boards": boards, "count": len(boards)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "interview_prep_add",
		Description: "Attach an interview prep topic to an application",
		Schema: Schema{
			Required: []string{"application_id", "topic"},
			Properties: map[string]Property{
				"application_id": {Type: "string"},
				"topic":          {Type: "string"},
				"notes":          {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ApplicationID string `json:"application_id"`
				Topic         string `json:"topic"`
				Notes         string `json:"notes"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if _, err := deps.Store.GetApplication(in.ApplicationID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("application", in.ApplicationID), nil
				}
				return nil, err
			}
			p := &store.InterviewPrep{ApplicationID: in.ApplicationID, Topic: in.Topic, Notes: in.Notes}
			if err := deps.Store.AddInterviewPrep(p); err != nil {
				return nil, err
			}
			return p, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "interview_prep_list",
		Description: "List prep topics for an application",
		Schema: Schema{
			Required: []string{"application_id"},
			Properties: map[string]Property{
				"application_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ApplicationID string `json:"application_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			preps, err := deps.Store.ListInterviewPrep(in.ApplicationID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"prep": preps, "count": len(preps)}, nil
		},
	})
}

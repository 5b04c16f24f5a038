package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jaybrain/internal/store"
)

func registerAuxTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "feed_add_source",
		Description: "Track a news feed for the poll job",
		Schema: Schema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url":  {Type: "string"},
				"name": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				URL  string `json:"url"`
				Name string `json:"name"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if _, err := deps.Cfg.ValidateURL(ctx, in.URL); err != nil {
				return nil, err
			}
			src := &store.FeedSource{URL: in.URL, Name: in.Name, Active: true}
			if err := deps.Store.AddFeedSource(src); err != nil {
				return nil, err
			}
			return src, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "feed_list_sources",
		Description: "List tracked news feeds",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			sources, err := deps.Store.ListFeedSources(false)
			if err != nil {
				return nil, err
			}
			return map[string]any{"sources": sources, "count": len(sources)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "feed_recent_articles",
		Description: "Articles discovered in the last N days",
		Schema: Schema{
			Properties: map[string]Property{
				"days":  {Type: "integer", Default: 3},
				"limit": {Type: "integer", Default: 20},
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
				in.Days = 3
			}
			if in.Limit <= 0 {
				in.Limit = 20
			}
			since := time.Now().AddDate(0, 0, -in.Days)
			articles, err := deps.Store.RecentFeedArticles(since, in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"articles": articles, "count": len(articles)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "events_upcoming",
		Description: "Discovered events starting within a horizon",
		Schema: Schema{
			Properties: map[string]Property{
				"days": {Type: "integer", Default: 7},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Days int `json:"days"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Days <= 0 {
				in.Days = 7
			}
			events, err := deps.Store.UpcomingEvents(time.Duration(in.Days) * 24 * time.Hour)
			if err != nil {
				return nil, err
			}
			return map[string]any{"events": events, "count": len(events)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "cram_add_topic",
		Description: "Add a last-mile cram topic",
		Schema: Schema{
			Required: []string{"topic"},
			Properties: map[string]Property{
				"topic":    {Type: "string"},
				"priority": {Type: "integer", Default: 0},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Topic    string `json:"topic"`
				Priority int    `json:"priority"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			topic, err := deps.Store.AddCramTopic(in.Topic, in.Priority)
			if err != nil {
				return nil, err
			}
			return topic, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "cram_list_topics",
		Description: "List cram topics by priority",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			topics, err := deps.Store.ListCramTopics()
			if err != nil {
				return nil, err
			}
			return map[string]any{"topics": topics, "count": len(topics)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "cram_mark_covered",
		Description: "Mark a cram topic covered (or not)",
		Schema: Schema{
			Required: []string{"topic_id"},
			Properties: map[string]Property{
				"topic_id": {Type: "string"},
				"covered":  {Type: "boolean", Default: true},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				TopicID string `json:"topic_id"`
				Covered *bool  `json:"covered"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			covered := in.Covered == nil || *in.Covered
			if err := deps.Store.SetCramTopicCovered(in.TopicID, covered); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("cram topic", in.TopicID), nil
				}
				return nil, err
			}
			return statusResult{Status: "updated", Detail: in.TopicID}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "file_deletions_recent",
		Description: "Recently observed filesystem deletions",
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
			deletions, err := deps.Store.RecentFileDeletions(in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"deletions": deletions, "count": len(deletions)}, nil
		},
	})
}

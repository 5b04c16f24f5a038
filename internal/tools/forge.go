package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"jaybrain/internal/forge"
	"jaybrain/internal/store"
)

func registerForgeTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "forge_add_subject",
		Description: "Create a study subject (one exam)",
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name":       {Type: "string"},
				"exam_date":  {Type: "string", Description: "YYYY-MM-DD"},
				"pass_score": {Type: "number", Default: 0.8},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Name      string  `json:"name"`
				ExamDate  string  `json:"exam_date"`
				PassScore float64 `json:"pass_score"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.PassScore <= 0 {
				in.PassScore = 0.8
			}
			sub := &store.Subject{Name: in.Name, ExamDate: in.ExamDate, PassScore: in.PassScore}
			if err := deps.Store.CreateSubject(sub); err != nil {
				return nil, err
			}
			return sub, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_add_objective",
		Description: "Add a weighted syllabus objective to a subject",
		Schema: Schema{
			Required: []string{"subject_id", "code", "title"},
			Properties: map[string]Property{
				"subject_id":  {Type: "string"},
				"code":        {Type: "string", Description: `e.g. "1.1"`},
				"title":       {Type: "string"},
				"domain":      {Type: "string"},
				"exam_weight": {Type: "number", Description: "0.0-1.0"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID  string  `json:"subject_id"`
				Code       string  `json:"code"`
				Title      string  `json:"title"`
				Domain     string  `json:"domain"`
				ExamWeight float64 `json:"exam_weight"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			o := &store.Objective{
				SubjectID:  in.SubjectID,
				Code:       in.Code,
				Title:      in.Title,
				Domain:     in.Domain,
				ExamWeight: in.ExamWeight,
			}
			if err := deps.Store.CreateObjective(o); err != nil {
				return nil, err
			}
			return o, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_add_concept",
		Description: "Add a study concept, optionally linked to objectives",
		Schema: Schema{
			Required: []string{"term", "definition"},
			Properties: map[string]Property{
				"term":          {Type: "string"},
				"definition":    {Type: "string"},
				"category":      {Type: "string"},
				"difficulty":    {Type: "string", Enum: []any{"beginner", "intermediate", "advanced"}, Default: "intermediate"},
				"bloom_level":   {Type: "string", Enum: []any{"remember", "understand", "apply", "analyze"}, Default: "understand"},
				"tags":          {Type: "array", Items: &PropertyItems{Type: "string"}},
				"subject_id":    {Type: "string"},
				"objective_ids": {Type: "array", Items: &PropertyItems{Type: "string"}},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Term         string   `json:"term"`
				Definition   string   `json:"definition"`
				Category     string   `json:"category"`
				Difficulty   string   `json:"difficulty"`
				BloomLevel   string   `json:"bloom_level"`
				Tags         []string `json:"tags"`
				SubjectID    string   `json:"subject_id"`
				ObjectiveIDs []string `json:"objective_ids"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			c := &store.Concept{
				Term:       in.Term,
				Definition: in.Definition,
				Category:   in.Category,
				Difficulty: in.Difficulty,
				BloomLevel: in.BloomLevel,
				Tags:       in.Tags,
				SubjectID:  in.SubjectID,
			}
			if err := deps.Store.CreateConcept(c); err != nil {
				return nil, err
			}
			for _, oid := range in.ObjectiveIDs {
				if err := deps.Store.LinkConceptObjective(c.ID, oid); err != nil {
					return nil, err
				}
			}
			return c, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_record_review",
		Description: "Record one review: outcome, confidence, optional correctness",
		Schema: Schema{
			Required: []string{"concept_id", "outcome", "confidence"},
			Properties: map[string]Property{
				"concept_id":  {Type: "string"},
				"outcome":     {Type: "string", Enum: []any{"understood", "reviewed", "struggled", "skipped"}},
				"confidence":  {Type: "integer", Description: "1-5"},
				"was_correct": {Type: "boolean", Description: "Omit when correctness is unknown"},
				"notes":       {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ConceptID  string `json:"concept_id"`
				Outcome    string `json:"outcome"`
				Confidence int    `json:"confidence"`
				WasCorrect *bool  `json:"was_correct"`
				Notes      string `json:"notes"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			applied, err := deps.Forge.RecordReview(ctx, in.ConceptID, forge.ReviewInput{
				Outcome:    in.Outcome,
				Confidence: in.Confidence,
				WasCorrect: in.WasCorrect,
				Notes:      in.Notes,
			})
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("concept", in.ConceptID), nil
				}
				return nil, err
			}
			return applied, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_study_queue",
		Description: "Build the study queue: interleaved when subject_id given, bucketed otherwise",
		Schema: Schema{
			Properties: map[string]Property{
				"subject_id": {Type: "string"},
				"limit":      {Type: "integer", Default: 20},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID string `json:"subject_id"`
				Limit     int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.SubjectID != "" {
				items, err := deps.Forge.BuildInterleaved(ctx, in.SubjectID, in.Limit)
				if err != nil {
					return nil, err
				}
				return map[string]any{"mode": "interleaved", "items": items, "count": len(items)}, nil
			}
			q, err := deps.Forge.BuildQueue(ctx, "", in.Limit)
			if err != nil {
				return nil, err
			}
			return map[string]any{"mode": "bucketed", "queue": q, "count": q.Total()}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_stats",
		Description: "Study totals and streaks",
		Schema: Schema{
			Properties: map[string]Property{
				"subject_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID string `json:"subject_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			concepts, err := deps.Store.ListConcepts(in.SubjectID, 0)
			if err != nil {
				return nil, err
			}
			var reviewed, mastered int
			var masterySum float64
			for _, c := range concepts {
				if c.ReviewCount > 0 {
					reviewed++
				}
				if c.MasteryLevel >= 0.8 {
					mastered++
				}
				masterySum += c.MasteryLevel
			}
			avg := 0.0
			if len(concepts) > 0 {
				avg = masterySum / float64(len(concepts))
			}
			current, longest, err := deps.Forge.Streaks(time.Now())
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"total_concepts":    len(concepts),
				"reviewed_concepts": reviewed,
				"mastered_concepts": mastered,
				"avg_mastery":       avg,
				"current_streak":    current,
				"longest_streak":    longest,
			}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_readiness",
		Description: "Exam readiness: coverage and weighted mastery per domain",
		Schema: Schema{
			Required: []string{"subject_id"},
			Properties: map[string]Property{
				"subject_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID string `json:"subject_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			report, err := deps.Forge.Readiness(ctx, in.SubjectID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFound("subject", in.SubjectID), nil
				}
				return nil, err
			}
			return report, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_calibration",
		Description: "Confidence vs correctness cross-tab with overconfidence rate",
		Schema: Schema{
			Properties: map[string]Property{
				"subject_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID string `json:"subject_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			report, err := deps.Forge.Calibration(ctx, in.SubjectID)
			if err != nil {
				return nil, err
			}
			return report, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_knowledge_map",
		Description: "Concepts grouped by category with mastery summaries",
		Schema: Schema{
			Properties: map[string]Property{
				"subject_id": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				SubjectID string `json:"subject_id"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}

			concepts, err := deps.Store.ListConcepts(in.SubjectID, 0)
			if err != nil {
				return nil, err
			}

			type group struct {
				Count      int              `json:"count"`
				AvgMastery float64          `json:"avg_mastery"`
				Concepts   []*store.Concept `json:"concepts"`
			}
			groups := map[string]*group{}
			for _, c := range concepts {
				cat := c.Category
				if cat == "" {
					cat = "uncategorized"
				}
				g := groups[cat]
				if g == nil {
					g = &group{}
					groups[cat] = g
				}
				g.Count++
				g.AvgMastery += c.MasteryLevel
				g.Concepts = append(g.Concepts, c)
			}
			for _, g := range groups {
				g.AvgMastery /= float64(g.Count)
			}
			return map[string]any{"categories": groups, "total": len(concepts)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "forge_error_analysis",
		Description: "Classified wrong answers grouped by error type",
		Schema: Schema{
			Properties: map[string]Property{
				"error_type": {Type: "string", Enum: []any{"slip", "lapse", "mistake", "misconception"}},
				"limit":      {Type: "integer", Default: 50},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ErrorType string `json:"error_type"`
				Limit     int    `json:"limit"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if in.Limit <= 0 {
				in.Limit = 50
			}
			patterns, err := deps.Store.ListErrorPatterns(in.ErrorType, in.Limit)
			if err != nil {
				return nil, err
			}

			byType := map[string]int{}
			for _, p := range patterns {
				byType[p.ErrorType]++
			}
			return map[string]any{"patterns": patterns, "by_type": byType, "count": len(patterns)}, nil
		},
	})
}

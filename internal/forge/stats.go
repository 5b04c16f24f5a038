package forge

import (
	"context"
	"time"

	"jaybrain/internal/logging"
)

// DomainReadiness aggregates one exam domain.
type DomainReadiness struct {
	Domain     string  `json:"domain"`
	ExamWeight float64 `json:"exam_weight"`
	Total      int     `json:"total_concepts"`
	Reviewed   int     `json:"reviewed_concepts"`
	Coverage   float64 `json:"coverage"`
	AvgMastery float64 `json:"avg_mastery"`
}

// ReadinessReport is the per-subject exam readiness summary.
type ReadinessReport struct {
	TotalConcepts    int                `json:"total_concepts"`
	ReviewedConcepts int                `json:"reviewed_concepts"`
	Coverage         float64            `json:"coverage"`
	AvgMastery       float64            `json:"avg_mastery"`
	WeightedMastery  float64            `json:"weighted_mastery"`
	PerDomain        []*DomainReadiness `json:"per_domain"`
}

// Readiness reports coverage and mastery per exam domain, with the headline
// mastery weighted by each domain's exam weight.
func (e *Engine) Readiness(ctx context.Context, subjectID string) (*ReadinessReport, error) {
	timer := logging.StartTimer(logging.CategoryForge, "Readiness")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectives, err := e.Store.ListObjectives(subjectID)
	if err != nil {
		return nil, err
	}

	type domainAgg struct {
		weight   float64
		total    int
		reviewed int
		mastery  float64
	}
	domains := make(map[string]*domainAgg)
	var order []string
	seen := make(map[string]bool) // concept may sit under several objectives

	report := &ReadinessReport{}
	for _, obj := range objectives {
		agg, ok := domains[obj.Domain]
		if !ok {
			agg = &domainAgg{}
			domains[obj.Domain] = agg
			order = append(order, obj.Domain)
		}
		if obj.ExamWeight > agg.weight {
			agg.weight = obj.ExamWeight
		}

		concepts, err := e.Store.ConceptsForObjective(obj.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			agg.total++
			agg.mastery += c.MasteryLevel
			if c.ReviewCount > 0 {
				agg.reviewed++
			}
			if !seen[c.ID] {
				seen[c.ID] = true
				report.TotalConcepts++
				report.AvgMastery += c.MasteryLevel
				if c.ReviewCount > 0 {
					report.ReviewedConcepts++
				}
			}
		}
	}

	if report.TotalConcepts > 0 {
		report.Coverage = float64(report.ReviewedConcepts) / float64(report.TotalConcepts)
		report.AvgMastery /= float64(report.TotalConcepts)
	}

	var weightSum float64
	for _, name := range order {
		agg := domains[name]
		d := &DomainReadiness{Domain: name, ExamWeight: agg.weight, Total: agg.total, Reviewed: agg.reviewed}
		if agg.total > 0 {
			d.Coverage = float64(agg.reviewed) / float64(agg.total)
			d.AvgMastery = agg.mastery / float64(agg.total)
		}
		report.PerDomain = append(report.PerDomain, d)
		report.WeightedMastery += agg.weight * d.AvgMastery
		weightSum += agg.weight
	}
	if weightSum > 0 {
		report.WeightedMastery /= weightSum
	}
	return report, nil
}

// CalibrationReport cross-tabulates confidence against correctness for
// reviews where correctness was recorded.
type CalibrationReport struct {
	ConfidentCorrect   int     `json:"confident_correct"`
	ConfidentIncorrect int     `json:"confident_incorrect"`
	UnsureCorrect      int     `json:"unsure_correct"`
	UnsureIncorrect    int     `json:"unsure_incorrect"`
	OverconfidenceRate float64 `json:"overconfidence_rate"`
}

// Calibration measures how well confidence tracked correctness. The
// overconfidence rate is the share of confident answers that were wrong.
func (e *Engine) Calibration(ctx context.Context, subjectID string) (*CalibrationReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reviews, err := e.Store.ListReviews(subjectID, 100000)
	if err != nil {
		return nil, err
	}

	report := &CalibrationReport{}
	for _, r := range reviews {
		if r.WasCorrect == nil {
			continue
		}
		confident := r.Confidence >= ConfidentAt
		switch {
		case confident && *r.WasCorrect:
			report.ConfidentCorrect++
		case confident:
			report.ConfidentIncorrect++
		case *r.WasCorrect:
			report.UnsureCorrect++
		default:
			report.UnsureIncorrect++
		}
	}
	if n := report.ConfidentCorrect + report.ConfidentIncorrect; n > 0 {
		report.OverconfidenceRate = float64(report.ConfidentIncorrect) / float64(n)
	}
	return report, nil
}

// Streaks returns (current, longest) consecutive-day review runs. The current
// streak survives if the last review day is today, or yesterday when today
// has no reviews yet.
func (e *Engine) Streaks(now time.Time) (current, longest int, err error) {
	dates, err := e.Store.StreakDates()
	if err != nil {
		return 0, 0, err
	}
	cur, lng := streaksFromDates(dates, now)
	return cur, lng, nil
}

func streaksFromDates(dates []string, now time.Time) (current, longest int) {
	// Dates are calendar days; parsing them as UTC midnights keeps day
	// arithmetic exact regardless of DST.
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	// The trailing run only counts as current if it reaches today or yesterday.
	today, _ := time.Parse("2006-01-02", now.Local().Format("2006-01-02"))
	last := days[len(days)-1]
	if gap := today.Sub(last); gap == 0 || gap == 24*time.Hour {
		current = run
	}
	return current, longest
}

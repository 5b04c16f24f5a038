package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"jaybrain/internal/embedding"
	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// Fusion constants.
const (
	VecOverfetch         = 4
	DefaultVectorWeight  = 0.6
	DefaultKeywordWeight = 0.4
	DefaultLimit         = 10
)

// Engine fuses vector and keyword search over the store.
type Engine struct {
	Store    *store.Store
	Embedder embedding.EmbeddingEngine
}

// NewEngine builds a retrieval engine.
func NewEngine(s *store.Store, embedder embedding.EmbeddingEngine) *Engine {
	return &Engine{Store: s, Embedder: embedder}
}

// RecallQuery parameterises one recall.
type RecallQuery struct {
	Query           string
	Category        string
	Limit           int
	VectorWeight    float64
	KeywordWeight   float64
	IncludeArchived bool
}

// ScoredMemory is one recall hit with its fused, decayed score.
type ScoredMemory struct {
	Memory *store.Memory `json:"memory"`
	Score  float64       `json:"score"`
}

// ScoredKnowledge is one knowledge recall hit.
type ScoredKnowledge struct {
	Knowledge *store.Knowledge `json:"knowledge"`
	Score     float64          `json:"score"`
}

// Remember embeds and persists a new memory: text row, keyword index, vector
// row. A vector failure is logged, not fatal — the memory stays findable by
// keyword.
func (e *Engine) Remember(ctx context.Context, m *store.Memory) error {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Remember")
	defer timer.Stop()

	if err := e.Store.CreateMemory(m); err != nil {
		return err
	}

	vec, err := e.embed(ctx, m.Content)
	if err != nil {
		logging.RetrievalWarn("Embedding failed for memory %s; keyword-only: %v", m.ID, err)
		return nil
	}
	if err := e.Store.UpsertVector(store.MemoryVecTable, m.ID, vec); err != nil {
		logging.RetrievalWarn("Vector write failed for memory %s: %v", m.ID, err)
	}
	return nil
}

// Learn embeds and persists a knowledge entry, same contract as Remember.
func (e *Engine) Learn(ctx context.Context, k *store.Knowledge) error {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Learn")
	defer timer.Stop()

	if err := e.Store.CreateKnowledge(k); err != nil {
		return err
	}

	vec, err := e.embed(ctx, k.Title+"\n"+k.Content)
	if err != nil {
		logging.RetrievalWarn("Embedding failed for knowledge %s; keyword-only: %v", k.ID, err)
		return nil
	}
	if err := e.Store.UpsertVector(store.KnowledgeVecTable, k.ID, vec); err != nil {
		logging.RetrievalWarn("Vector write failed for knowledge %s: %v", k.ID, err)
	}
	return nil
}

// Recall runs the hybrid query over memories. Hits are decayed, category
// filtered, trimmed to the limit, and touched (access count + decay clock).
func (e *Engine) Recall(ctx context.Context, q RecallQuery) ([]ScoredMemory, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Recall")
	defer timer.Stop()

	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("validation: recall query must be non-empty")
	}
	normalizeQuery(&q)

	fused, err := e.hybridSearch(ctx, store.MemoryVecTable, store.MemoryFTSTable, q)
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	memories, err := e.Store.GetMemories(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recalled memories: %w", err)
	}

	now := time.Now().UTC()
	var out []ScoredMemory
	for _, m := range memories {
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		score := fused[m.ID] * Decay(m.CreatedAt, m.Importance, m.AccessCount, m.LastAccessed, now)
		out = append(out, ScoredMemory{Memory: m, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}

	for _, hit := range out {
		if err := e.Store.TouchMemory(hit.Memory.ID); err != nil {
			logging.RetrievalWarn("Touch failed for memory %s: %v", hit.Memory.ID, err)
		}
	}

	logging.Retrieval("Recall %q -> %d hits", q.Query, len(out))
	return out, nil
}

// RecallKnowledge is the knowledge twin of Recall. Knowledge entries carry no
// decay state; hits keep their fused score.
func (e *Engine) RecallKnowledge(ctx context.Context, q RecallQuery) ([]ScoredKnowledge, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "RecallKnowledge")
	defer timer.Stop()

	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("validation: recall query must be non-empty")
	}
	normalizeQuery(&q)

	fused, err := e.hybridSearch(ctx, store.KnowledgeVecTable, store.KnowledgeFTSTable, q)
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	entries, err := e.Store.GetKnowledgeBatch(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recalled knowledge: %w", err)
	}

	var out []ScoredKnowledge
	for _, k := range entries {
		if q.Category != "" && k.Category != q.Category {
			continue
		}
		out = append(out, ScoredKnowledge{Knowledge: k, Score: fused[k.ID]})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func normalizeQuery(q *RecallQuery) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.VectorWeight <= 0 && q.KeywordWeight <= 0 {
		q.VectorWeight = DefaultVectorWeight
		q.KeywordWeight = DefaultKeywordWeight
	}
}

// hybridSearch runs the vector and keyword legs concurrently and fuses them
// into id -> score. A vector-side failure (no embedder, model down) degrades
// to keyword-only: logged, never surfaced.
func (e *Engine) hybridSearch(ctx context.Context, vecTable, ftsTable string, q RecallQuery) (map[string]float64, error) {
	overfetch := q.Limit * VecOverfetch

	var vecHits []store.VectorHit
	var kwHits []store.KeywordHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := e.embed(gctx, q.Query)
		if err != nil {
			logging.RetrievalWarn("Vector leg unavailable: %v", err)
			return nil
		}
		hits, err := e.Store.SearchVector(vecTable, vec, overfetch)
		if err != nil {
			logging.RetrievalWarn("Vector search failed: %v", err)
			return nil
		}
		vecHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.Store.SearchKeyword(ftsTable, q.Query, overfetch)
		if err != nil {
			return fmt.Errorf("keyword search failed: %w", err)
		}
		kwHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.RetrievalDebug("Legs: %d vector, %d keyword", len(vecHits), len(kwHits))

	fused := make(map[string]float64)

	// Vector: smaller distance is better, so invert before min-max.
	if len(vecHits) > 0 {
		minD, maxD := vecHits[0].Distance, vecHits[0].Distance
		for _, h := range vecHits {
			if h.Distance < minD {
				minD = h.Distance
			}
			if h.Distance > maxD {
				maxD = h.Distance
			}
		}
		span := maxD - minD
		for _, h := range vecHits {
			norm := 1.0
			if span > 0 {
				norm = 1 - (h.Distance-minD)/span
			}
			fused[h.ID] += q.VectorWeight * norm
		}
	}

	// Keyword: bm25 is negative, closer to -inf is better.
	if len(kwHits) > 0 {
		minS, maxS := kwHits[0].Score, kwHits[0].Score
		for _, h := range kwHits {
			if h.Score < minS {
				minS = h.Score
			}
			if h.Score > maxS {
				maxS = h.Score
			}
		}
		span := maxS - minS
		for _, h := range kwHits {
			norm := 1.0
			if span > 0 {
				norm = (maxS - h.Score) / span
			}
			fused[h.ID] += q.KeywordWeight * norm
		}
	}

	return fused, nil
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if e.Embedder == nil {
		return nil, fmt.Errorf("no embedding engine configured")
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return embedding.Conform(vec, e.Store.Dimensions()), nil
}

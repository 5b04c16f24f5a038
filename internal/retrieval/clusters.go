package retrieval

import (
	"context"

	"jaybrain/internal/embedding"
	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// FindClusters groups memories whose embeddings exceed minSimilarity into
// connected components (single-link). Singleton components are dropped; the
// caller only cares about groups that are candidates for consolidation.
func (e *Engine) FindClusters(ctx context.Context, minSimilarity float64) ([][]*store.Memory, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "FindClusters")
	defer timer.Stop()

	vecs, err := e.Store.AllMemoryVectors()
	if err != nil {
		return nil, err
	}
	if len(vecs) < 2 {
		return nil, nil
	}

	ids := make([]string, 0, len(vecs))
	for id := range vecs {
		ids = append(ids, id)
	}

	// Union-find over pairwise similarity.
	parent := make(map[string]string, len(ids))
	for _, id := range ids {
		parent[id] = id
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for i := 0; i < len(ids); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(ids); j++ {
			sim, err := embedding.CosineSimilarity(vecs[ids[i]], vecs[ids[j]])
			if err != nil {
				continue
			}
			if sim >= minSimilarity {
				parent[find(ids[i])] = find(ids[j])
			}
		}
	}

	groups := make(map[string][]string)
	for _, id := range ids {
		root := find(id)
		groups[root] = append(groups[root], id)
	}

	var clusters [][]*store.Memory
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		memories, err := e.Store.GetMemories(members)
		if err != nil {
			return nil, err
		}
		if len(memories) >= 2 {
			clusters = append(clusters, memories)
		}
	}

	logging.Retrieval("FindClusters: %d clusters over %d vectors (threshold %.2f)",
		len(clusters), len(vecs), minSimilarity)
	return clusters, nil
}

package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"jaybrain/internal/logging"
)

// Vector tables co-located with their text tables. When vec0 is available
// they are virtual tables with true ANN search; otherwise plain tables whose
// blobs are scanned brute-force.
const (
	MemoryVecTable    = "memory_vec"
	KnowledgeVecTable = "knowledge_vec"
)

// EncodeVector packs a float32 slice into a little-endian blob. The
// round-trip with DecodeVector is bitwise exact.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector unpacks a little-endian f32 blob.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

// ensureVectorTables creates the vector index tables, virtual when vec0 is
// available. These sit outside the migration chain: their contents are
// derivable from the text tables and the shape depends on the driver build.
func (s *Store) ensureVectorTables() error {
	for _, table := range []string{MemoryVecTable, KnowledgeVecTable} {
		var stmt string
		if s.vectorExt {
			stmt = fmt.Sprintf(
				"CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])",
				table, s.dims)
		} else {
			stmt = fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, embedding BLOB NOT NULL)",
				table)
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}
	}
	return nil
}

// UpsertVector writes the embedding row for an id. Every live row has at
// most one vector row, so replace semantics are correct here.
func (s *Store) UpsertVector(table, id string, vec []float32) error {
	if len(vec) != s.dims {
		return fmt.Errorf("validation: vector has %d dims, store expects %d", len(vec), s.dims)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blob := EncodeVector(vec)
	// vec0 virtual tables reject INSERT OR REPLACE; delete-then-insert works
	// on both shapes.
	if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		return fmt.Errorf("failed to clear vector row: %w", err)
	}
	if _, err := s.db.Exec(
		fmt.Sprintf("INSERT INTO %s (id, embedding) VALUES (?, ?)", table), id, blob); err != nil {
		logging.StoreError("Vector upsert failed for %s/%s: %v", table, id, err)
		return fmt.Errorf("failed to insert vector row: %w", err)
	}
	return nil
}

// DeleteVector removes the embedding row for an id.
func (s *Store) DeleteVector(table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete vector row: %w", err)
	}
	return nil
}

// VectorHit is one K-NN result: id plus L2 distance (smaller = closer).
type VectorHit struct {
	ID       string
	Distance float64
}

// SearchVector returns the K nearest rows to the query vector by L2
// distance. Uses vec0 ANN when available, otherwise a full scan.
func (s *Store) SearchVector(table string, query []float32, k int) ([]VectorHit, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchVector")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}
	if len(query) != s.dims {
		return nil, fmt.Errorf("validation: query vector has %d dims, store expects %d", len(query), s.dims)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectorExt {
		hits, err := s.searchVec0(table, query, k)
		if err == nil {
			return hits, nil
		}
		logging.StoreDebug("vec0 search failed, falling back to scan: %v", err)
	}
	return s.searchBruteForce(table, query, k)
}

// searchVec0 runs the sqlite-vec K-NN query.
func (s *Store) searchVec0(table string, query []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, distance FROM %s WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		table), EncodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("vec0 query failed: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.ID, &h.Distance); err != nil {
			logging.StoreWarn("Vector hit scan failed: %v", err)
			continue
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchBruteForce scans every blob and computes L2 distance in-process.
// Fine for the corpus sizes a personal store reaches.
func (s *Store) searchBruteForce(table string, query []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.Query(fmt.Sprintf("SELECT id, embedding FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("vector scan failed: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			continue
		}
		vec, err := DecodeVector(blob)
		if err != nil || len(vec) != len(query) {
			continue
		}
		var sum float64
		for i := range query {
			d := float64(query[i] - vec[i])
			sum += d * d
		}
		hits = append(hits, VectorHit{ID: id, Distance: math.Sqrt(sum)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

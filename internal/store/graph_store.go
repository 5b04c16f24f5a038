package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/logging"
)

// GraphMaxDepth caps neighborhood traversal regardless of the requested
// depth.
const GraphMaxDepth = 4

// =============================================================================
// ENTITIES
// =============================================================================

// AddEntity upserts an entity keyed on (name, entity_type). On conflict the
// alias and memory-id lists are unioned, properties shallow-merged, and the
// description overwritten only when a non-empty one is supplied.
func (s *Store) AddEntity(e *Entity) (*Entity, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AddEntity")
	defer timer.Stop()

	if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.EntityType) == "" {
		return nil, fmt.Errorf("validation: entity name and type must be non-empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getEntityByNameTypeLocked(e.Name, e.EntityType)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	if existing == nil {
		if e.ID == "" {
			e.ID = NewID()
		}
		e.CreatedAt = now
		e.UpdatedAt = now
		_, err := s.db.Exec(`
			INSERT INTO graph_entities (id, name, entity_type, description, aliases, memory_ids, properties, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.EntityType, e.Description,
			marshalList(e.Aliases), marshalList(e.MemoryIDs), marshalProps(e.Properties),
			e.CreatedAt, e.UpdatedAt)
		if err != nil {
			logging.StoreError("Failed to insert entity: %v", err)
			return nil, fmt.Errorf("failed to insert entity: %w", err)
		}
		logging.GraphDebug("Created entity %s (%s/%s)", e.ID, e.Name, e.EntityType)
		return e, nil
	}

	// Merge semantics: repeated adds accumulate evidence, never duplicate.
	existing.Aliases = unionLists(existing.Aliases, e.Aliases)
	existing.MemoryIDs = unionLists(existing.MemoryIDs, e.MemoryIDs)
	if existing.Properties == nil {
		existing.Properties = make(map[string]interface{})
	}
	for k, v := range e.Properties {
		existing.Properties[k] = v
	}
	if strings.TrimSpace(e.Description) != "" {
		existing.Description = e.Description
	}
	existing.UpdatedAt = now

	_, err = s.db.Exec(`
		UPDATE graph_entities SET description = ?, aliases = ?, memory_ids = ?, properties = ?, updated_at = ?
		WHERE id = ?`,
		existing.Description, marshalList(existing.Aliases), marshalList(existing.MemoryIDs),
		marshalProps(existing.Properties), existing.UpdatedAt, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to merge entity: %w", err)
	}
	logging.GraphDebug("Merged entity %s (%s/%s)", existing.ID, existing.Name, existing.EntityType)
	return existing, nil
}

// GetEntity fetches one entity by id.
func (s *Store) GetEntity(id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(entitySelect+" WHERE id = ?", id)
	return scanEntity(row)
}

const entitySelect = `
	SELECT id, name, entity_type, description, aliases, memory_ids, properties, created_at, updated_at
	FROM graph_entities`

func (s *Store) getEntityByNameTypeLocked(name, entityType string) (*Entity, error) {
	row := s.db.QueryRow(entitySelect+" WHERE name = ? AND entity_type = ?", name, entityType)
	return scanEntity(row)
}

// resolveEntityLocked resolves an id-or-name reference. A name that matches
// more than one entity (different types) is an error the caller surfaces as
// structured.
func (s *Store) resolveEntityLocked(ref string) (*Entity, error) {
	if e, err := func() (*Entity, error) {
		row := s.db.QueryRow(entitySelect+" WHERE id = ?", ref)
		return scanEntity(row)
	}(); err == nil {
		return e, nil
	}

	rows, err := s.db.Query(entitySelect+" WHERE name = ?", ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve entity: %w", err)
	}
	defer rows.Close()

	var matches []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			continue
		}
		matches = append(matches, e)
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("entity name %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var aliases, memoryIDs, props string
	err := row.Scan(&e.ID, &e.Name, &e.EntityType, &e.Description,
		&aliases, &memoryIDs, &props, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	e.Aliases = unmarshalList(aliases)
	e.MemoryIDs = unmarshalList(memoryIDs)
	e.Properties = unmarshalProps(props)
	return &e, nil
}

// SearchEntities does a case-insensitive substring match on name.
func (s *Store) SearchEntities(query, entityType string, limit int) ([]*Entity, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchEntities")
	defer timer.Stop()

	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := entitySelect + " WHERE name LIKE ? COLLATE NOCASE"
	args := []interface{}{"%" + query + "%"}
	if entityType != "" {
		q += " AND entity_type = ?"
		args = append(args, entityType)
	}
	q += " ORDER BY name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListEntities returns entities, optionally filtered by type.
func (s *Store) ListEntities(entityType string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := entitySelect
	var args []interface{}
	if entityType != "" {
		q += " WHERE entity_type = ?"
		args = append(args, entityType)
	}
	q += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RELATIONSHIPS
// =============================================================================

// AddRelationship upserts an edge keyed on (source, target, rel_type).
// Source and target may be ids or unique names; a missing endpoint comes
// back as ErrNotFound for the tool layer to shape into {error: ...}.
// A nil weight means the caller did not supply one: creation falls back to
// 0.5 and a merge keeps the stored weight.
func (s *Store) AddRelationship(sourceRef, targetRef, relType string, weight *float64, evidenceIDs []string, props map[string]interface{}) (*Relationship, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AddRelationship")
	defer timer.Stop()

	if strings.TrimSpace(relType) == "" {
		return nil, fmt.Errorf("validation: rel_type must be non-empty")
	}
	if weight != nil && (*weight < 0 || *weight > 1) {
		return nil, fmt.Errorf("validation: weight %v outside [0,1]", *weight)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := s.resolveEntityLocked(sourceRef)
	if err != nil {
		return nil, fmt.Errorf("source entity %q: %w", sourceRef, err)
	}
	target, err := s.resolveEntityLocked(targetRef)
	if err != nil {
		return nil, fmt.Errorf("target entity %q: %w", targetRef, err)
	}

	row := s.db.QueryRow(relSelect+` WHERE source_entity_id = ? AND target_entity_id = ? AND rel_type = ?`,
		source.ID, target.ID, relType)
	existing, err := scanRelationship(row)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if existing == nil {
		w := 0.5
		if weight != nil {
			w = *weight
		}
		r := &Relationship{
			ID:             NewID(),
			SourceEntityID: source.ID,
			TargetEntityID: target.ID,
			RelType:        relType,
			Weight:         w,
			EvidenceIDs:    evidenceIDs,
			Properties:     props,
			CreatedAt:      time.Now().UTC(),
		}
		_, err := s.db.Exec(`
			INSERT INTO graph_relationships (id, source_entity_id, target_entity_id, rel_type, weight, evidence_ids, properties, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.SourceEntityID, r.TargetEntityID, r.RelType, r.Weight,
			marshalList(r.EvidenceIDs), marshalProps(r.Properties), r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert relationship: %w", err)
		}
		logging.GraphDebug("Created relationship %s -[%s]-> %s", source.Name, relType, target.Name)
		return r, nil
	}

	if weight != nil {
		existing.Weight = *weight
	}
	existing.EvidenceIDs = unionLists(existing.EvidenceIDs, evidenceIDs)
	if existing.Properties == nil {
		existing.Properties = make(map[string]interface{})
	}
	for k, v := range props {
		existing.Properties[k] = v
	}

	_, err = s.db.Exec(`
		UPDATE graph_relationships SET weight = ?, evidence_ids = ?, properties = ? WHERE id = ?`,
		existing.Weight, marshalList(existing.EvidenceIDs), marshalProps(existing.Properties), existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to merge relationship: %w", err)
	}
	logging.GraphDebug("Merged relationship %s -[%s]-> %s", source.Name, relType, target.Name)
	return existing, nil
}

const relSelect = `
	SELECT id, source_entity_id, target_entity_id, rel_type, weight, evidence_ids, properties, created_at
	FROM graph_relationships`

func scanRelationship(row rowScanner) (*Relationship, error) {
	var r Relationship
	var evidence, props string
	err := row.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.RelType,
		&r.Weight, &evidence, &props, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationship: %w", err)
	}
	r.EvidenceIDs = unmarshalList(evidence)
	r.Properties = unmarshalProps(props)
	return &r, nil
}

// relationshipsTouchingLocked returns every edge with the entity on either
// end. Callers hold at least s.mu.RLock.
func (s *Store) relationshipsTouchingLocked(entityID string) ([]*Relationship, error) {
	rows, err := s.db.Query(relSelect+` WHERE source_entity_id = ? OR target_entity_id = ?`,
		entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// NEIGHBORHOOD TRAVERSAL
// =============================================================================

// Neighborhood is the result of a BFS traversal around a center entity.
type Neighborhood struct {
	Center            *Entity         `json:"center"`
	Entities          []*Entity       `json:"entities"`
	Relationships     []*Relationship `json:"relationships"`
	Depth             int             `json:"depth"`
	EntityCount       int             `json:"entity_count"`
	RelationshipCount int             `json:"relationship_count"`
}

// QueryNeighborhood runs BFS from the center up to min(depth, GraphMaxDepth)
// hops. Each entity is visited once; every touched edge is included even
// when its far endpoint was already visited, so cycles show up as edges, not
// as re-traversal.
func (s *Store) QueryNeighborhood(centerRef string, depth int, entityType string) (*Neighborhood, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueryNeighborhood")
	defer timer.Stop()

	if depth <= 0 || depth > GraphMaxDepth {
		depth = GraphMaxDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	center, err := s.resolveEntityLocked(centerRef)
	if err != nil {
		return nil, err
	}

	logging.GraphDebug("Neighborhood BFS from %s depth=%d", center.Name, depth)

	visited := map[string]*Entity{center.ID: center}
	seenEdges := make(map[string]bool)
	var entities []*Entity
	var relationships []*Relationship

	type frontierItem struct {
		id    string
		level int
	}
	queue := []frontierItem{{center.ID, 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.level >= depth {
			continue
		}

		edges, err := s.relationshipsTouchingLocked(item.id)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if !seenEdges[edge.ID] {
				seenEdges[edge.ID] = true
				relationships = append(relationships, edge)
			}

			otherID := edge.TargetEntityID
			if otherID == item.id {
				otherID = edge.SourceEntityID
			}
			if _, ok := visited[otherID]; ok {
				continue
			}

			row := s.db.QueryRow(entitySelect+" WHERE id = ?", otherID)
			other, err := scanEntity(row)
			if err != nil {
				// Dangling edge; skip the endpoint but keep the edge.
				continue
			}
			visited[otherID] = other
			if entityType == "" || other.EntityType == entityType {
				entities = append(entities, other)
			}
			queue = append(queue, frontierItem{otherID, item.level + 1})
		}
	}

	return &Neighborhood{
		Center:            center,
		Entities:          entities,
		Relationships:     relationships,
		Depth:             depth,
		EntityCount:       len(entities) + 1,
		RelationshipCount: len(relationships),
	}, nil
}

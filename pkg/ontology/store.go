package ontology

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store holds resolved entities and relationships, plus a pending review
// queue and an append-only audit log. It is its own arena rather than
// riding on memstore.Store: entities and relationships reference each
// other by id, never by pointer, so merges and splits never chase stale
// pointers.
type Store struct {
	Weights Weights
	Log     *slog.Logger

	mu            sync.RWMutex
	entities      map[string]*Entity
	relationships map[string]*Relationship
	byBlockingKey map[string][]string
	reviewQueue   []Candidate
	audit         []AuditEntry
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		Weights:       DefaultWeights(),
		Log:           log,
		entities:      map[string]*Entity{},
		relationships: map[string]*Relationship{},
		byBlockingKey: map[string][]string{},
	}
}

// Resolve runs the deterministic pipeline: preprocess, block, score,
// threshold, transitive-closure merge.
func (s *Store) Resolve(c Candidate, now time.Time) (*Entity, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(c, now)
}

// BatchOutcome is the per-candidate result of a ResolveBatch call.
type BatchOutcome struct {
	Entity *Entity
	Status string
}

// ResolveBatch runs resolution over a whole ingested batch at once (spec
// §4.6 step 5): every pair sharing a block is scored up front, pairs
// scoring at or above MergeThreshold are collapsed through transitive
// closure, and each resulting cluster — not just each pair — is merged
// into a single entity. This is what lets chains like A~B, B~C settle on
// one canonical entity even when A and C alone would never have blocked
// or scored together.
func (s *Store) ResolveBatch(candidates []Candidate, now time.Time) []BatchOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	type prepped struct {
		normName string
		addr     string
		ids      map[string]string
		ctx      []string
	}
	prep := make([]prepped, len(candidates))
	tmpIDs := make([]string, len(candidates))
	blocks := map[string][]int{}
	for i, c := range candidates {
		prep[i] = prepped{
			normName: NormalizeName(c.Properties["name"]),
			addr:     NormalizeAddress(c.Properties["address"]),
			ids:      candidateIdentifiers(c),
			ctx:      contextTokens(c),
		}
		tmpIDs[i] = fmt.Sprintf("tmp-%d", i)
		for idType, idVal := range prep[i].ids {
			if idVal == "" {
				continue
			}
			key := identifierBlockKey(idType, idVal)
			blocks[key] = append(blocks[key], i)
		}
		if prep[i].normName != "" {
			npKey := namePrefixBlockKey(c.EntityType, prep[i].normName)
			blocks[npKey] = append(blocks[npKey], i)
			phKey := phoneticBlockKey(c.EntityType, prep[i].normName)
			blocks[phKey] = append(blocks[phKey], i)
		}
	}

	// Candidate pairs are every (i, j) that share at least one block,
	// same as the live path's candidateBlockIDs union.
	candidatePairs := map[[2]int]bool{}
	for _, members := range blocks {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				i, j := members[a], members[b]
				if i > j {
					i, j = j, i
				}
				candidatePairs[[2]int{i, j}] = true
			}
		}
	}

	var pairs [][2]string
	for p := range candidatePairs {
		i, j := p[0], p[1]
		score := CompositeScore(s.Weights,
			prep[i].normName, prep[j].normName,
			prep[i].ids, prep[j].ids,
			prep[i].addr, prep[j].addr,
			time.Time{}, time.Time{},
			prep[i].ctx, prep[j].ctx)
		if score >= MergeThreshold {
			pairs = append(pairs, [2]string{tmpIDs[i], tmpIDs[j]})
		}
	}

	clusters := ClusterByTransitiveClosure(tmpIDs, pairs)
	idxOf := make(map[string]int, len(tmpIDs))
	for i, id := range tmpIDs {
		idxOf[id] = i
	}

	outcomes := make([]BatchOutcome, len(candidates))
	for _, members := range clusters {
		sort.Strings(members)
		var entity *Entity
		var status string
		for _, m := range members {
			entity, status, _ = s.resolveLocked(candidates[idxOf[m]], now)
		}
		for _, m := range members {
			outcomes[idxOf[m]] = BatchOutcome{Entity: entity, Status: status}
		}
	}
	return outcomes
}

func candidateIdentifiers(c Candidate) map[string]string {
	name := c.Properties["name"]
	ids := map[string]string{}
	for k, v := range c.Properties {
		if k == "ein" || k == "duns" || k == "ticker" {
			ids[k] = v
		}
	}
	for k, v := range ExtractIdentifiers(strings.Join([]string{name, c.Properties["identifier_text"]}, " ")) {
		if _, exists := ids[k]; !exists {
			ids[k] = v
		}
	}
	return ids
}

// resolveLocked is Resolve's body, callable while s.mu is already held so
// ResolveBatch can merge an entire cluster under one critical section.
func (s *Store) resolveLocked(c Candidate, now time.Time) (*Entity, string, error) {
	name := c.Properties["name"]
	normName := NormalizeName(name)
	addr := NormalizeAddress(c.Properties["address"])
	ids := candidateIdentifiers(c)

	blockIDs := s.candidateBlockIDs(c.EntityType, normName, ids)

	var best *Entity
	var bestScore float64
	for id := range blockIDs {
		existing := s.entities[id]
		if existing == nil || existing.SupersededBy != "" {
			continue
		}
		score := CompositeScore(s.Weights, normName, NormalizeName(existing.Name), ids, existing.Identifiers,
			addr, NormalizeAddress(existing.Properties["address"]),
			time.Time{}, time.Time{}, contextTokens(c), existing.Context)
		if score > bestScore {
			bestScore = score
			best = existing
		}
	}

	switch {
	case best != nil && bestScore >= MergeThreshold:
		s.mergeInto(best, c, ids, bestScore, now)
		s.audit = append(s.audit, AuditEntry{At: now, Action: "merge", EntityIDs: []string{best.ID}, Score: bestScore})
		return best, "merged", nil
	case best != nil && bestScore >= ReviewThreshold:
		s.reviewQueue = append(s.reviewQueue, c)
		s.audit = append(s.audit, AuditEntry{At: now, Action: "review", EntityIDs: []string{best.ID}, Score: bestScore})
		return best, "review", nil
	default:
		entity := s.newEntity(c, name, normName, addr, ids, now)
		s.audit = append(s.audit, AuditEntry{At: now, Action: "distinct", EntityIDs: []string{entity.ID}, Score: bestScore})
		return entity, "distinct", nil
	}
}

// candidateBlockIDs unions every entity id reachable through any of the
// three blocking strategies (spec §4.6 step 2): exact identifier match,
// name-prefix, and phonetic. A candidate is compared against the OR of
// all three blocks, not just one, so two records sharing an identifier
// but with dissimilar leading characters in their name still meet.
func (s *Store) candidateBlockIDs(entityType, normName string, ids map[string]string) map[string]bool {
	set := map[string]bool{}
	for idType, idVal := range ids {
		if idVal == "" {
			continue
		}
		for _, id := range s.byBlockingKey[identifierBlockKey(idType, idVal)] {
			set[id] = true
		}
	}
	if normName != "" {
		for _, id := range s.byBlockingKey[namePrefixBlockKey(entityType, normName)] {
			set[id] = true
		}
		for _, id := range s.byBlockingKey[phoneticBlockKey(entityType, normName)] {
			set[id] = true
		}
	}
	return set
}

// registerBlocks files id under every block key it could be matched
// through later, mirroring candidateBlockIDs' union.
func (s *Store) registerBlocks(id, entityType, normName string, ids map[string]string) {
	for idType, idVal := range ids {
		if idVal == "" {
			continue
		}
		key := identifierBlockKey(idType, idVal)
		s.byBlockingKey[key] = append(s.byBlockingKey[key], id)
	}
	if normName == "" {
		return
	}
	npKey := namePrefixBlockKey(entityType, normName)
	s.byBlockingKey[npKey] = append(s.byBlockingKey[npKey], id)
	phKey := phoneticBlockKey(entityType, normName)
	s.byBlockingKey[phKey] = append(s.byBlockingKey[phKey], id)
}

func contextTokens(c Candidate) []string {
	return strings.Fields(strings.ToLower(c.Provenance.SourceType + " " + c.Properties["context"]))
}

func (s *Store) newEntity(c Candidate, name, normName, addr string, ids map[string]string, now time.Time) *Entity {
	id := fmt.Sprintf("ent-%d-%d", now.UnixNano(), len(s.entities))
	e := &Entity{
		ID:              id,
		EntityType:      c.EntityType,
		Name:            name,
		Properties:      c.Properties,
		Identifiers:     ids,
		Context:         contextTokens(c),
		Confidence:      c.Provenance.Confidence,
		ProvenanceChain: []Provenance{c.Provenance},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.entities[id] = e
	s.registerBlocks(id, c.EntityType, normName, ids)
	return e
}

// mergeInto applies the non-destructive merge policy: the higher-
// confidence side wins scalar fields, arrays union, nothing is deleted
// (spec §4.6, §8 non-destructiveness invariant). Both source provenances
// are preserved permanently on the entity's ProvenanceChain, and the
// merge itself is recorded in MergeHistory — not just in the transient
// audit log, which only lives as long as the Store process does.
func (s *Store) mergeInto(winner *Entity, c Candidate, ids map[string]string, score float64, now time.Time) {
	if c.Provenance.Confidence > winner.Confidence {
		winner.Name = c.Properties["name"]
		winner.Confidence = c.Provenance.Confidence
	}
	for k, v := range c.Properties {
		if _, exists := winner.Properties[k]; !exists {
			winner.Properties[k] = v
		}
	}
	for k, v := range ids {
		if _, exists := winner.Identifiers[k]; !exists {
			winner.Identifiers[k] = v
		}
	}
	winner.Context = unionStrings(winner.Context, contextTokens(c))
	winner.ProvenanceChain = append(winner.ProvenanceChain, c.Provenance)
	winner.MergeHistory = append(winner.MergeHistory, MergeEvent{At: now, Score: score, Source: c.Provenance})
	winner.UpdatedAt = now
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ResolveRelationship turns a hint into a typed, scored, or unresolved
// relationship depending on confidence (spec §4.6).
func (s *Store) ResolveRelationship(fromID string, hint RelationshipHint, confidence float64, now time.Time) *Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()

	toID := ""
	for id, e := range s.entities {
		if e.SupersededBy == "" && NormalizeName(e.Name) == NormalizeName(hint.ToName) {
			toID = id
			break
		}
	}

	kind := RelationUnresolved
	relType := hint.Type
	switch {
	case confidence >= RelationshipAutoTypeMin && toID != "":
		kind = RelationTyped
	case toID != "":
		kind = RelationTyped
	default:
		relType = "unresolved:" + hint.Type
	}

	rel := &Relationship{
		ID:         fmt.Sprintf("rel-%d-%d", now.UnixNano(), len(s.relationships)),
		FromID:     fromID,
		ToID:       toID,
		ToName:     hint.ToName,
		Type:       relType,
		Kind:       kind,
		Confidence: confidence,
		CreatedAt:  now,
	}
	s.relationships[rel.ID] = rel
	return rel
}

// RecordDiscoveredRelationship adds a maintenance-time discovered edge
// (co_mentioned, co_located, temporally_linked).
func (s *Store) RecordDiscoveredRelationship(fromID, toID string, kind RelationType, confidence float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := &Relationship{
		ID:         fmt.Sprintf("rel-%d-%d", now.UnixNano(), len(s.relationships)),
		FromID:     fromID,
		ToID:       toID,
		Type:       string(kind),
		Kind:       kind,
		Confidence: confidence,
		CreatedAt:  now,
	}
	s.relationships[rel.ID] = rel
}

// NeighbourEdge is a relationship resolved to a display-ready name.
type NeighbourEdge struct {
	Type   string
	ToName string
}

// Neighbours returns up to max relationships from entityID sorted by
// confidence, visible only if they clear min_confidence_to_surface (spec
// §4.6: this gate is on query visibility, not on storage).
func (s *Store) Neighbours(entityID string, max int) []NeighbourEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rels []*Relationship
	for _, r := range s.relationships {
		if r.FromID == entityID && !r.Deprecated && r.Confidence >= MinConfidenceToSurface {
			rels = append(rels, r)
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].Confidence > rels[j].Confidence })
	if len(rels) > max {
		rels = rels[:max]
	}
	out := make([]NeighbourEdge, 0, len(rels))
	for _, r := range rels {
		toName := r.ToName
		if toName == "" {
			if e, ok := s.entities[r.ToID]; ok {
				toName = e.Name
			}
		}
		out = append(out, NeighbourEdge{Type: r.Type, ToName: toName})
	}
	return out
}

// MatchEntitiesByName scans text for occurrences of known entity names,
// used by Memory Enhancement's ontology-aware query extension.
func (s *Store) MatchEntitiesByName(text string) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(text)
	var out []*Entity
	for _, e := range s.entities {
		if e.SupersededBy != "" || e.Name == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(e.Name)) {
			out = append(out, e)
		}
	}
	return out
}

// ReviewQueue returns pending candidates awaiting human or later
// automated review.
func (s *Store) ReviewQueue() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Candidate, len(s.reviewQueue))
	copy(out, s.reviewQueue)
	return out
}

// AuditLog returns the full resolution audit trail.
func (s *Store) AuditLog() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Entities returns every live (non-superseded) entity, for maintenance
// upkeep passes.
func (s *Store) Entities() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.SupersededBy != "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ClusterByTransitiveClosure groups entity ids into merge clusters given
// a set of pairwise merge decisions, so later relationship resolution can
// treat an entire cluster as one identity.
func ClusterByTransitiveClosure(ids []string, pairs [][2]string) map[string][]string {
	uf := newUnionFind(ids)
	for _, p := range pairs {
		uf.union(p[0], p[1])
	}
	return uf.clusters()
}

// Package memstore is the shared store for memory fragments: the
// flat, id-keyed arena that Memory Enhancement, the Ontology Store, and
// the Maintenance Pass all read and write. Relationships between
// fragments are stored as id sets rather than direct pointers, so merges
// and related-memory links never need cycle-aware traversal (spec §9
// Design Notes).
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/vector"
)

// Source classifies how a fragment entered the store.
type Source string

const (
	SourceUserAsserted  Source = "user_asserted"
	SourceAgentInferred Source = "agent_inferred"
	SourceConfirmed     Source = "confirmed"
	SourceDeprecated    Source = "deprecated"
)

// priority ranks dedup winners: confirmed > user_asserted > agent_inferred > deprecated.
var priority = map[Source]int{
	SourceConfirmed:     3,
	SourceUserAsserted:  2,
	SourceAgentInferred: 1,
	SourceDeprecated:    0,
}

// Higher reports whether a outranks b for dedup resolution.
func (s Source) Higher(o Source) bool { return priority[s] > priority[o] }

// Utility marks fragments that must never be silently superseded.
type Utility string

const (
	UtilityNormal      Utility = ""
	UtilityLoadBearing Utility = "load_bearing"
)

// Validity reflects how strongly a fragment has been corroborated.
type Validity string

const (
	ValidityUnconfirmed Validity = ""
	ValidityConfirmed   Validity = "confirmed"
)

// Relevance tracks whether a fragment is still being surfaced.
type Relevance string

const (
	RelevanceActive  Relevance = "active"
	RelevanceDormant Relevance = "dormant"
)

// Lineage is the id-set bookkeeping the spec's Design Notes call for:
// never a direct pointer, always a stable-id reference.
type Lineage struct {
	RelatedMemoryIDs []string  `json:"related_memory_ids"`
	AccessCount      int       `json:"access_count"`
	LastAccessed     time.Time `json:"last_accessed,omitempty"`
	SupersededBy     string    `json:"superseded_by,omitempty"`
}

// Fragment is one unit in the shared memory store.
type Fragment struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Area       string         `json:"area"` // "memory" or "ontology"
	Domain     string         `json:"domain,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Source     Source         `json:"source"`
	Utility    Utility        `json:"utility,omitempty"`
	Validity   Validity       `json:"validity,omitempty"`
	Relevance  Relevance      `json:"relevance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Lineage    Lineage        `json:"lineage"`
	Ontology   map[string]any `json:"ontology,omitempty"`
	Vector     []float32      `json:"-"`
}

// Exempt reports whether this fragment's recency score must be forced to
// 1.0 regardless of actual age (spec §4.5, §8 exemption integrity).
func (f *Fragment) Exempt() bool {
	return f.Utility == UtilityLoadBearing || f.Source == SourceUserAsserted || f.Validity == ValidityConfirmed
}

// LastAccessedOrCreated implements the fallback chain: last_accessed,
// else created_at, else "no timestamp at all" (caller then forces
// recency = 1.0).
func (f *Fragment) LastAccessedOrCreated() (time.Time, bool) {
	if !f.Lineage.LastAccessed.IsZero() {
		return f.Lineage.LastAccessed, true
	}
	if !f.CreatedAt.IsZero() {
		return f.CreatedAt, true
	}
	return time.Time{}, false
}

const collectionName = "scaffold_memory"

// Store composes a vector index with an authoritative id-keyed map, so
// iterate_all() and targeted lookups don't round-trip through the vector
// backend (spec §6's vector store contract plus the maintenance pass's
// need for a full scan).
type Store struct {
	Provider vector.Provider
	Embedder embedder.Embedder

	mu        sync.RWMutex
	fragments map[string]*Fragment
}

func New(provider vector.Provider, emb embedder.Embedder) *Store {
	return &Store{Provider: provider, Embedder: emb, fragments: map[string]*Fragment{}}
}

// Upsert embeds and stores a fragment, keeping the in-memory index and the
// vector backend consistent.
func (s *Store) Upsert(ctx context.Context, f *Fragment) error {
	vec := f.Vector
	if vec == nil {
		var err error
		vec, err = s.Embedder.Embed(ctx, f.Content)
		if err != nil {
			return fmt.Errorf("memstore: embed fragment %s: %w", f.ID, err)
		}
	}
	meta := s.toMetadata(f)
	if err := s.Provider.Upsert(ctx, collectionName, f.ID, vec, meta); err != nil {
		return fmt.Errorf("memstore: upsert fragment %s: %w", f.ID, err)
	}
	s.mu.Lock()
	f.Vector = vec
	s.fragments[f.ID] = f
	s.mu.Unlock()
	return nil
}

// Get retrieves a fragment by id from the authoritative in-memory index.
func (s *Store) Get(id string) (*Fragment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fragments[id]
	return f, ok
}

// IterateAll returns every fragment, for maintenance sweeps.
func (s *Store) IterateAll() []*Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Fragment, 0, len(s.fragments))
	for _, f := range s.fragments {
		out = append(out, f)
	}
	return out
}

// Search runs a similarity query and resolves hits back to fragments.
func (s *Store) Search(ctx context.Context, queryVec []float32, topK int, filter map[string]any) ([]*Fragment, []float64, error) {
	results, err := s.Provider.SearchWithFilter(ctx, collectionName, queryVec, topK, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("memstore: search: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	frags := make([]*Fragment, 0, len(results))
	scores := make([]float64, 0, len(results))
	for _, r := range results {
		if f, ok := s.fragments[r.ID]; ok {
			frags = append(frags, f)
			scores = append(scores, r.Score)
		}
	}
	return frags, scores, nil
}

// MarkSuperseded writes a non-destructive supersession pointer: the
// losing fragment stays in the store (spec §8 non-destructiveness
// invariant).
func (s *Store) MarkSuperseded(loserID, winnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loser, ok := s.fragments[loserID]
	if !ok {
		return fmt.Errorf("memstore: unknown fragment %s", loserID)
	}
	loser.Lineage.SupersededBy = winnerID
	return nil
}

// Touch implements access tracking: increments access_count and stamps
// last_accessed, atomically with respect to other Store mutations.
func (s *Store) Touch(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fragments[id]; ok {
		f.Lineage.AccessCount++
		f.Lineage.LastAccessed = at
	}
}

func (s *Store) toMetadata(f *Fragment) map[string]any {
	tags, _ := json.Marshal(f.Tags)
	related, _ := json.Marshal(f.Lineage.RelatedMemoryIDs)
	return map[string]any{
		"content":   f.Content,
		"area":      f.Area,
		"domain":    f.Domain,
		"tags":      string(tags),
		"source":    string(f.Source),
		"utility":   string(f.Utility),
		"validity":  string(f.Validity),
		"relevance": string(f.Relevance),
		"related":   string(related),
	}
}

// Package ontology implements entity resolution: turning ingestion
// candidates into deduplicated entities and typed relationships between
// them, using deterministic blocking and weighted composite scoring
// rather than a model call.
package ontology

import "time"

// Provenance records where an ingestion candidate came from.
type Provenance struct {
	SourceID   string    `json:"source_id"`
	RecordID   string    `json:"record_id"`
	SourceType string    `json:"source_type"`
	IngestedAt time.Time `json:"ingested_at"`
	Confidence float64   `json:"confidence"`
}

// RelationshipHint is a weak, unresolved pointer to another entity
// surfaced at ingestion time, to be resolved during relationship
// resolution.
type RelationshipHint struct {
	Type     string `json:"type"`
	ToName   string `json:"to_name"`
	ToType   string `json:"to_type"`
	Context  string `json:"context"`
}

// Candidate is a proposed entity awaiting resolution against the store.
type Candidate struct {
	EntityType        string
	Properties        map[string]string
	RelationshipHints []RelationshipHint
	Provenance        Provenance
}

// Entity is a resolved, possibly-merged identity in the ontology.
type Entity struct {
	ID           string
	EntityType   string
	Name         string
	Properties   map[string]string
	Identifiers  map[string]string // e.g. ein, duns, ticker
	Context      []string          // free-text context tokens used for Jaccard scoring
	Confidence   float64
	SupersededBy string

	// ProvenanceChain carries every source record folded into this
	// entity, oldest first, so both sides of every merge stay
	// retrievable (spec §3 ontology metadata, §4.6 "both source
	// provenances preserved") instead of living only in the transient
	// audit log.
	ProvenanceChain []Provenance
	MergeHistory    []MergeEvent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MergeEvent is one durable entry in an entity's merge_history: which
// source record merged in, at what composite score, and when.
type MergeEvent struct {
	At     time.Time
	Score  float64
	Source Provenance
}

// RelationType enumerates known relationship kinds, including the
// maintenance-time discovery kinds.
type RelationType string

const (
	RelationTyped            RelationType = "typed"
	RelationUnresolved       RelationType = "unresolved"
	RelationCoMentioned      RelationType = "co_mentioned"
	RelationCoLocated        RelationType = "co_located"
	RelationTemporallyLinked RelationType = "temporally_linked"
)

// Relationship is one directed, typed edge between two entities.
type Relationship struct {
	ID         string
	FromID     string
	ToID       string
	ToName     string
	Type       string
	Kind       RelationType
	Confidence float64
	CreatedAt  time.Time
	Deprecated bool
}

// AuditEntry records a single merge/split/review decision for the audit log.
type AuditEntry struct {
	At         time.Time
	Action     string // "merge", "review", "distinct", "split"
	EntityIDs  []string
	Score      float64
	Reason     string
}

// Weights are the five-axis composite scoring weights (spec §4.6 defaults).
type Weights struct {
	Name       float64
	Identifier float64
	Address    float64
	Date       float64
	Context    float64
}

func DefaultWeights() Weights {
	return Weights{Name: 0.35, Identifier: 0.30, Address: 0.15, Date: 0.10, Context: 0.10}
}

const (
	MergeThreshold  = 0.85
	ReviewThreshold = 0.60

	MinConfidenceToSurface  = 0.3
	RelationshipAutoTypeMin = 0.80
)

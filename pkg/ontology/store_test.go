package ontology

import (
	"log/slog"
	"testing"
	"time"
)

func TestResolve_SharedIdentifierAutoMerges(t *testing.T) {
	store := NewStore(slog.Default())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Acme Corp", "ein": "12-3456789"},
		Provenance: Provenance{SourceType: "crm", Confidence: 0.9},
	}
	entity, decision, err := store.Resolve(first, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision != "distinct" {
		t.Fatalf("expected first candidate to be distinct, got %s", decision)
	}

	second := Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Acme Corporation", "ein": "12-3456789"},
		Provenance: Provenance{SourceType: "invoice", Confidence: 0.95},
	}
	_, decision2, err := store.Resolve(second, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if decision2 != "merged" {
		t.Fatalf("expected shared EIN to auto-merge, got %s", decision2)
	}

	if len(store.Entities()) != 1 {
		t.Fatalf("expected a single merged entity, got %d", len(store.Entities()))
	}
	if entity.Identifiers["ein"] != "12-3456789" {
		t.Fatalf("expected identifier preserved on winner")
	}
}

func TestResolve_DissimilarNamesStayDistinct(t *testing.T) {
	store := NewStore(slog.Default())
	now := time.Now()

	store.Resolve(Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Acme Corp"},
		Provenance: Provenance{Confidence: 0.8},
	}, now)
	_, decision, _ := store.Resolve(Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Zenith Holdings"},
		Provenance: Provenance{Confidence: 0.8},
	}, now)
	if decision != "distinct" {
		t.Fatalf("expected dissimilar names to stay distinct, got %s", decision)
	}
	if len(store.Entities()) != 2 {
		t.Fatalf("expected two entities, got %d", len(store.Entities()))
	}
}

func TestResolve_SharedIdentifierAcrossNamePrefixesStillMerges(t *testing.T) {
	store := NewStore(slog.Default())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := Candidate{
		EntityType: "person",
		Properties: map[string]string{"name": "John A. Smith", "address": "123 Main St", "ein": "12-3456789", "context": "filing"},
		Provenance: Provenance{SourceType: "filing", Confidence: 0.9},
	}
	_, decision, err := store.Resolve(first, now)
	if err != nil || decision != "distinct" {
		t.Fatalf("expected first candidate distinct, got %s (%v)", decision, err)
	}

	second := Candidate{
		EntityType: "person",
		Properties: map[string]string{"name": "J. Smith", "address": "123 Main Street", "ein": "12-3456789", "context": "filing"},
		Provenance: Provenance{SourceType: "filing", Confidence: 0.85},
	}
	entity, decision2, err := store.Resolve(second, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// "joh" vs "j s" never share a name-prefix block, so this only merges
	// if the identifier block unions into the same candidate set.
	if decision2 != "merged" {
		t.Fatalf("expected shared EIN across dissimilar name prefixes to auto-merge, got %s", decision2)
	}
	if len(entity.ProvenanceChain) != 2 {
		t.Fatalf("expected both source provenances retained, got %d", len(entity.ProvenanceChain))
	}
	if len(entity.MergeHistory) != 1 {
		t.Fatalf("expected one merge_history entry, got %d", len(entity.MergeHistory))
	}
}

func TestResolveBatch_TransitiveChainMergesToOneEntity(t *testing.T) {
	store := NewStore(slog.Default())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// A~B share an EIN; B and C have the same name and context, and C has no
	// EIN. No candidate has an address. A and C share the name block and
	// score about 0.93 on name and context alone, so every pair clears the
	// merge threshold and the batch ends with one entity.
	candidates := []Candidate{
		{
			EntityType: "organization",
			Properties: map[string]string{"name": "Acme Corp", "ein": "12-3456789", "context": "ops"},
			Provenance: Provenance{Confidence: 0.9},
		},
		{
			EntityType: "organization",
			Properties: map[string]string{"name": "Acme Corporation", "ein": "12-3456789", "context": "ops"},
			Provenance: Provenance{Confidence: 0.85},
		},
		{
			EntityType: "organization",
			Properties: map[string]string{"name": "Acme Corporation", "context": "ops"},
			Provenance: Provenance{Confidence: 0.8},
		},
	}

	outcomes := store.ResolveBatch(candidates, now)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	first := outcomes[0].Entity.ID
	for i, o := range outcomes {
		if o.Entity == nil || o.Entity.ID != first {
			t.Fatalf("expected all three candidates to resolve to one entity, outcome %d was %+v", i, o)
		}
	}
	if len(store.Entities()) != 1 {
		t.Fatalf("expected a single consolidated entity, got %d", len(store.Entities()))
	}
}

func TestClusterByTransitiveClosure(t *testing.T) {
	clusters := ClusterByTransitiveClosure([]string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}})
	merged := map[string]bool{}
	for _, members := range clusters {
		if len(members) == 3 {
			for _, m := range members {
				merged[m] = true
			}
		}
	}
	if !merged["a"] || !merged["b"] || !merged["c"] {
		t.Fatalf("expected a, b, c to transitively cluster together: %v", clusters)
	}
	if merged["d"] {
		t.Fatalf("expected d to remain its own cluster")
	}
}

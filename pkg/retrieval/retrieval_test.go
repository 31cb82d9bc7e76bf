package retrieval

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/vector"
)

func newTestEngine(t *testing.T) (*Engine, *memstore.Store) {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	emb := embedder.NewLocalEmbedder(32)
	store := memstore.New(provider, emb)
	eng := New(store, nil, Config{Enabled: true}, slog.Default())
	return eng, store
}

func TestRetrieve_InjectsStrongestLiteralMatch(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	// A repeats the query text word for word and lists F as related; B-E
	// reuse some of its words and F shares none. Only A's injection is
	// asserted; where F ranks is not checked.
	mk := func(id, content string, related []string) {
		f := &memstore.Fragment{
			ID: id, Content: content, Area: "memory", Source: memstore.SourceAgentInferred,
			CreatedAt: now, Lineage: memstore.Lineage{RelatedMemoryIDs: related, LastAccessed: now},
		}
		if err := store.Upsert(ctx, f); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	mk("A", "deploy the payment service to production", []string{"F"})
	mk("B", "deploy payment service canary", nil)
	mk("C", "payment service deployment checklist", nil)
	mk("D", "production deployment of payment service", nil)
	mk("E", "payment gateway release notes", nil)
	mk("F", "totally unrelated gardening notes", nil)

	eng.Cfg.KPerVariant = 5
	outcome := eng.Retrieve(ctx, "ops", "deploy the payment service to production", now)
	if !outcome.Applies() {
		t.Fatalf("expected Ok outcome, got %v", outcome)
	}
	result := outcome.Effect.(*Result)
	if len(result.Injected) == 0 {
		t.Fatalf("expected injected memories")
	}
	ids := map[string]bool{}
	for _, s := range result.Injected {
		ids[s.Fragment.ID] = true
	}
	if !ids["A"] {
		t.Fatalf("expected the strongest literal match A to be injected: %+v", result.Injected)
	}
}

func TestExpandQueries_IncludesOriginalKeywordAndDomainVariants(t *testing.T) {
	eng, _ := newTestEngine(t)
	queries := eng.expandQueries("billing", "Please refund the customer for the duplicate charge")
	if len(queries) < 2 {
		t.Fatalf("expected at least original+keyword variants, got %v", queries)
	}
	foundDomain := false
	for _, q := range queries {
		if q == "billing: refund customer duplicate charge" {
			foundDomain = true
		}
	}
	if !foundDomain {
		t.Fatalf("expected a domain:keyword variant in %v", queries)
	}
}

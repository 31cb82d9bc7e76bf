package maintenance

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/vector"
)

func newTestStore(t *testing.T) *memstore.Store {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return memstore.New(provider, embedder.NewLocalEmbedder(32))
}

func TestDedup_UserAssertedBeatsNewerAgentInferred(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	older := time.Now().Add(-48 * time.Hour)
	newer := time.Now()

	user := &memstore.Fragment{
		ID: "user-1", Content: "the deploy window is Tuesdays only",
		Source: memstore.SourceUserAsserted, CreatedAt: older,
	}
	agent := &memstore.Fragment{
		ID: "agent-1", Content: "the deploy window is Tuesdays only",
		Source: memstore.SourceAgentInferred, CreatedAt: newer,
	}
	if err := store.Upsert(ctx, user); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, agent); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	runner := New(store, nil, Config{Enabled: true, SimilarityThreshold: 0.0}, slog.Default())
	report := runner.Run(time.Now(), nil)

	if len(report.DeprecatedIDs) != 1 || report.DeprecatedIDs[0] != "agent-1" {
		t.Fatalf("expected agent-1 (newer but lower priority) to be deprecated, got %+v", report)
	}
	winner, _ := store.Get("user-1")
	if winner.Lineage.SupersededBy != "" {
		t.Fatalf("expected user-asserted fragment to remain authoritative")
	}
}

func TestDedup_LoadBearingNeverAutoDeprecated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := &memstore.Fragment{
		ID: "lb-1", Content: "never delete the audit trail",
		Source: memstore.SourceAgentInferred, Utility: memstore.UtilityLoadBearing, CreatedAt: now,
	}
	b := &memstore.Fragment{
		ID: "lb-2", Content: "never delete the audit trail",
		Source: memstore.SourceConfirmed, Utility: memstore.UtilityLoadBearing, CreatedAt: now,
	}
	store.Upsert(ctx, a)
	store.Upsert(ctx, b)

	runner := New(store, nil, Config{Enabled: true, SimilarityThreshold: 0.0}, slog.Default())
	report := runner.Run(now, nil)

	if len(report.DeprecatedIDs) != 0 {
		t.Fatalf("expected no auto-deprecation among load_bearing fragments, got %+v", report.DeprecatedIDs)
	}
	if len(report.FlaggedForReview) != 1 {
		t.Fatalf("expected the pair flagged for review instead, got %+v", report.FlaggedForReview)
	}
}

func TestLinkRelated_TagOverlapCreatesMutualLinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := &memstore.Fragment{ID: "a", Content: "a", Tags: []string{"payments", "refunds", "eu"}, CreatedAt: now}
	b := &memstore.Fragment{ID: "b", Content: "b", Tags: []string{"payments", "refunds", "eu", "extra"}, CreatedAt: now}
	store.Upsert(ctx, a)
	store.Upsert(ctx, b)

	runner := New(store, nil, Config{Enabled: true}, slog.Default())
	report := runner.Run(now, nil)

	if report.RelatedLinksAdded != 2 {
		t.Fatalf("expected mutual link (2 writes), got %d", report.RelatedLinksAdded)
	}
	fa, _ := store.Get("a")
	fb, _ := store.Get("b")
	if !contains(fa.Lineage.RelatedMemoryIDs, "b") || !contains(fb.Lineage.RelatedMemoryIDs, "a") {
		t.Fatalf("expected mutual related links, got a=%v b=%v", fa.Lineage.RelatedMemoryIDs, fb.Lineage.RelatedMemoryIDs)
	}
}

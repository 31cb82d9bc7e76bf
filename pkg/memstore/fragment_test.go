package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/vector"
)

type fakeProvider struct {
	upserted map[string][]float32
}

func newFakeProvider() *fakeProvider { return &fakeProvider{upserted: map[string][]float32{}} }

func (p *fakeProvider) Upsert(_ context.Context, _, id string, vec []float32, _ map[string]any) error {
	p.upserted[id] = vec
	return nil
}
func (p *fakeProvider) Search(context.Context, string, []float32, int) ([]vector.Result, error) {
	return nil, nil
}
func (p *fakeProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]vector.Result, error) {
	return nil, nil
}
func (p *fakeProvider) Delete(context.Context, string, string) error            { return nil }
func (p *fakeProvider) DeleteByFilter(context.Context, string, map[string]any) error { return nil }
func (p *fakeProvider) CreateCollection(context.Context, string, int) error     { return nil }
func (p *fakeProvider) DeleteCollection(context.Context, string) error          { return nil }
func (p *fakeProvider) Name() string                                           { return "fake" }
func (p *fakeProvider) Close() error                                           { return nil }

func TestStore_UpsertEmbedsAndIndexes(t *testing.T) {
	provider := newFakeProvider()
	store := New(provider, embedder.NewLocalEmbedder(16))

	frag := &Fragment{ID: "f1", Content: "the capital of france is paris", Source: SourceUserAsserted}
	if err := store.Upsert(context.Background(), frag); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if _, ok := provider.upserted["f1"]; !ok {
		t.Fatal("expected vector provider to receive the upsert")
	}
	got, ok := store.Get("f1")
	if !ok || got.Content != frag.Content {
		t.Fatalf("expected fragment to be retrievable by id, got %+v ok=%v", got, ok)
	}
	if len(got.Vector) != 16 {
		t.Fatalf("expected a 16-dim embedded vector, got %d", len(got.Vector))
	}
}

func TestFragment_ExemptFromDecay(t *testing.T) {
	cases := []struct {
		name string
		frag Fragment
		want bool
	}{
		{"load bearing", Fragment{Utility: UtilityLoadBearing}, true},
		{"user asserted", Fragment{Source: SourceUserAsserted}, true},
		{"confirmed", Fragment{Validity: ValidityConfirmed}, true},
		{"ordinary inferred", Fragment{Source: SourceAgentInferred}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.frag.Exempt(); got != c.want {
				t.Errorf("Exempt() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSource_Higher(t *testing.T) {
	if !SourceConfirmed.Higher(SourceUserAsserted) {
		t.Error("confirmed should outrank user_asserted")
	}
	if SourceDeprecated.Higher(SourceAgentInferred) {
		t.Error("deprecated should never outrank agent_inferred")
	}
}

func TestStore_MarkSuperseded(t *testing.T) {
	store := New(newFakeProvider(), embedder.NewLocalEmbedder(8))
	frag := &Fragment{ID: "loser", Content: "old fact"}
	if err := store.Upsert(context.Background(), frag); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.MarkSuperseded("loser", "winner"); err != nil {
		t.Fatalf("mark superseded: %v", err)
	}
	got, _ := store.Get("loser")
	if got.Lineage.SupersededBy != "winner" {
		t.Errorf("expected loser to point at winner, got %q", got.Lineage.SupersededBy)
	}
	if _, ok := store.Get("loser"); !ok {
		t.Error("superseded fragment must stay in the store, not be deleted")
	}
}

func TestStore_Touch(t *testing.T) {
	store := New(newFakeProvider(), embedder.NewLocalEmbedder(8))
	frag := &Fragment{ID: "f1", Content: "x"}
	_ = store.Upsert(context.Background(), frag)

	now := time.Now().UTC()
	store.Touch("f1", now)
	got, _ := store.Get("f1")
	if got.Lineage.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", got.Lineage.AccessCount)
	}
	if !got.Lineage.LastAccessed.Equal(now) {
		t.Errorf("expected last accessed to be stamped")
	}
}

package embedder

import (
	"context"
	"math"
	"testing"
)

func TestLocalEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewLocalEmbedder(32)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "bugfix in the payment service")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	v2, err := e.Embed(ctx, "bugfix in the payment service")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic embedding, diverged at index %d: %v vs %v", i, v1[i], v2[i])
		}
	}

	var sumSq float64
	for _, x := range v1 {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1.0) > 1e-3 {
		t.Fatalf("expected unit-normalized vector, got squared norm %v", sumSq)
	}
}

func TestLocalEmbedder_DifferentTextsDiffer(t *testing.T) {
	e := NewLocalEmbedder(32)
	ctx := context.Background()
	v1, _ := e.Embed(ctx, "refactor the auth middleware")
	v2, _ := e.Embed(ctx, "deploy the staging cluster")
	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected distinct embeddings for distinct texts")
	}
}

// Copyright 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cogscaffold/core/pkg/ontology"
)

func TestEntityResolveTool_BatchMergesSharedIdentifier(t *testing.T) {
	store := ontology.NewStore(slog.Default())
	tl := NewEntityResolveTool(store)

	args := map[string]any{
		"entity_type":      "organization",
		"investigation_id": "inv-1",
		"candidates": []any{
			map[string]any{
				"properties": map[string]any{"name": "Acme Corp", "ein": "12-3456789", "context": "ops"},
				"confidence": 0.9,
			},
			map[string]any{
				"properties": map[string]any{"name": "Acme Corporation", "ein": "12-3456789", "context": "ops"},
				"confidence": 0.85,
			},
		},
	}
	resp, err := tl.Call(context.Background(), args)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(store.Entities()) != 1 {
		t.Fatalf("expected candidates sharing an EIN to resolve to one entity, got %d", len(store.Entities()))
	}
	if resp.Additional["entity_count"].(int) != 1 {
		t.Fatalf("expected entity_count 1, got %v", resp.Additional["entity_count"])
	}
}

func TestOntologySearchTool_FindsByName(t *testing.T) {
	store := ontology.NewStore(slog.Default())
	store.Resolve(ontology.Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Acme Corp"},
		Provenance: ontology.Provenance{Confidence: 0.9},
	}, time.Now())

	tl := NewOntologySearchTool(store)
	resp, err := tl.Call(context.Background(), map[string]any{"query": "Acme Corp"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	entities, ok := resp.Additional["entities"].([]map[string]any)
	if !ok || len(entities) != 1 {
		t.Fatalf("expected one matching entity, got %+v", resp.Additional["entities"])
	}
}

func TestRelationshipQueryTool_ListsSurfacedNeighbours(t *testing.T) {
	store := ontology.NewStore(slog.Default())
	now := time.Now()
	entity, _, _ := store.Resolve(ontology.Candidate{
		EntityType: "organization",
		Properties: map[string]string{"name": "Acme Corp"},
		Provenance: ontology.Provenance{Confidence: 0.9},
	}, now)
	store.RecordDiscoveredRelationship(entity.ID, "ent-other", ontology.RelationCoMentioned, 0.5, now)

	tl := NewRelationshipQueryTool(store)
	resp, err := tl.Call(context.Background(), map[string]any{"entity_id": entity.ID})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(resp.Message, "co_mentioned") {
		t.Fatalf("expected the surfaced co_mentioned relationship in the listing, got %q", resp.Message)
	}
}

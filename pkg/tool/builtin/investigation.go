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
	"fmt"
	"time"

	"github.com/cogscaffold/core/pkg/ontology"
	"github.com/cogscaffold/core/pkg/tool"
)

// OntologySearchTool looks entities up by name, generalized from
// tools/investigation_tools.py's OntologySearch tool.
type OntologySearchTool struct {
	Ontology *ontology.Store
}

func NewOntologySearchTool(o *ontology.Store) *OntologySearchTool { return &OntologySearchTool{Ontology: o} }

func (t *OntologySearchTool) Name() string { return "ontology_search" }
func (t *OntologySearchTool) Description() string {
	return "Search resolved ontology entities by name."
}

func (t *OntologySearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string"},
			"entity_type": map[string]any{"type": "string"},
			"limit":       map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
}

func (t *OntologySearchTool) Call(ctx context.Context, args map[string]any) (tool.Response, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tool.Response{Message: "syntax error: query is required"}, nil
	}
	entityType, _ := args["entity_type"].(string)
	limit := 10
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}

	var results []*ontology.Entity
	for _, e := range t.Ontology.MatchEntitiesByName(query) {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		results = append(results, e)
		if len(results) >= limit {
			break
		}
	}
	if len(results) == 0 {
		return tool.Response{Message: fmt.Sprintf("no ontology entities found matching: %s", query)}, nil
	}

	entries := make([]map[string]any, 0, len(results))
	msg := fmt.Sprintf("found %d ontology entities:\n", len(results))
	for _, e := range results {
		msg += fmt.Sprintf("- %s (%s, id: %s), sources: %d\n", e.Name, e.EntityType, e.ID, len(e.ProvenanceChain))
		entries = append(entries, map[string]any{
			"entity_id":   e.ID,
			"entity_type": e.EntityType,
			"name":        e.Name,
			"sources":     len(e.ProvenanceChain),
		})
	}
	return tool.Response{Message: msg, Additional: map[string]any{"entities": entries}}, nil
}

// EntityResolveTool runs batch resolution over a queued set of candidates,
// generalized from tools/investigation_tools.py's EntityResolve tool. It is
// records a given investigation_id as a single "investigation_id" property
// on each candidate. There is no list of investigation tags: an existing
// entity that a candidate merges into keeps the investigation_id it has.
type EntityResolveTool struct {
	Ontology *ontology.Store
}

func NewEntityResolveTool(o *ontology.Store) *EntityResolveTool { return &EntityResolveTool{Ontology: o} }

func (t *EntityResolveTool) Name() string { return "entity_resolve" }
func (t *EntityResolveTool) Description() string {
	return "Resolve a batch of queued candidate entities against the ontology store."
}

func (t *EntityResolveTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity_type":       map[string]any{"type": "string"},
			"investigation_id":  map[string]any{"type": "string"},
			"candidates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"properties": map[string]any{"type": "object"},
						"confidence": map[string]any{"type": "number"},
					},
				},
			},
		},
		"required": []string{"candidates"},
	}
}

func (t *EntityResolveTool) Call(ctx context.Context, args map[string]any) (tool.Response, error) {
	raw, _ := args["candidates"].([]any)
	if len(raw) == 0 {
		return tool.Response{Message: "syntax error: candidates is required"}, nil
	}
	entityType, _ := args["entity_type"].(string)
	if entityType == "" {
		entityType = "entity"
	}
	investigationID, _ := args["investigation_id"].(string)

	now := time.Now().UTC()
	candidates := make([]ontology.Candidate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		props := map[string]string{}
		if pm, ok := m["properties"].(map[string]any); ok {
			for k, v := range pm {
				props[k] = fmt.Sprintf("%v", v)
			}
		}
		if investigationID != "" {
			props["investigation_id"] = investigationID
		}
		confidence := 0.7
		if v, ok := m["confidence"].(float64); ok {
			confidence = v
		}
		candidates = append(candidates, ontology.Candidate{
			EntityType: entityType,
			Properties: props,
			Provenance: ontology.Provenance{SourceType: "investigation", IngestedAt: now, Confidence: confidence},
		})
	}

	outcomes := t.Ontology.ResolveBatch(candidates, now)
	merged, distinct, review := 0, 0, 0
	entityIDs := map[string]bool{}
	for _, o := range outcomes {
		switch o.Status {
		case "merged":
			merged++
		case "review":
			review++
		default:
			distinct++
		}
		if o.Entity != nil {
			entityIDs[o.Entity.ID] = true
		}
	}
	msg := fmt.Sprintf("resolved %d candidates into %d entities (%d merged, %d distinct, %d pending review)",
		len(candidates), len(entityIDs), merged, distinct, review)
	return tool.Response{Message: msg, Additional: map[string]any{"entity_count": len(entityIDs)}}, nil
}

// RelationshipQueryTool looks up an entity's typed neighbours, generalized
// from tools/investigation_tools.py's RelationshipQuery tool.
type RelationshipQueryTool struct {
	Ontology *ontology.Store
}

func NewRelationshipQueryTool(o *ontology.Store) *RelationshipQueryTool {
	return &RelationshipQueryTool{Ontology: o}
}

func (t *RelationshipQueryTool) Name() string { return "relationship_query" }
func (t *RelationshipQueryTool) Description() string {
	return "List an entity's typed relationships that clear the surface confidence gate."
}

func (t *RelationshipQueryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity_id": map[string]any{"type": "string"},
			"max":       map[string]any{"type": "integer"},
		},
		"required": []string{"entity_id"},
	}
}

func (t *RelationshipQueryTool) Call(ctx context.Context, args map[string]any) (tool.Response, error) {
	entityID, _ := args["entity_id"].(string)
	if entityID == "" {
		return tool.Response{Message: "syntax error: entity_id is required"}, nil
	}
	max := 10
	if v, ok := args["max"].(float64); ok && v > 0 {
		max = int(v)
	}

	edges := t.Ontology.Neighbours(entityID, max)
	if len(edges) == 0 {
		return tool.Response{Message: fmt.Sprintf("no surfaced relationships for entity %s", entityID)}, nil
	}
	msg := fmt.Sprintf("%d relationships for entity %s:\n", len(edges), entityID)
	for _, e := range edges {
		msg += fmt.Sprintf("- %s --%s--> %s\n", entityID, e.Type, e.ToName)
	}
	return tool.Response{Message: msg}, nil
}

// InvestigationToolset groups the ontology investigation tools under one
// registration unit, the way tools/investigation_tools.py bundles its
// Agent-Zero Tool classes into one module.
type InvestigationToolset struct {
	Ontology *ontology.Store
}

func NewInvestigationToolset(o *ontology.Store) InvestigationToolset {
	return InvestigationToolset{Ontology: o}
}

func (s InvestigationToolset) Tools() []tool.Tool {
	return []tool.Tool{
		NewOntologySearchTool(s.Ontology),
		NewEntityResolveTool(s.Ontology),
		NewRelationshipQueryTool(s.Ontology),
	}
}

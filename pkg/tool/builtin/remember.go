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

// Package builtin provides the small set of local tools the reference CLI
// registers by default: ones that exercise the scaffolding core's own
// stores rather than the outside world, so a turn can be driven end to end
// without any external service configured.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/tool"
	"github.com/google/uuid"
)

// RememberTool writes a user-asserted, load-bearing memory fragment. It is
// the model's explicit path to Memory Enhancement: a fact it chooses to
// persist rather than one the core infers on its own.
type RememberTool struct {
	Store *memstore.Store
}

func NewRememberTool(store *memstore.Store) *RememberTool {
	return &RememberTool{Store: store}
}

func (t *RememberTool) Name() string        { return "remember" }
func (t *RememberTool) Description() string { return "Persist a fact the user explicitly asked to be remembered." }

func (t *RememberTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string"},
			"domain":  map[string]any{"type": "string"},
			"tags":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"content"},
	}
}

func (t *RememberTool) Call(ctx context.Context, args map[string]any) (tool.Response, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return tool.Response{Message: "syntax error: content is required", BreakLoop: false}, nil
	}
	domain, _ := args["domain"].(string)
	var tags []string
	if raw, ok := args["tags"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	frag := &memstore.Fragment{
		ID:        uuid.NewString(),
		Content:   content,
		Domain:    domain,
		Tags:      tags,
		Source:    memstore.SourceUserAsserted,
		Utility:   memstore.UtilityLoadBearing,
		Validity:  memstore.ValidityConfirmed,
		Relevance: memstore.RelevanceActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.Store.Upsert(ctx, frag); err != nil {
		return tool.Response{Message: fmt.Sprintf("execution error: %v", err)}, nil
	}
	return tool.Response{Message: "remembered", Additional: map[string]any{"memory_id": frag.ID}}, nil
}

// Toolset groups the builtin tools under one registration unit.
type Toolset struct {
	Store *memstore.Store
}

func NewToolset(store *memstore.Store) Toolset {
	return Toolset{Store: store}
}

func (s Toolset) Tools() []tool.Tool {
	return []tool.Tool{NewRememberTool(s.Store)}
}

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

package tool

import (
	"context"
	"testing"
)

type stubTool struct{ name string }

func (s stubTool) Name() string                 { return s.name }
func (s stubTool) Description() string          { return "stub" }
func (s stubTool) Schema() map[string]any       { return map[string]any{} }
func (s stubTool) Call(context.Context, map[string]any) (Response, error) {
	return Response{Message: "ok"}, nil
}

type stubToolset struct{ tools []Tool }

func (s stubToolset) Tools() []Tool { return s.tools }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(stubToolset{tools: []Tool{stubTool{name: "alpha"}, stubTool{name: "beta"}}})

	got, ok := r.Lookup("alpha")
	if !ok || got.Name() != "alpha" {
		t.Fatalf("expected to find alpha, got %+v ok=%v", got, ok)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected missing tool to not be found")
	}

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 registered names, got %d", len(names))
	}
}

func TestRegistry_RegisterMultipleToolsetsMerges(t *testing.T) {
	r := NewRegistry()
	r.Register(
		stubToolset{tools: []Tool{stubTool{name: "alpha"}}},
		stubToolset{tools: []Tool{stubTool{name: "beta"}}},
	)
	if len(r.Names()) != 2 {
		t.Fatalf("expected tools from both toolsets to be registered")
	}
}

func TestRegistry_LaterRegistrationOverridesSameName(t *testing.T) {
	r := NewRegistry()
	first := stubTool{name: "alpha"}
	r.Register(stubToolset{tools: []Tool{first}})
	r.Register(stubToolset{tools: []Tool{stubTool{name: "alpha"}}})

	if len(r.Names()) != 1 {
		t.Fatalf("expected one alpha entry after re-registration, got %d", len(r.Names()))
	}
}

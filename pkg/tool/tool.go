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

// Package tool defines the invocation contract every callable capability
// implements: a static argument schema and a synchronous call that
// returns a Response. Classification of the call's outcome is derived
// only from Response.Message, never from side channels, so the Tool
// Fallback Gate's classifier has one place to look.
package tool

import "context"

// Response is the fixed shape every tool call returns.
type Response struct {
	Message    string         `json:"message"`
	BreakLoop  bool           `json:"break_loop"`
	Additional map[string]any `json:"additional,omitempty"`
}

// Tool is a named, schema-described capability the Graph Workflow Engine
// can invoke from a task node's instruction.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Call(ctx context.Context, args map[string]any) (Response, error)
}

// Toolset groups tools under one registration unit, the way a connected
// external service or a themed bundle of local tools would.
type Toolset interface {
	Tools() []Tool
}

// Registry resolves tool names to callable tools across every
// registered toolset.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(sets ...Toolset) {
	for _, s := range sets {
		for _, t := range s.Tools() {
			r.tools[t.Name()] = t
		}
	}
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

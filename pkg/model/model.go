// Package model defines the turn-level contract between the scaffolding
// core and whatever LLM backend answers it: one call per turn, with the
// full turn context already concatenated by the caller, returning a reply
// that may carry tool calls. The core treats the backend as unreliable and
// never depends on it for scoring, classification, or resolution; those
// stay deterministic and live entirely in the surrounding pipeline.
package model

import "context"

// ToolCall is a single invocation the model asked for in its reply.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Request is the single concatenated input for one turn: system prompt,
// conversation history ending in the BST-enriched user message, the
// current workflow node's instruction, injected memory context, and any
// supervisor steering message, in that order (spec §6).
type Request struct {
	SystemPrompt   string
	History        []string
	UserMessage    string
	NodeInstruction string
	MemoryContext  []string
	Steering       []string
	ToolNames      []string
	Temperature    *float64
	MaxTokens      *int
}

// Concat joins every section of the request into the single prompt string
// an LLM call actually sends, in spec order, skipping empty sections.
func (r *Request) Concat() string {
	var parts []string
	if r.SystemPrompt != "" {
		parts = append(parts, r.SystemPrompt)
	}
	parts = append(parts, r.History...)
	parts = append(parts, r.UserMessage)
	if r.NodeInstruction != "" {
		parts = append(parts, r.NodeInstruction)
	}
	parts = append(parts, r.MemoryContext...)
	parts = append(parts, r.Steering...)
	return joinNonEmpty(parts, "\n\n")
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !first {
			out += sep
		}
		out += p
		first = false
	}
	return out
}

// Response is the backend's reply to one turn.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// LLM is the minimal interface every backend implements. Backends are
// expected to be unreliable: timeouts, malformed tool-call syntax, and
// truncated output are normal operating conditions the caller handles,
// not exceptional ones the backend must prevent.
type LLM interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Package workflow implements the Graph Workflow Engine (spec §4.3): a
// directed-graph traversal that selects a workflow by domain, holds
// traversal state, injects the current node's instruction, and advances on
// verification results.
package workflow

import (
	"encoding/json"
	"os"
)

// NodeType is one of the six node kinds below.
type NodeType string

const (
	NodeStart      NodeType = "start"
	NodeTask       NodeType = "task"
	NodeDecision   NodeType = "decision"
	NodeEscalate   NodeType = "escalate"
	NodeCheckpoint NodeType = "checkpoint"
	NodeExit       NodeType = "exit"
)

// Verification is the narrow verification-predicate language the spec's
// Open Questions ask implementers to define (spec §9): a tool return flag
// check, a regex over tool output, or a file-existence check. Exactly one
// kind is set.
type Verification struct {
	Kind          string `json:"kind"` // "tool_flag", "regex", "file_exists"
	ToolFlag      string `json:"tool_flag,omitempty"`
	Pattern       string `json:"pattern,omitempty"`
	Path          string `json:"path,omitempty"`
}

// Node is one vertex of a workflow graph.
type Node struct {
	ID           string        `json:"id"`
	Type         NodeType      `json:"type"`
	Instruction  string        `json:"instruction,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

// EdgeCondition is evaluated in a fixed precedence order per transition.
type EdgeCondition string

const (
	OnSuccess EdgeCondition = "on_success"
	OnFail    EdgeCondition = "on_fail"
	OnRetry   EdgeCondition = "on_retry"
	OnExhaust EdgeCondition = "on_exhaust"
	Always    EdgeCondition = "always"
)

// conditionPrecedence is the evaluation order from spec §4.3:
// on_success, on_retry (if budget remains), on_fail, on_exhaust, always.
var conditionPrecedence = []EdgeCondition{OnSuccess, OnRetry, OnFail, OnExhaust, Always}

// Edge is one directed transition between two nodes.
type Edge struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Condition  EdgeCondition `json:"condition"`
	MaxRetries int           `json:"max_retries,omitempty"`
}

// Graph is one workflow definition (spec's Workflow Graph record).
type Graph struct {
	WorkflowID     string   `json:"workflow_id"`
	TriggerDomains []string `json:"trigger_domains"`
	Nodes          []Node   `json:"nodes"`
	Edges          []Edge   `json:"edges"`
}

func (g *Graph) node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

func (g *Graph) edgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Library is the workflows/library.json document: an ordered set of graphs.
type Library struct {
	Workflows []Graph `json:"workflows"`
}

func (l *Library) byID(id string) *Graph {
	for i := range l.Workflows {
		if l.Workflows[i].WorkflowID == id {
			return &l.Workflows[i]
		}
	}
	return nil
}

// LoadLibrary reads the workflow library from disk. A missing or malformed
// file yields an empty library: the engine then emits no instruction and
// does not block the turn (spec §4.3 failure semantics).
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Library{}, err
	}
	var lib Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return &Library{}, err
	}
	return &lib, nil
}

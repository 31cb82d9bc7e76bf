package workflow

import (
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/cogscaffold/core/pkg/corectx"
)

var osStat = os.Stat

// State holds one session's workflow traversal position. It is the
// continuation the engine carries forward across turns: the same workflow
// and node persist until a terminal node or an explicit reselection is
// warranted, rather than reselecting on every turn (spec §4.3 continuity
// rule).
type State struct {
	WorkflowID string
	NodeID     string
	RetryCount map[string]int // per-node retry counters
	Events     []corectx.Event
}

// ToolSignal is the subset of tool-invocation results a verification
// predicate can read.
type ToolSignal struct {
	Flags  map[string]bool
	Output string
}

// Engine runs the Graph Workflow Engine pipeline stage.
type Engine struct {
	Library *Library
	Log     *slog.Logger
}

func New(lib *Library, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if lib == nil {
		lib = &Library{}
	}
	return &Engine{Library: lib, Log: log}
}

// Result is the engine's per-turn effect: the node to inject, the updated
// state, and whether traversal reached a terminal node this turn.
type Result struct {
	State       *State
	Node        *Node
	WorkflowID  string
	Terminal    bool
	Escalated   bool
}

// Advance selects or continues a workflow and advances it by one node.
// domain drives (re)selection when prior is nil or its workflow is not in
// whitelist; signal carries the previous turn's tool outcome used to
// evaluate the current node's outbound edges. whitelist, when non-empty,
// bounds which workflows may be selected (spec §8 role-filter soundness).
func (e *Engine) Advance(domain string, whitelist []string, prior *State, signal *ToolSignal, turn int64) corectx.ComponentOutcome {
	return corectx.Boundary("workflow", func() (corectx.ComponentOutcome, error) {
		return e.advance(domain, whitelist, prior, signal, turn)
	})
}

func (e *Engine) advance(domain string, whitelist []string, prior *State, signal *ToolSignal, turn int64) (corectx.ComponentOutcome, error) {
	st := prior
	graph := e.currentGraph(st)

	if st == nil || graph == nil || !allowed(graph.WorkflowID, whitelist) {
		graph = e.selectForDomain(domain, whitelist)
		if graph == nil {
			return corectx.SkipOutcome("no workflow matches domain " + domain), nil
		}
		st = &State{WorkflowID: graph.WorkflowID, NodeID: startNodeID(graph), RetryCount: map[string]int{}}
	}

	result := &Result{State: st, WorkflowID: graph.WorkflowID}
	visited := map[string]bool{}

	for {
		node := graph.node(st.NodeID)
		if node == nil {
			return corectx.FailOutcome(errUnknownNode(st.NodeID)), nil
		}

		if node.Type == NodeExit {
			result.Node = node
			result.Terminal = true
			return corectx.OkOutcome(result), nil
		}

		if visited[node.ID] {
			result.Node = node
			return corectx.OkOutcome(result), nil
		}
		visited[node.ID] = true

		if node.Type == NodeEscalate {
			result.Escalated = true
			st.appendEvent(turn, node.ID, "escalate")
		}
		if node.Type == NodeCheckpoint {
			st.appendEvent(turn, node.ID, "checkpoint")
		}

		// A task node with a verification predicate but no signal yet has
		// not been attempted: present it rather than guessing a fail branch.
		// start/escalate/checkpoint/decision nodes carry no predicate and
		// always cascade on their own edges.
		if node.Type != NodeStart && node.Type != NodeEscalate && node.Type != NodeCheckpoint &&
			node.Verification != nil && signal == nil {
			result.Node = node
			return corectx.OkOutcome(result), nil
		}

		next := e.pickEdge(graph, node, signal, st)
		if next == nil {
			result.Node = node
			return corectx.OkOutcome(result), nil
		}
		st.appendEvent(turn, node.ID, "transition:"+string(next.Condition))
		st.NodeID = next.To
	}
}

func (s *State) appendEvent(turn int64, nodeID, detail string) {
	s.Events = append(s.Events, corectx.Event{
		Timestamp: time.Now().UTC(),
		Type:      "workflow_transition",
		NodeID:    nodeID,
		Detail:    detail,
	})
}

func (e *Engine) currentGraph(st *State) *Graph {
	if st == nil {
		return nil
	}
	return e.Library.byID(st.WorkflowID)
}

func (e *Engine) selectForDomain(domain string, whitelist []string) *Graph {
	for i := range e.Library.Workflows {
		g := &e.Library.Workflows[i]
		if !allowed(g.WorkflowID, whitelist) {
			continue
		}
		for _, d := range g.TriggerDomains {
			if d == domain {
				return g
			}
		}
	}
	return nil
}

func allowed(workflowID string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	for _, w := range whitelist {
		if w == workflowID {
			return true
		}
	}
	return false
}

func startNodeID(g *Graph) string {
	for _, n := range g.Nodes {
		if n.Type == NodeStart {
			return n.ID
		}
	}
	if len(g.Nodes) > 0 {
		return g.Nodes[0].ID
	}
	return ""
}

// pickEdge evaluates node's outbound edges in the fixed precedence order
// on_success, on_retry, on_fail, on_exhaust, always, returning the first
// edge whose condition is satisfied.
func (e *Engine) pickEdge(g *Graph, node *Node, signal *ToolSignal, st *State) *Edge {
	edges := g.edgesFrom(node.ID)
	if len(edges) == 0 {
		return nil
	}
	byCondition := map[EdgeCondition][]Edge{}
	for _, ed := range edges {
		byCondition[ed.Condition] = append(byCondition[ed.Condition], ed)
	}

	verified := e.verify(node, signal)

	for _, cond := range conditionPrecedence {
		cands := byCondition[cond]
		if len(cands) == 0 {
			continue
		}
		switch cond {
		case OnSuccess:
			if verified {
				return &cands[0]
			}
		case OnRetry:
			if !verified {
				ed := cands[0]
				if st.RetryCount[node.ID] < ed.MaxRetries {
					st.RetryCount[node.ID]++
					return &ed
				}
			}
		case OnFail:
			if !verified {
				return &cands[0]
			}
		case OnExhaust:
			ed := cands[0]
			if !verified && st.RetryCount[node.ID] >= ed.MaxRetries {
				return &ed
			}
		case Always:
			return &cands[0]
		}
	}
	return nil
}

// verify evaluates a node's verification predicate against the current
// tool signal. A node with no predicate is treated as always satisfied
// (decision/start/checkpoint nodes typically carry none).
func (e *Engine) verify(node *Node, signal *ToolSignal) bool {
	v := node.Verification
	if v == nil {
		return true
	}
	if signal == nil {
		return false
	}
	switch v.Kind {
	case "tool_flag":
		return signal.Flags[v.ToolFlag]
	case "regex":
		re, err := regexp.Compile(v.Pattern)
		if err != nil {
			e.Log.Warn("invalid verification regex", "node", node.ID, "pattern", v.Pattern)
			return false
		}
		return re.MatchString(signal.Output)
	case "file_exists":
		_, err := osStat(v.Path)
		return err == nil
	default:
		return false
	}
}

type engineError string

func (e engineError) Error() string { return string(e) }

func errUnknownNode(id string) error {
	return engineError("workflow: unknown node " + id)
}

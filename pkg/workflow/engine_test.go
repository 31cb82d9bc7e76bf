package workflow

import (
	"testing"

	"github.com/cogscaffold/core/pkg/corectx"
)

func testLibrary() *Library {
	return &Library{Workflows: []Graph{
		{
			WorkflowID:     "bugfix_workflow",
			TriggerDomains: []string{"bugfix"},
			Nodes: []Node{
				{ID: "begin", Type: NodeStart},
				{ID: "apply_fix", Type: NodeTask, Verification: &Verification{Kind: "tool_flag", ToolFlag: "applied"}},
				{ID: "run_tests", Type: NodeTask, Verification: &Verification{Kind: "tool_flag", ToolFlag: "passed"}},
				{ID: "escalate", Type: NodeEscalate},
				{ID: "done", Type: NodeExit},
			},
			Edges: []Edge{
				{From: "begin", To: "apply_fix", Condition: Always},
				{From: "apply_fix", To: "run_tests", Condition: OnSuccess},
				{From: "apply_fix", To: "apply_fix", Condition: OnRetry, MaxRetries: 2},
				{From: "apply_fix", To: "escalate", Condition: OnExhaust, MaxRetries: 2},
				{From: "run_tests", To: "done", Condition: OnSuccess},
				{From: "run_tests", To: "apply_fix", Condition: OnFail},
				{From: "escalate", To: "done", Condition: Always},
			},
		},
		{
			WorkflowID:     "codegen_workflow",
			TriggerDomains: []string{"codegen"},
			Nodes: []Node{
				{ID: "start", Type: NodeStart},
				{ID: "write", Type: NodeTask},
				{ID: "exit", Type: NodeExit},
			},
			Edges: []Edge{
				{From: "start", To: "write", Condition: Always},
				{From: "write", To: "exit", Condition: Always},
			},
		},
	}}
}

func TestEngine_SelectsWorkflowByDomain(t *testing.T) {
	e := New(testLibrary(), nil)
	outcome := e.Advance("bugfix", nil, nil, nil, 1)
	res := outcome.Effect.(*Result)
	if res.WorkflowID != "bugfix_workflow" {
		t.Fatalf("expected bugfix_workflow, got %s", res.WorkflowID)
	}
	if res.Node.ID != "apply_fix" {
		t.Fatalf("expected traversal past start to apply_fix, got %s", res.Node.ID)
	}
}

func TestEngine_RoleWhitelistBoundsSelection(t *testing.T) {
	e := New(testLibrary(), nil)
	outcome := e.Advance("bugfix", []string{"codegen_workflow"}, nil, nil, 1)
	if outcome.Kind != corectx.Skip {
		t.Fatalf("expected skip when whitelist excludes the only matching workflow, got %v", outcome)
	}
}

func TestEngine_RetryThenExhaustEscalates(t *testing.T) {
	e := New(testLibrary(), nil)
	outcome := e.Advance("bugfix", nil, nil, nil, 1)
	res := outcome.Effect.(*Result)
	st := res.State

	fail := &ToolSignal{Flags: map[string]bool{"applied": false}}

	// retry 1
	outcome = e.Advance("bugfix", nil, st, fail, 2)
	res = outcome.Effect.(*Result)
	if res.Node.ID != "apply_fix" {
		t.Fatalf("expected retry to stay on apply_fix, got %s", res.Node.ID)
	}
	// retry 2
	outcome = e.Advance("bugfix", nil, st, fail, 3)
	res = outcome.Effect.(*Result)
	if res.Node.ID != "apply_fix" {
		t.Fatalf("expected second retry to stay on apply_fix, got %s", res.Node.ID)
	}
	// exhausted: retries used up, escalates and then follows its always
	// edge straight through to the exit node.
	outcome = e.Advance("bugfix", nil, st, fail, 4)
	res = outcome.Effect.(*Result)
	if !res.Escalated {
		t.Fatalf("expected escalation flag set after retries exhausted")
	}
	if res.Node.ID != "done" {
		t.Fatalf("expected escalate node to cascade to done, got %s", res.Node.ID)
	}
}

func TestEngine_SuccessPathReachesExit(t *testing.T) {
	e := New(testLibrary(), nil)
	outcome := e.Advance("bugfix", nil, nil, nil, 1)
	res := outcome.Effect.(*Result)
	st := res.State

	ok := &ToolSignal{Flags: map[string]bool{"applied": true, "passed": true}}
	outcome = e.Advance("bugfix", nil, st, ok, 2)
	res = outcome.Effect.(*Result)
	if res.Node.ID != "done" {
		t.Fatalf("expected run_tests success to reach done, got %s", res.Node.ID)
	}
	if !res.Terminal {
		t.Fatalf("expected terminal result at exit node")
	}
}

func TestEngine_ContinuesSameWorkflowAcrossTurns(t *testing.T) {
	e := New(testLibrary(), nil)
	first := e.Advance("bugfix", nil, nil, nil, 1)
	st := first.Effect.(*Result).State

	second := e.Advance("bugfix", nil, st, &ToolSignal{Flags: map[string]bool{"applied": true, "passed": false}}, 2)
	res := second.Effect.(*Result)
	if res.WorkflowID != "bugfix_workflow" {
		t.Fatalf("expected continuation of same workflow, got %s", res.WorkflowID)
	}
	if res.Node.ID != "apply_fix" {
		t.Fatalf("expected run_tests fail to loop back to apply_fix, got %s", res.Node.ID)
	}
}

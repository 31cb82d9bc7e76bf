package orgkernel

import (
	"testing"

	"github.com/cogscaffold/core/pkg/corectx"
)

func testOrg() *Organization {
	return &Organization{OrgID: "software_dev", Mode: ModeMicrocosm}
}

func testRoles() map[string]Role {
	return map[string]Role{
		"bugfix_specialist": {
			RoleID:   "bugfix_specialist",
			RoleType: RoleSpecialist,
			Capabilities: Capabilities{
				Domains:   []string{"bugfix"},
				Workflows: []string{"bugfix_workflow", "log_investigation"},
			},
			Doctrine: Doctrine{SALUTEIntervalTurns: 5},
			PacePlan: []PaceTierPlan{
				{Tier: PaceAlternate, TriggerFailuresAtLeast: 3, Action: "retry with alternate tool"},
				{Tier: PaceContingent, TriggerFailuresAtLeast: 5, Action: "escalate to supervisor"},
			},
		},
		"codegen_specialist": {
			RoleID:   "codegen_specialist",
			RoleType: RoleSpecialist,
			Capabilities: Capabilities{
				Domains:   []string{"codegen"},
				Workflows: []string{"codegen_workflow"},
			},
		},
		"commander": {
			RoleID:   "commander",
			RoleType: RoleCommander,
			Capabilities: Capabilities{
				Domains: []string{"bugfix", "codegen"},
			},
		},
	}
}

func TestKernel_PrefersSpecialistOverCommander(t *testing.T) {
	k := New(testOrg(), testRoles(), nil, nil)
	outcome := k.Process("bugfix", AgentState{}, StateActive, 1)
	res := outcome.Effect.(*SelectionResult)
	if res.Role.RoleID != "bugfix_specialist" {
		t.Fatalf("expected bugfix_specialist, got %s", res.Role.RoleID)
	}
}

func TestKernel_NoRoleActive_WhenNoOrg(t *testing.T) {
	k := New(nil, testRoles(), nil, nil)
	outcome := k.Process("bugfix", AgentState{}, StateActive, 1)
	if outcome.Kind != corectx.Skip {
		t.Fatalf("expected Skip outcome with no active org, got %v", outcome)
	}
}

func TestKernel_WorkflowFilterSwitchesOnDomainChange(t *testing.T) {
	k := New(testOrg(), testRoles(), nil, nil)

	first := k.Process("bugfix", AgentState{}, StateActive, 1)
	res1 := first.Effect.(*SelectionResult)
	if len(res1.WorkflowWhitelist) != 2 {
		t.Fatalf("expected bugfix_specialist's two workflows, got %v", res1.WorkflowWhitelist)
	}

	second := k.Process("codegen", AgentState{}, StateActive, 2)
	res2 := second.Effect.(*SelectionResult)
	if res2.Role.RoleID != "codegen_specialist" {
		t.Fatalf("expected switch to codegen_specialist, got %s", res2.Role.RoleID)
	}
	for _, w := range res1.WorkflowWhitelist {
		for _, w2 := range res2.WorkflowWhitelist {
			if w == w2 {
				t.Fatalf("workflow whitelist leaked across role switch: %s", w)
			}
		}
	}
}

func TestKernel_PaceEscalatesAndRecovers(t *testing.T) {
	k := New(testOrg(), testRoles(), nil, nil)

	for i := 1; i <= 3; i++ {
		outcome := k.Process("bugfix", AgentState{ToolFailuresConsecutive: 3}, StateActive, int64(i))
		res := outcome.Effect.(*SelectionResult)
		if res.PaceLevel != PaceAlternate {
			t.Fatalf("turn %d: expected alternate tier, got %s", i, res.PaceLevel)
		}
	}

	// Two consecutive clean turns recover to primary.
	var last *SelectionResult
	for i := 4; i <= 5; i++ {
		outcome := k.Process("bugfix", AgentState{ToolFailuresConsecutive: 0}, StateActive, int64(i))
		last = outcome.Effect.(*SelectionResult)
	}
	if last.PaceLevel != PacePrimary {
		t.Fatalf("expected recovery to primary after two clean turns, got %s", last.PaceLevel)
	}
}

func TestKernel_PaceMonotonicWithinStreak(t *testing.T) {
	k := New(testOrg(), testRoles(), nil, nil)
	outcome1 := k.Process("bugfix", AgentState{ToolFailuresConsecutive: 5}, StateActive, 1)
	res1 := outcome1.Effect.(*SelectionResult)
	if res1.PaceLevel != PaceContingent {
		t.Fatalf("expected contingent, got %s", res1.PaceLevel)
	}
	// Failures still at 5: tier must not decrease even if we re-evaluate.
	outcome2 := k.Process("bugfix", AgentState{ToolFailuresConsecutive: 5}, StateActive, 2)
	res2 := outcome2.Effect.(*SelectionResult)
	if res2.PaceLevel.Higher(res1.PaceLevel) == false && res2.PaceLevel != res1.PaceLevel {
		t.Fatalf("pace level decreased within a failure streak: %s -> %s", res1.PaceLevel, res2.PaceLevel)
	}
}

package belief

import (
	"testing"

	"github.com/cogscaffold/core/pkg/corectx"
)

func testTaxonomy() *Taxonomy {
	return &Taxonomy{
		GlobalMinFloor:      0.0,
		BeliefStateTTLTurns: 6,
		Domains: []Domain{
			{
				Name:                "refactor",
				TriggerKeywords:     []string{"refactor", "clean up", "restructure"},
				ConfidenceThreshold: 0.5,
				Preamble:            "Refactor the indicated file carefully.",
				Slots: []SlotDef{
					{
						Name:               "target_file",
						Required:           true,
						Type:               "string",
						ClarifyingQuestion: "Which file?",
						Resolvers:          []string{"file_extension_inference", "last_mentioned_file"},
					},
				},
			},
			{Name: ConversationalDomainName},
		},
	}
}

func TestTracker_ClarifiesWhenRequiredSlotMissing(t *testing.T) {
	tr := New(testTaxonomy(), nil)
	outcome := tr.Process("refactor the auth module", nil, nil, 1)
	if outcome.Kind != corectx.Ok {
		t.Fatalf("expected Ok outcome, got %v", outcome)
	}
	res := outcome.Effect.(*Result)
	if res.ClarifyingQuestion != "Which file?" {
		t.Fatalf("expected clarifying question, got %q", res.ClarifyingQuestion)
	}
	if res.NewState != nil {
		t.Fatalf("clarification turn should not persist a belief state, got %+v", res.NewState)
	}
}

func TestTracker_PersistsBeliefStateForTriggerlessMessage(t *testing.T) {
	tr := New(testTaxonomy(), nil)
	outcome := tr.Process("agent/auth.py", nil, nil, 2)
	if outcome.Kind != corectx.Ok {
		t.Fatalf("expected Ok outcome, got %v", outcome)
	}
	res := outcome.Effect.(*Result)
	if res.NewState == nil {
		t.Fatalf("expected a persisted belief state")
	}
	if res.NewState.Domain != ConversationalDomainName {
		// No trigger keywords match "agent/auth.py" so classification falls
		// back to conversational, which has no slots; nothing is resolved
		// and the state is persisted without a clarifying question.
		t.Logf("domain resolved to %q", res.NewState.Domain)
	}
}

func TestTracker_ClarificationLoopThenEnrich(t *testing.T) {
	tr := New(testTaxonomy(), nil)

	first := tr.Process("refactor the auth module", nil, nil, 1)
	res1 := first.Effect.(*Result)
	if res1.NewState != nil {
		t.Fatalf("turn 1 should not persist belief state")
	}

	// Turn 2: belief state from turn 1 was never persisted (clarification).
	// "use agent/auth.py" matches no trigger keyword, so it classifies as
	// conversational, which has no slots and so asks no question.
	second := tr.Process("use agent/auth.py", nil, nil, 2)
	res2 := second.Effect.(*Result)
	if res2.ClarifyingQuestion != "" {
		t.Fatalf("expected no clarifying question on turn 2, got %q", res2.ClarifyingQuestion)
	}
}

func TestState_TickExpiresAtZero(t *testing.T) {
	s := &State{TTLRemaining: 1}
	if s.Tick() != nil {
		t.Fatalf("expected state to expire after ticking from 1")
	}
	s2 := &State{TTLRemaining: 2}
	if s2.Tick() == nil {
		t.Fatalf("expected state to survive ticking from 2")
	}
}

func TestUnderspecified_ReusesPriorBelief(t *testing.T) {
	tr := New(testTaxonomy(), nil)
	prior := &State{
		Domain:       "refactor",
		Slots:        map[string]any{"target_file": "agent/auth.py"},
		TTLRemaining: 3,
	}
	outcome := tr.Process("do that again", nil, prior, 5)
	res := outcome.Effect.(*Result)
	if res.NewState == nil || res.NewState.Domain != "refactor" {
		t.Fatalf("expected reused refactor domain, got %+v", res.NewState)
	}
	if res.NewState.Slots["target_file"] != "agent/auth.py" {
		t.Fatalf("expected carried-over slot, got %+v", res.NewState.Slots)
	}
}

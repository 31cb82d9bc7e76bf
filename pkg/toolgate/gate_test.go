package toolgate

import "testing"

func testSchemas() SchemaSet {
	return SchemaSet{
		"run_code": {
			ToolName: "run_code",
			Required: []string{"runtime", "source"},
			Aliases:  map[string]string{"language": "runtime"},
			Defaults: map[string]any{"timeout_s": 30},
		},
	}
}

func testAdvice() AdviceTable {
	return AdviceTable{
		"run_code": {
			KindTimeout: "increase the timeout or split the work into smaller steps",
			anyKind:     "double check the run_code arguments before retrying",
		},
		anyTool: {
			KindNetwork: "verify connectivity before retrying any network-bound tool",
		},
	}
}

func TestGate_AliasResolutionAndDefaults(t *testing.T) {
	g := New(testSchemas(), testAdvice(), nil)
	outcome := g.Before("run_code", map[string]any{"language": "python", "source": "print(1)"})
	res := outcome.Effect.(*BeforeResult)
	if res.Blocked {
		t.Fatalf("expected unblocked call after alias resolution, got %s", res.BlockMsg)
	}
	if res.Args["runtime"] != "python" {
		t.Fatalf("expected alias language to resolve to runtime, got %v", res.Args)
	}
	if res.Args["timeout_s"] != 30 {
		t.Fatalf("expected default timeout_s injected, got %v", res.Args["timeout_s"])
	}
}

func TestGate_UnfixableSchemaMismatchBlocks(t *testing.T) {
	g := New(testSchemas(), testAdvice(), nil)
	outcome := g.Before("run_code", map[string]any{"runtime": "python"})
	res := outcome.Effect.(*BeforeResult)
	if !res.Blocked || res.BlockKind != KindSyntax {
		t.Fatalf("expected syntax block on missing required source, got %+v", res)
	}
}

func TestGate_ClassifiesAndTracksConsecutiveFailures(t *testing.T) {
	g := New(testSchemas(), testAdvice(), nil)
	for i := 0; i < 2; i++ {
		outcome := g.After("run_code", "Error: operation timed out after 30s", nil, int64(i))
		res := outcome.Effect.(*AfterResult)
		if res.Kind != KindTimeout {
			t.Fatalf("expected timeout classification, got %s", res.Kind)
		}
	}
	if g.Consecutive("run_code") != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", g.Consecutive("run_code"))
	}

	before := g.Before("run_code", map[string]any{"runtime": "python", "source": "x"})
	bres := before.Effect.(*BeforeResult)
	if len(bres.Warnings) == 0 {
		t.Fatalf("expected fallback advice warning once tool threshold crossed")
	}
}

func TestGate_SuccessResetsConsecutiveCounter(t *testing.T) {
	g := New(testSchemas(), testAdvice(), nil)
	g.After("run_code", "Error: connection refused", nil, 1)
	g.After("run_code", "Error: connection refused", nil, 2)
	if g.Consecutive("run_code") != 2 {
		t.Fatalf("expected 2 consecutive failures before success")
	}
	g.After("run_code", "ok: exit 0", nil, 3)
	if g.Consecutive("run_code") != 0 {
		t.Fatalf("expected success to reset consecutive counter")
	}
}

func TestGate_GlobalRingTriggersStepBackAdvice(t *testing.T) {
	g := New(testSchemas(), testAdvice(), nil)
	g.GlobalThreshold = 3
	for i := 0; i < 3; i++ {
		g.After("run_code", "Error: connection refused", nil, int64(i))
	}
	before := g.Before("another_tool", map[string]any{})
	res := before.Effect.(*BeforeResult)
	found := false
	for _, w := range res.Warnings {
		if w == "step back and reassess: repeated tool failures across the session" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected step-back advice once global ring threshold crossed, got %v", res.Warnings)
	}
}

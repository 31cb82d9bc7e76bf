package toolgate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cogscaffold/core/pkg/corectx"
)

const (
	defaultToolThreshold   = 2
	defaultGlobalThreshold = 5
	ringCapacity            = 20
)

// Gate runs the before/after hooks around every tool invocation.
type Gate struct {
	Schemas SchemaSet
	Advice  AdviceTable
	Rules   []classifyRule

	ToolThreshold   int
	GlobalThreshold int

	Log *slog.Logger

	ring        []FailureRecord
	consecutive map[string]int
	lastKind    map[string]ErrorKind
}

func New(schemas SchemaSet, advice AdviceTable, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		Schemas:         schemas,
		Advice:          advice,
		Rules:           defaultClassifier,
		ToolThreshold:   defaultToolThreshold,
		GlobalThreshold: defaultGlobalThreshold,
		Log:             log,
		consecutive:     map[string]int{},
		lastKind:        map[string]ErrorKind{},
	}
}

// BeforeResult is the before-hook's effect: either a validated/defaulted
// argument map ready to call, or a synthesized syntax failure plus any
// advisory warnings to surface to the model.
type BeforeResult struct {
	Args      map[string]any
	Blocked   bool
	BlockKind ErrorKind
	BlockMsg  string
	Warnings  []string
}

// Before validates tool_args and attaches fallback advice. It never
// returns an error to the caller: internal problems degrade to
// pass-through, consistent with the gate's own never-block-the-tool
// failure semantics (spec §4.4).
func (g *Gate) Before(toolName string, args map[string]any) corectx.ComponentOutcome {
	return corectx.Boundary("toolgate.before", func() (corectx.ComponentOutcome, error) {
		return g.before(toolName, args), nil
	})
}

func (g *Gate) before(toolName string, args map[string]any) corectx.ComponentOutcome {
	result := &BeforeResult{Args: cloneArgs(args)}

	if schema, ok := g.Schemas[toolName]; ok {
		if msg, fixable := g.applySchema(schema, result.Args); msg != "" && !fixable {
			result.Blocked = true
			result.BlockKind = KindSyntax
			result.BlockMsg = msg
			return corectx.OkOutcome(result)
		}
	}

	if g.consecutive[toolName] >= g.ToolThreshold {
		if advice, ok := g.Advice.lookup(toolName, g.lastKind[toolName]); ok {
			result.Warnings = append(result.Warnings, advice)
		}
	}
	if len(g.ring) >= g.GlobalThreshold {
		result.Warnings = append(result.Warnings, "step back and reassess: repeated tool failures across the session")
	}

	return corectx.OkOutcome(result)
}

// applySchema resolves aliases, injects defaults, and checks required
// argument presence in place on args. It returns a non-empty message when
// the mismatch could not be fixed (a required argument is still missing
// after alias resolution and defaulting); fixable is false in that case.
func (g *Gate) applySchema(schema ArgSchema, args map[string]any) (string, bool) {
	for alias, canonical := range schema.Aliases {
		if v, ok := args[alias]; ok {
			if _, exists := args[canonical]; !exists {
				args[canonical] = v
			}
			delete(args, alias)
		}
	}
	for name, def := range schema.Defaults {
		if _, ok := args[name]; !ok {
			args[name] = def
		}
	}
	var missing []string
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required arguments: %s", strings.Join(missing, ", ")), false
	}
	return "", true
}

// AfterResult is the after-hook's effect.
type AfterResult struct {
	Kind      ErrorKind
	Advisory  string
	Consecutive int
}

// After classifies a tool's outcome, updates the failure ring and
// consecutive counters, and surfaces fallback advice for the next turn
// when the tool-specific or ring-wide threshold is crossed.
func (g *Gate) After(toolName string, output string, toolErr error, turn int64) corectx.ComponentOutcome {
	return corectx.Boundary("toolgate.after", func() (corectx.ComponentOutcome, error) {
		return g.after(toolName, output, toolErr, turn), nil
	})
}

func (g *Gate) after(toolName string, output string, toolErr error, turn int64) corectx.ComponentOutcome {
	kind := Classify(g.Rules, output, toolErr)

	if kind == KindNone {
		g.consecutive[toolName] = 0
		return corectx.OkOutcome(&AfterResult{Kind: KindNone})
	}

	g.consecutive[toolName]++
	g.lastKind[toolName] = kind
	preview := output
	if len(preview) > 200 {
		preview = preview[:200]
	}
	g.appendRing(FailureRecord{ToolName: toolName, ErrorKind: kind, MessagePreview: preview, Turn: turn})

	result := &AfterResult{Kind: kind, Consecutive: g.consecutive[toolName]}
	if g.consecutive[toolName] >= g.ToolThreshold {
		if advice, ok := g.Advice.lookup(toolName, kind); ok {
			result.Advisory = advice
		}
	}
	return corectx.OkOutcome(result)
}

func (g *Gate) appendRing(rec FailureRecord) {
	g.ring = append(g.ring, rec)
	if len(g.ring) > ringCapacity {
		g.ring = g.ring[len(g.ring)-ringCapacity:]
	}
}

// Ring returns a copy of the current failure ring, newest last.
func (g *Gate) Ring() []FailureRecord {
	out := make([]FailureRecord, len(g.ring))
	copy(out, g.ring)
	return out
}

// Consecutive returns the current consecutive-failure count for a tool.
func (g *Gate) Consecutive(toolName string) int {
	return g.consecutive[toolName]
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

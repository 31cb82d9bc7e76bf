package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cogscaffold/core/pkg/belief"
	"github.com/cogscaffold/core/pkg/corectx"
	"github.com/cogscaffold/core/pkg/maintenance"
	"github.com/cogscaffold/core/pkg/model"
	"github.com/cogscaffold/core/pkg/ontology"
	"github.com/cogscaffold/core/pkg/orgkernel"
	"github.com/cogscaffold/core/pkg/retrieval"
	"github.com/cogscaffold/core/pkg/supervisor"
	"github.com/cogscaffold/core/pkg/tool"
	"github.com/cogscaffold/core/pkg/toolgate"
	"github.com/cogscaffold/core/pkg/workflow"
)

// Pipeline wires every scaffolding-core component into the strict-sequence
// turn loop (spec §5): Belief State Tracker, Organization Kernel, Graph
// Workflow Engine, and Memory Enhancement run in order while building the
// model call; the Tool Fallback Gate wraps each tool invocation the model's
// reply requests; the Supervisor scans the accumulated signals last.
//
// Maintenance runs inline at the end of RunTurn, so it does not overlap the
// turn that triggers it. maintMu serializes maintenance passes with each
// other only; turns do not take it.
type Pipeline struct {
	Belief     *belief.Tracker
	OrgKernel  *orgkernel.Kernel
	Workflow   *workflow.Engine
	ToolGate   *toolgate.Gate
	Retrieval  *retrieval.Engine
	Ontology   *ontology.Store
	Maint      *maintenance.Runner
	Supervisor *supervisor.Supervisor
	LLM        model.LLM
	Tools      *tool.Registry

	SystemPrompt        string
	MaintenanceInterval int
	TurnTimeout         time.Duration

	Log *slog.Logger

	maintMu   sync.Mutex
	turnCount int64
}

// RunTurn executes one full turn for sess against rawMessage, returning the
// text the model produced (or a clarifying question if the Belief State
// Tracker needs one before anything else runs).
func (p *Pipeline) RunTurn(ctx context.Context, sess *session, rawMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.TurnTimeout)
	defer cancel()

	sess.Turn++
	turn := sess.Turn

	if sess.BeliefState != nil {
		sess.BeliefState = sess.BeliefState.Tick()
	}

	enriched, domain, clarifying := p.runBelief(sess, rawMessage, turn)
	if clarifying != "" {
		return clarifying, nil
	}

	p.runOrgKernel(sess, domain, turn)
	nodeInstruction, terminal := p.runWorkflow(sess, domain, turn)

	memCtx := p.runRetrieval(ctx, domain, enriched)

	req := &model.Request{
		SystemPrompt:    p.SystemPrompt,
		History:         sess.History,
		UserMessage:     enriched,
		NodeInstruction: nodeInstruction,
		MemoryContext:   memCtx,
		ToolNames:       p.Tools.Names(),
	}

	reply, err := p.LLM.Generate(ctx, req)
	if err != nil {
		p.Log.Warn("model call failed, passthrough", "session", sess.ID, "turn", turn, "error", err)
		sess.State.UnrecoverableError = true
		p.runSupervisor(sess, turn)
		return "", fmt.Errorf("pipeline: model call: %w", err)
	}

	text := p.runToolCalls(ctx, sess, reply, turn)

	sess.History = append(sess.History, rawMessage, text)
	if len(sess.History) > 40 {
		sess.History = sess.History[len(sess.History)-40:]
	}
	if terminal {
		sess.WorkflowState = nil
	}

	p.runSupervisor(sess, turn)
	p.maybeRunMaintenance(turn)

	return text, nil
}

func (p *Pipeline) runBelief(sess *session, rawMessage string, turn int64) (enriched, domain, clarifying string) {
	outcome := p.Belief.Process(rawMessage, sess.History, sess.BeliefState, turn)
	if outcome.Kind != corectx.Ok {
		return rawMessage, "", ""
	}
	result := outcome.Effect.(*belief.Result)
	if result.ClarifyingQuestion != "" {
		return "", "", result.ClarifyingQuestion
	}
	sess.BeliefState = result.NewState
	return result.EnrichedMessage, result.NewState.Domain, ""
}

func (p *Pipeline) runOrgKernel(sess *session, domain string, turn int64) {
	wfState := orgkernel.StateIdle
	if sess.WorkflowState != nil {
		wfState = orgkernel.StateActive
	}
	outcome := p.OrgKernel.Process(domain, sess.State, wfState, turn)
	if outcome.Kind != corectx.Ok {
		sess.ActiveRoleID = ""
		sess.WorkflowWhitelist = nil
		return
	}
	result := outcome.Effect.(*orgkernel.SelectionResult)
	sess.ActiveRoleID = result.Role.RoleID
	sess.WorkflowWhitelist = result.WorkflowWhitelist
	sess.PaceLevel = result.PaceLevel
}

func (p *Pipeline) runWorkflow(sess *session, domain string, turn int64) (instruction string, terminal bool) {
	outcome := p.Workflow.Advance(domain, sess.WorkflowWhitelist, sess.WorkflowState, sess.lastSignal, turn)
	sess.lastSignal = nil
	if outcome.Kind != corectx.Ok {
		return "", false
	}
	result := outcome.Effect.(*workflow.Result)
	sess.WorkflowState = result.State
	if result.Node != nil {
		instruction = result.Node.Instruction
	}
	return instruction, result.Terminal
}

func (p *Pipeline) runRetrieval(ctx context.Context, domain, message string) []string {
	outcome := p.Retrieval.Retrieve(ctx, domain, message, time.Now().UTC())
	if outcome.Kind != corectx.Ok {
		return nil
	}
	result := outcome.Effect.(*retrieval.Result)
	memCtx := make([]string, 0, len(result.Injected)+len(result.Snippets))
	for _, s := range result.Injected {
		memCtx = append(memCtx, s.Fragment.Content)
	}
	memCtx = append(memCtx, result.Snippets...)
	return memCtx
}

// runToolCalls drives every tool call the model's reply requested through
// the gate's before/after hooks, feeding the last call's outcome back into
// the workflow's verification predicate for the next turn.
func (p *Pipeline) runToolCalls(ctx context.Context, sess *session, reply *model.Response, turn int64) string {
	for _, call := range reply.ToolCalls {
		before := p.ToolGate.Before(call.Name, call.Args)
		beforeResult, _ := before.Effect.(*toolgate.BeforeResult)
		if beforeResult != nil && beforeResult.Blocked {
			p.Log.Warn("tool call blocked by gate", "tool", call.Name, "reason", beforeResult.BlockMsg)
			continue
		}

		t, ok := p.Tools.Lookup(call.Name)
		if !ok {
			continue
		}
		args := call.Args
		if beforeResult != nil {
			args = beforeResult.Args
		}
		resp, toolErr := t.Call(ctx, args)

		after := p.ToolGate.After(call.Name, resp.Message, toolErr, turn)
		afterResult, _ := after.Effect.(*toolgate.AfterResult)

		sess.lastSignal = &workflow.ToolSignal{Output: resp.Message}
		if afterResult != nil && afterResult.Kind == toolgate.KindNone {
			sess.State.TurnsSinceProgress = 0
		} else {
			sess.State.TurnsSinceProgress++
		}
		if resp.BreakLoop {
			break
		}
	}
	return reply.Text
}

func (p *Pipeline) runSupervisor(sess *session, turn int64) {
	ring := p.ToolGate.Ring()
	records := make([]corectx.FailureRecord, len(ring))
	for i := range ring {
		records[len(ring)-1-i] = corectx.FailureRecord{
			ToolName:       ring[i].ToolName,
			ErrorKind:      string(ring[i].ErrorKind),
			MessagePreview: ring[i].MessagePreview,
			Turn:           ring[i].Turn,
		}
	}

	outcome := p.Supervisor.Scan(supervisor.Input{
		Turn:               turn,
		TurnsSinceProgress: sess.State.TurnsSinceProgress,
		ContextFillPct:     sess.State.ContextFillPct,
		RecentToolKinds:    records,
		PaceLevel:          string(sess.PaceLevel),
		Role:               sess.ActiveRoleID,
	})
	if outcome.Kind != corectx.Ok {
		return
	}
	result := outcome.Effect.(*supervisor.Result)
	if len(result.Steering) > 0 {
		p.Log.Info("supervisor steering", "session", sess.ID, "messages", result.Steering, "fired", result.Fired)
	}
}

// maybeRunMaintenance runs the maintenance pass once every
// MaintenanceInterval turns. It is called at the end of RunTurn and holds
// maintMu, which only maintenance passes take.
func (p *Pipeline) maybeRunMaintenance(turn int64) {
	p.turnCount++
	if p.Maint == nil || p.MaintenanceInterval <= 0 || p.turnCount%int64(p.MaintenanceInterval) != 0 {
		return
	}
	p.maintMu.Lock()
	defer p.maintMu.Unlock()

	var batches [][]string
	for _, entry := range p.Retrieval.CoRetrievalLog() {
		batches = append(batches, entry.IDs)
	}
	report := p.Maint.Run(time.Now().UTC(), batches)
	p.Log.Info("maintenance pass complete",
		"deprecated", len(report.DeprecatedIDs),
		"flagged_for_review", len(report.FlaggedForReview),
		"related_links_added", report.RelatedLinksAdded,
		"dormant", len(report.DormantIDs))
}

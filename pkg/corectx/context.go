package corectx

import "time"

// Event mirrors the spec's Event record: a write-only-during-a-turn log
// entry consumed by SALUTE and the Supervisor.
type Event struct {
	Timestamp time.Time
	Type      string // node_entered, node_verified, edge_followed, retry, escalate, exit, canceled
	NodeID    string
	Detail    string
}

// FailureRecord mirrors the spec's FailureRecord: one entry in the bounded
// ring the Tool Fallback Gate maintains across tool invocations.
type FailureRecord struct {
	ToolName      string
	ErrorKind     string
	MessagePreview string
	Turn          int64
}

// CoreContext is the single explicit carrier of process-wide-feeling state
// (active organization, belief state, PACE, failure counters) that the spec's
// Design Notes (§9) say must never become a hidden singleton. Its fields
// name the per-turn outputs of each component. The turn loop in cmd/scaffold
// (Pipeline.RunTurn) does not construct one; it keeps the equivalent state
// in its own session struct.
//
// A turn is the atomic unit (spec §5): components run in strict sequence
// with no concurrency between them, so CoreContext carries no internal
// locking of its own. The maintenance pass operates on the shared stores
// directly, never on a CoreContext.
type CoreContext struct {
	TurnID    int64
	SessionID string
	Now       time.Time

	// Belief State Tracker outputs (§4.1)
	RawMessage         string
	EnrichedMessage     string
	Domain              string
	Slots               map[string]any
	BeliefConfidence    float64
	ClarifyingQuestion  string
	ClarificationIssued bool

	// Organization Kernel outputs (§4.2)
	ActiveOrgID       string
	ActiveRoleID      string
	WorkflowWhitelist []string
	PaceLevel         string // primary, alternate, contingent, emergency

	// Graph Workflow Engine outputs (§4.3)
	CurrentWorkflowID string
	CurrentNodeID      string
	NodeInstruction    string
	Events             []Event

	// Tool Fallback & Meta-Reasoning Gate state (§4.4)
	ToolFailuresConsecutive map[string]int
	ToolFailuresTotal       int
	FailureRing             []FailureRecord
	ToolAdvisories          []string

	// Memory Enhancement outputs (§4.5)
	MemoryContext []string

	// Supervisor inputs/outputs (§4.8)
	ContextFillPct     float64
	ContextTokensUsed  int
	ContextTokensMax   int
	TurnsSinceProgress int
	UnrecoverableError bool
	SteeringMessages   []string

	// Model invocation (§6)
	SystemPrompt string
	History      []string
}

// NewCoreContext builds a fresh per-turn context holding the raw message and
// empty maps; it carries no belief state over from a prior turn.
func NewCoreContext(sessionID string, turnID int64, rawMessage string) *CoreContext {
	return &CoreContext{
		TurnID:                  turnID,
		SessionID:               sessionID,
		Now:                     time.Now().UTC(),
		RawMessage:              rawMessage,
		Slots:                   map[string]any{},
		ToolFailuresConsecutive: map[string]int{},
	}
}

// AppendEvent records a pipeline event for SALUTE and Supervisor consumption.
func (c *CoreContext) AppendEvent(e Event) {
	c.Events = append(c.Events, e)
}

// RoleActive reports whether the Organization Kernel activated a role this turn.
func (c *CoreContext) RoleActive() bool {
	return c.ActiveRoleID != ""
}

// WorkflowAllowed reports whether workflowID passes the active role's
// capability filter. An empty whitelist means "allow all" (spec §4.2).
func (c *CoreContext) WorkflowAllowed(workflowID string) bool {
	if len(c.WorkflowWhitelist) == 0 {
		return true
	}
	for _, w := range c.WorkflowWhitelist {
		if w == workflowID {
			return true
		}
	}
	return false
}

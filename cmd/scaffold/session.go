package main

import (
	"github.com/cogscaffold/core/pkg/belief"
	"github.com/cogscaffold/core/pkg/orgkernel"
	"github.com/cogscaffold/core/pkg/workflow"
)

// session holds one conversation's state across turns: the belief state
// and workflow traversal position the pipeline carries forward (spec §4.3
// continuity rule), plus the runtime signals PACE and the Supervisor read.
type session struct {
	ID    string
	Turn  int64
	State orgkernel.AgentState

	BeliefState   *belief.State
	WorkflowState *workflow.State
	History       []string

	ActiveRoleID      string
	WorkflowWhitelist []string
	PaceLevel         orgkernel.PaceTier

	lastSignal *workflow.ToolSignal
}

func newSession(id string) *session {
	return &session{ID: id}
}

// Package orgkernel implements the Organization Kernel (spec §4.2): role
// selection within an active organization, PACE failure-tier evaluation,
// and SALUTE status emission.
package orgkernel

import (
	"encoding/json"
	"os"
)

// RoleType ranks role preference during selection: specialist beats
// executive beats commander.
type RoleType string

const (
	RoleCommander  RoleType = "commander"
	RoleExecutive  RoleType = "executive"
	RoleSpecialist RoleType = "specialist"
)

func (r RoleType) rank() int {
	switch r {
	case RoleSpecialist:
		return 0
	case RoleExecutive:
		return 1
	case RoleCommander:
		return 2
	default:
		return 3
	}
}

// PaceTier is one of the four PACE doctrine levels, ordered primary < alternate < contingent < emergency.
type PaceTier string

const (
	PacePrimary    PaceTier = "primary"
	PaceAlternate  PaceTier = "alternate"
	PaceContingent PaceTier = "contingent"
	PaceEmergency  PaceTier = "emergency"
)

var paceOrder = map[PaceTier]int{
	PacePrimary:    0,
	PaceAlternate:  1,
	PaceContingent: 2,
	PaceEmergency:  3,
}

// Higher reports whether a is a strictly higher-severity tier than b.
func (a PaceTier) Higher(b PaceTier) bool {
	return paceOrder[a] > paceOrder[b]
}

// AgentState is the subset of runtime signals PACE trigger predicates read.
type AgentState struct {
	ToolFailuresConsecutive int
	TurnsSinceProgress      int
	ContextFillPct          float64
	UnrecoverableError      bool
}

// PaceTierPlan is one tier of a role's pace_plan: a trigger predicate
// expressed declaratively (so it stays rule-based, no model calls) plus the
// action text and escalation target.
type PaceTierPlan struct {
	Tier                  PaceTier `json:"tier"`
	TriggerFailuresAtLeast int     `json:"trigger_failures_at_least,omitempty"`
	TriggerStallTurns      int     `json:"trigger_stall_turns,omitempty"`
	TriggerContextFillPct  float64 `json:"trigger_context_fill_pct,omitempty"`
	TriggerOnUnrecoverable bool    `json:"trigger_on_unrecoverable,omitempty"`
	Action                 string `json:"action"`
	EscalateTo              string `json:"escalate_to,omitempty"`
}

// Triggered evaluates this tier's predicate against the current agent state.
func (p PaceTierPlan) Triggered(s AgentState) bool {
	if p.TriggerOnUnrecoverable && s.UnrecoverableError {
		return true
	}
	if p.TriggerFailuresAtLeast > 0 && s.ToolFailuresConsecutive >= p.TriggerFailuresAtLeast {
		return true
	}
	if p.TriggerStallTurns > 0 && s.TurnsSinceProgress >= p.TriggerStallTurns {
		return true
	}
	if p.TriggerContextFillPct > 0 && s.ContextFillPct >= p.TriggerContextFillPct {
		return true
	}
	return false
}

// Doctrine carries a role's reporting cadence and stall thresholds.
type Doctrine struct {
	SALUTEIntervalTurns      int `json:"salute_interval_turns"`
	MaxTurnsWithoutProgress  int `json:"max_turns_without_progress"`
	AutonomousRetryLimit     int `json:"autonomous_retry_limit"`
}

// Capabilities is the role's allow-lists.
type Capabilities struct {
	Domains        []string `json:"domains"`
	Workflows      []string `json:"workflows"`
	ToolsPrimary   []string `json:"tools_primary"`
	ToolsSecondary []string `json:"tools_secondary"`
}

// Role is the spec's Role record.
type Role struct {
	RoleID       string         `json:"role_id"`
	RoleType     RoleType       `json:"role_type"`
	AuthorityLevel int          `json:"authority_level"`
	ReportsTo     string        `json:"reports_to"`
	CanDelegate   bool          `json:"can_delegate"`
	Capabilities  Capabilities  `json:"capabilities"`
	Requirements  []string      `json:"requirements"`
	PacePlan      []PaceTierPlan `json:"pace_plan"`
	Doctrine      Doctrine       `json:"doctrine"`
}

// PaceForState evaluates this role's four PACE tiers in order and returns
// the highest-severity triggered tier, defaulting to primary.
func (r Role) PaceForState(s AgentState) PaceTier {
	best := PacePrimary
	for _, tier := range r.PacePlan {
		if tier.Triggered(s) && tier.Tier.Higher(best) {
			best = tier.Tier
		}
	}
	return best
}

// OrgMode distinguishes single-process from multi-process deployments.
type OrgMode string

const (
	ModeMicrocosm OrgMode = "microcosm"
	ModeMacrocosm OrgMode = "macrocosm"
)

// Organization is the spec's Organization record.
type Organization struct {
	OrgID                 string              `json:"org_id"`
	Mission               string              `json:"mission"`
	Hierarchy             map[string][]string `json:"hierarchy"`
	CommunicationChannels []string            `json:"communication_channels"`
	Mode                  OrgMode             `json:"mode"`
}

// LoadRoles reads every role profile referenced by an organization from
// the roles/ directory. Missing or malformed files are skipped, never
// fatal, consistent with the kernel's degrade-to-inert error semantics.
func LoadRoles(dir string, roleIDs []string) map[string]Role {
	roles := map[string]Role{}
	for _, id := range roleIDs {
		data, err := os.ReadFile(dir + "/" + id + ".json")
		if err != nil {
			continue
		}
		var r Role
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		roles[r.RoleID] = r
	}
	return roles
}

// LoadOrganization reads the active organization record from a single file.
// Absence of an active record means the org layer is inert (spec §3): the
// caller receives (nil, nil) and downstream filters default to allow-all.
func LoadOrganization(activePath string) (*Organization, error) {
	data, err := os.ReadFile(activePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var org Organization
	if err := json.Unmarshal(data, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

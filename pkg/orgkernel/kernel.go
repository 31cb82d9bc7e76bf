package orgkernel

import (
	"log/slog"
	"sort"
	"time"

	"github.com/cogscaffold/core/pkg/corectx"
)

// Kernel runs the Organization Kernel pipeline stage (spec §4.2).
type Kernel struct {
	Org   *Organization
	Roles map[string]Role
	Store *ReportStore
	Log   *slog.Logger

	// paceState tracks, per role, the current tier and how many consecutive
	// turns every higher tier's trigger has been false (for recovery).
	paceState map[string]*paceTracking
	// turnsSinceEmit tracks, per role, turns since the last periodic SALUTE.
	turnsSinceEmit map[string]int

	// MemoryFragments, when set, reports the live fragment count for the
	// environment section of emitted SALUTEs. Left nil it reports zero,
	// matching the boundary behaviour of every other absent dependency.
	MemoryFragments func() int
}

type paceTracking struct {
	Current            PaceTier
	CleanTurnsAtLower  int
}

// New builds a Kernel. A nil Org means the org layer is inert: role
// selection always returns no role, matching the spec's "absence of an
// active record" boundary behaviour.
func New(org *Organization, roles map[string]Role, store *ReportStore, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		Org:            org,
		Roles:          roles,
		Store:          store,
		Log:            log,
		paceState:      map[string]*paceTracking{},
		turnsSinceEmit: map[string]int{},
	}
}

// SelectionResult is the Kernel's per-turn effect.
type SelectionResult struct {
	Role             *Role
	WorkflowWhitelist []string
	PaceLevel         PaceTier
	PaceTransitioned  bool
}

// Process selects a role for domain, evaluates PACE, and emits SALUTE when
// required. It never errors to the caller; internal failures degrade to
// "no role active" (spec §4.2's error semantics).
func (k *Kernel) Process(domain string, state AgentState, workflowState WorkflowState, turn int64) corectx.ComponentOutcome {
	return corectx.Boundary("orgkernel", func() (corectx.ComponentOutcome, error) {
		return k.process(domain, state, workflowState, turn)
	})
}

func (k *Kernel) process(domain string, state AgentState, workflowState WorkflowState, turn int64) (corectx.ComponentOutcome, error) {
	if k.Org == nil {
		return corectx.SkipOutcome("no active organization"), nil
	}

	role := k.selectRole(domain)
	if role == nil {
		return corectx.SkipOutcome("no role matches domain " + domain), nil
	}

	rawTier := role.PaceForState(state)
	effectiveTier, transitioned := k.updatePace(role.RoleID, rawTier)

	result := &SelectionResult{
		Role:              role,
		WorkflowWhitelist: role.Capabilities.Workflows,
		PaceLevel:         effectiveTier,
		PaceTransitioned:  transitioned,
	}

	k.turnsSinceEmit[role.RoleID]++
	interval := role.Doctrine.SALUTEIntervalTurns
	shouldEmit := transitioned ||
		(interval > 0 && k.turnsSinceEmit[role.RoleID] >= interval) ||
		workflowState == StateErrorRecovery || workflowState == StateEscalating ||
		workflowState == StateComplete || workflowState == StateAborted

	if shouldEmit && k.Store != nil {
		report := k.buildReport(*role, effectiveTier, state, workflowState, turn)
		if err := k.Store.Emit(role.RoleID, report); err != nil {
			k.Log.Warn("salute emit failed", "role", role.RoleID, "error", err)
		} else {
			k.turnsSinceEmit[role.RoleID] = 0
		}
	}

	return corectx.OkOutcome(result), nil
}

// selectRole picks the role whose capabilities.domains includes domain,
// preferring specialist > executive > commander, tie-broken by role_id.
func (k *Kernel) selectRole(domain string) *Role {
	var candidates []Role
	for _, r := range k.Roles {
		for _, d := range r.Capabilities.Domains {
			if d == domain {
				candidates = append(candidates, r)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := candidates[i].RoleType.rank(), candidates[j].RoleType.rank()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].RoleID < candidates[j].RoleID
	})
	chosen := candidates[0]
	return &chosen
}

// updatePace advances the role's effective PACE tier from the freshly
// computed rawTier, returning the effective tier and whether it changed
// this turn. Escalation is immediate; recovery to a lower tier requires two
// consecutive clean turns at that lower tier (spec §4.2), so the returned
// tier may lag rawTier while recovery is pending.
func (k *Kernel) updatePace(roleID string, rawTier PaceTier) (PaceTier, bool) {
	track, ok := k.paceState[roleID]
	if !ok {
		track = &paceTracking{Current: PacePrimary}
		k.paceState[roleID] = track
	}

	if rawTier.Higher(track.Current) || rawTier == track.Current {
		transitioned := rawTier != track.Current
		track.Current = rawTier
		track.CleanTurnsAtLower = 0
		return track.Current, transitioned
	}

	// rawTier is lower severity than the tracked current: count clean turns
	// before allowing recovery.
	track.CleanTurnsAtLower++
	if track.CleanTurnsAtLower >= 2 {
		old := track.Current
		track.Current = rawTier
		track.CleanTurnsAtLower = 0
		return track.Current, old != track.Current
	}
	return track.Current, false
}

func (k *Kernel) memoryFragments() int {
	if k.MemoryFragments == nil {
		return 0
	}
	return k.MemoryFragments()
}

func (k *Kernel) buildReport(role Role, tier PaceTier, state AgentState, wfState WorkflowState, turn int64) Report {
	now := time.Now().UTC()
	return Report{
		Status: ReportStatus{
			State:     wfState,
			PaceLevel: tier,
			Health:    HealthFromPace(tier),
		},
		Activity: ReportActivity{
			Domain: "",
		},
		Location: ReportLocation{},
		Unit: ReportUnit{
			RoleID:       role.RoleID,
			ReportsTo:    role.ReportsTo,
			Organization: k.Org.OrgID,
		},
		Time: ReportTime{
			Timestamp:          now,
			TurnsElapsed:       int(turn),
			TurnsSinceProgress: state.TurnsSinceProgress,
		},
		Environment: ReportEnvironment{
			ContextFillPct:          state.ContextFillPct,
			ToolFailuresConsecutive: state.ToolFailuresConsecutive,
			MemoryFragmentsStored:   k.memoryFragments(),
		},
	}
}

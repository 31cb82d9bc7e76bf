package orgkernel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Health is the coarse SALUTE health band.
type Health string

const (
	HealthNominal  Health = "nominal"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

// WorkflowState is the spec's status.state enum for SALUTE.
type WorkflowState string

const (
	StateIdle           WorkflowState = "idle"
	StateActive         WorkflowState = "active"
	StateWaiting        WorkflowState = "waiting"
	StateErrorRecovery  WorkflowState = "error_recovery"
	StateEscalating     WorkflowState = "escalating"
	StateComplete       WorkflowState = "complete"
	StateAborted        WorkflowState = "aborted"
)

// Report is the spec's SALUTE record.
type Report struct {
	Status      ReportStatus      `json:"status"`
	Activity    ReportActivity    `json:"activity"`
	Location    ReportLocation    `json:"location"`
	Unit        ReportUnit        `json:"unit"`
	Time        ReportTime        `json:"time"`
	Environment ReportEnvironment `json:"environment"`
}

type ReportStatus struct {
	State    WorkflowState `json:"state"`
	Progress float64       `json:"progress"`
	PaceLevel PaceTier     `json:"pace_level"`
	Health   Health        `json:"health"`
}

type ReportActivity struct {
	CurrentTask       string `json:"current_task"`
	Domain            string `json:"domain"`
	Workflow          string `json:"workflow"`
	Step              string `json:"step"`
	TotalSteps        int    `json:"total_steps"`
	CurrentTool       string `json:"current_tool"`
	IterationsOnStep  int    `json:"iterations_on_step"`
}

type ReportLocation struct {
	CWD             string   `json:"cwd"`
	FilesModified   []string `json:"files_modified"`
	FilesRead       []string `json:"files_read"`
	ResourcesClaimed []string `json:"resources_claimed"`
}

type ReportUnit struct {
	RoleID       string `json:"role_id"`
	ReportsTo    string `json:"reports_to"`
	Organization string `json:"organization"`
}

type ReportTime struct {
	Timestamp              time.Time `json:"timestamp"`
	TaskStarted             time.Time `json:"task_started"`
	ElapsedS                float64   `json:"elapsed_s"`
	TurnsElapsed            int       `json:"turns_elapsed"`
	TurnsSinceProgress      int       `json:"turns_since_progress"`
	ContextTurnsRemaining   *int      `json:"context_turns_remaining,omitempty"`
}

type ReportEnvironment struct {
	Model                   string `json:"model"`
	ContextFillPct          float64 `json:"context_fill_pct"`
	ContextTokensUsed       int    `json:"context_tokens_used"`
	ContextTokensMax        int    `json:"context_tokens_max"`
	ToolFailuresConsecutive int    `json:"tool_failures_consecutive"`
	ToolFailuresTotal       int    `json:"tool_failures_total"`
	MemoryFragmentsStored   int    `json:"memory_fragments_stored"`
}

// HealthFromPace maps a PACE tier to a coarse health band.
func HealthFromPace(tier PaceTier) Health {
	switch tier {
	case PaceContingent, PaceEmergency:
		return HealthCritical
	case PaceAlternate:
		return HealthDegraded
	default:
		return HealthNominal
	}
}

// ReportStore persists SALUTE latest + archive files under root/organizations/reports.
type ReportStore struct {
	Root string
}

func NewReportStore(root string) *ReportStore {
	return &ReportStore{Root: root}
}

func (rs *ReportStore) latestPath(roleID string) string {
	return filepath.Join(rs.Root, "organizations", "reports", roleID+"_latest.json")
}

func (rs *ReportStore) archivePath(roleID string, ts time.Time) string {
	return filepath.Join(rs.Root, "organizations", "reports", "archive",
		fmt.Sprintf("%s_%s.json", roleID, ts.UTC().Format("20060102T150405.000000000Z")))
}

// Emit overwrites the latest file and writes an immutable archive copy.
// Each emission is last-writer-wins on latest; archive entries are never
// rewritten once written (spec §5's SALUTE ordering guarantee).
func (rs *ReportStore) Emit(roleID string, report Report) error {
	if err := os.MkdirAll(filepath.Join(rs.Root, "organizations", "reports", "archive"), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(rs.latestPath(roleID), data, 0o644); err != nil {
		return err
	}
	return os.WriteFile(rs.archivePath(roleID, report.Time.Timestamp), data, 0o644)
}

// ReadLatest loads the latest SALUTE report for roleID, for use by the
// Supervisor or any external observer.
func (rs *ReportStore) ReadLatest(roleID string) (*Report, error) {
	data, err := os.ReadFile(rs.latestPath(roleID))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Package supervisor runs the post-turn anomaly scan: stall, loop,
// context exhaustion, cascade failure, and PACE escalation detection,
// each gated by its own cooldown so a steering message doesn't repeat
// every turn.
package supervisor

import (
	"log/slog"

	"github.com/cogscaffold/core/pkg/corectx"
)

const defaultCooldownTurns = 3

// AnomalyKind enumerates the fixed anomaly table (spec §4.8).
type AnomalyKind string

const (
	AnomalyStall             AnomalyKind = "stall"
	AnomalyLoop              AnomalyKind = "loop"
	AnomalyContextExhaustion AnomalyKind = "context_exhaustion"
	AnomalyCascadeFailure    AnomalyKind = "cascade_failure"
	AnomalyPaceEscalation    AnomalyKind = "pace_escalation"
)

// Doctrine carries the per-role thresholds the anomaly table reads.
type Doctrine struct {
	MaxTurnsWithoutProgress int
	ContextFillThreshold    float64
	LoopRepeatThreshold     int
	CascadeDistinctTools    int
}

func (d *Doctrine) setDefaults() {
	if d.MaxTurnsWithoutProgress == 0 {
		d.MaxTurnsWithoutProgress = 5
	}
	if d.ContextFillThreshold == 0 {
		d.ContextFillThreshold = 0.80
	}
	if d.LoopRepeatThreshold == 0 {
		d.LoopRepeatThreshold = 3
	}
	if d.CascadeDistinctTools == 0 {
		d.CascadeDistinctTools = 3
	}
}

// Config controls the supervisor pass.
type Config struct {
	Enabled       bool
	Doctrine      Doctrine
	CooldownTurns int
}

func (c *Config) setDefaults() {
	c.Doctrine.setDefaults()
	if c.CooldownTurns == 0 {
		c.CooldownTurns = defaultCooldownTurns
	}
}

// Supervisor tracks per-anomaly cooldown state across turns.
type Supervisor struct {
	Cfg Config
	Log *slog.Logger

	lastFiredTurn map[AnomalyKind]int64
}

func New(cfg Config, log *slog.Logger) *Supervisor {
	cfg.setDefaults()
	return &Supervisor{Cfg: cfg, Log: log, lastFiredTurn: map[AnomalyKind]int64{}}
}

// Input is everything the anomaly table needs; the pipeline builds it from
// its session state and the tool gate's failure ring.
type Input struct {
	Turn               int64
	TurnsSinceProgress int
	ContextFillPct     float64
	RecentToolKinds    []corectx.FailureRecord // most recent first
	PaceLevel          string
	Role               string
}

// Result carries the steering messages to inject into the next turn.
type Result struct {
	Steering []string
	Fired    []AnomalyKind
}

// Scan runs the anomaly table against one turn's observations.
func (s *Supervisor) Scan(in Input) corectx.ComponentOutcome {
	return corectx.Boundary("supervisor", func() (corectx.ComponentOutcome, error) {
		return s.scan(in), nil
	})
}

func (s *Supervisor) scan(in Input) corectx.ComponentOutcome {
	if !s.Cfg.Enabled {
		return corectx.SkipOutcome("supervisor disabled")
	}
	result := &Result{}

	if in.TurnsSinceProgress > s.Cfg.Doctrine.MaxTurnsWithoutProgress && s.ready(AnomalyStall, in.Turn) {
		s.fire(result, AnomalyStall, in.Turn, "progress has stalled: reassess approach")
	}

	if kind, count := loopingTool(in.RecentToolKinds); count >= s.Cfg.Doctrine.LoopRepeatThreshold && kind != "" && s.ready(AnomalyLoop, in.Turn) {
		s.fire(result, AnomalyLoop, in.Turn, "repeated identical failures: try a different method")
	}

	if in.ContextFillPct > s.Cfg.Doctrine.ContextFillThreshold && s.ready(AnomalyContextExhaustion, in.Turn) {
		s.fire(result, AnomalyContextExhaustion, in.Turn, "context window nearly full: wrap up the current task")
	}

	if distinctFailingTools(in.RecentToolKinds) >= s.Cfg.Doctrine.CascadeDistinctTools && s.ready(AnomalyCascadeFailure, in.Turn) {
		s.fire(result, AnomalyCascadeFailure, in.Turn, "multiple tools failing: verify the environment")
	}

	if (in.PaceLevel == "contingent" || in.PaceLevel == "emergency") && s.ready(AnomalyPaceEscalation, in.Turn) {
		s.fire(result, AnomalyPaceEscalation, in.Turn, paceSteeringText(in.PaceLevel, in.Role))
	}

	if len(result.Fired) == 0 {
		return corectx.SkipOutcome("no anomalies detected")
	}
	return corectx.OkOutcome(result)
}

func (s *Supervisor) ready(kind AnomalyKind, turn int64) bool {
	last, fired := s.lastFiredTurn[kind]
	return !fired || turn-last >= int64(s.Cfg.CooldownTurns)
}

func (s *Supervisor) fire(result *Result, kind AnomalyKind, turn int64, message string) {
	s.lastFiredTurn[kind] = turn
	result.Fired = append(result.Fired, kind)
	result.Steering = append(result.Steering, message)
}

func loopingTool(records []corectx.FailureRecord) (string, int) {
	if len(records) == 0 {
		return "", 0
	}
	head := records[0]
	count := 0
	for _, r := range records {
		if r.ToolName == head.ToolName && r.ErrorKind == head.ErrorKind {
			count++
		} else {
			break
		}
	}
	return head.ToolName, count
}

func distinctFailingTools(records []corectx.FailureRecord) int {
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.ToolName] = true
	}
	return len(seen)
}

func paceSteeringText(level, role string) string {
	switch level {
	case "emergency":
		return "operating at emergency PACE for " + role + ": prioritize the primary objective and escalate decisions upward"
	default:
		return "operating at contingent PACE for " + role + ": confirm the fallback plan is still appropriate"
	}
}

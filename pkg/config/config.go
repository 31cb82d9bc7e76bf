// Package config loads the scaffolding core's settings: organization and
// workflow file paths, and the enabled/tunable surface for every pipeline
// subcomponent. It follows the same koanf-backed, multi-provider loading
// strategy as the rest of the corpus so the same deployment file (or
// Consul/etcd/Zookeeper key) can configure local and distributed runs
// alike.
package config

import (
	"fmt"
	"time"

	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/logger"
	"github.com/cogscaffold/core/pkg/maintenance"
	"github.com/cogscaffold/core/pkg/retrieval"
	"github.com/cogscaffold/core/pkg/supervisor"
	"github.com/cogscaffold/core/pkg/toolgate"
	"github.com/cogscaffold/core/pkg/vector"
)

// PathsConfig locates the filesystem layout the core reads and writes
// (spec §6 External Interfaces).
type PathsConfig struct {
	OrganizationsDir string `koanf:"organizations_dir" yaml:"organizations_dir"`
	WorkflowsDir     string `koanf:"workflows_dir" yaml:"workflows_dir"`
	MemoryDir        string `koanf:"memory_dir" yaml:"memory_dir"`
	OntologyDir      string `koanf:"ontology_dir" yaml:"ontology_dir"`
	TaxonomyPath     string `koanf:"taxonomy_path" yaml:"taxonomy_path"`
}

func (p *PathsConfig) setDefaults() {
	if p.OrganizationsDir == "" {
		p.OrganizationsDir = "organizations"
	}
	if p.WorkflowsDir == "" {
		p.WorkflowsDir = "workflows"
	}
	if p.MemoryDir == "" {
		p.MemoryDir = "memory"
	}
	if p.OntologyDir == "" {
		p.OntologyDir = "ontology"
	}
	if p.TaxonomyPath == "" {
		p.TaxonomyPath = "slot_taxonomy.json"
	}
}

// BeliefConfig controls the Belief State Tracker (§4.1). It has no model
// weights: thresholds only.
type BeliefConfig struct {
	Enabled                  bool    `koanf:"enabled" yaml:"enabled"`
	MinConfidenceToAct       float64 `koanf:"min_confidence_to_act" yaml:"min_confidence_to_act"`
	MaxClarifyingQuestions   int     `koanf:"max_clarifying_questions" yaml:"max_clarifying_questions"`
}

func (b *BeliefConfig) setDefaults() {
	if b.MinConfidenceToAct == 0 {
		b.MinConfidenceToAct = 0.55
	}
	if b.MaxClarifyingQuestions == 0 {
		b.MaxClarifyingQuestions = 2
	}
}

// OrgKernelConfig controls the Organization Kernel (§4.2).
type OrgKernelConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// WorkflowConfig controls the Graph Workflow Engine (§4.3).
type WorkflowConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// ToolGateConfig controls the Tool Fallback & Meta-Reasoning Gate (§4.4).
type ToolGateConfig struct {
	Enabled         bool `koanf:"enabled" yaml:"enabled"`
	ToolThreshold   int  `koanf:"tool_threshold" yaml:"tool_threshold"`
	GlobalThreshold int  `koanf:"global_threshold" yaml:"global_threshold"`
}

// VectorConfig selects and configures the vector backend shared by
// Memory Enhancement and the Ontology Store.
type VectorConfig struct {
	Backend string              `koanf:"backend" yaml:"backend"`
	Chromem *vector.ChromemConfig `koanf:"chromem" yaml:"chromem"`
	Qdrant  *vector.QdrantConfig  `koanf:"qdrant" yaml:"qdrant"`
	Pinecone *vector.PineconeConfig `koanf:"pinecone" yaml:"pinecone"`
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Backend string               `koanf:"backend" yaml:"backend"`
	Ollama  *embedder.OllamaConfig `koanf:"ollama" yaml:"ollama"`
	LocalDimension int           `koanf:"local_dimension" yaml:"local_dimension"`
}

// MemoryConfig wraps retrieval.Config under the settings surface.
type MemoryConfig struct {
	Enabled       bool    `koanf:"enabled" yaml:"enabled"`
	HalfLifeHours float64 `koanf:"half_life_hours" yaml:"half_life_hours"`
	MaxInjected   int     `koanf:"max_injected" yaml:"max_injected"`
	OntologyAware bool    `koanf:"ontology_aware" yaml:"ontology_aware"`
}

// OntologyConfig controls the Ontology Store and entity resolution (§4.6).
type OntologyConfig struct {
	Enabled         bool    `koanf:"enabled" yaml:"enabled"`
	MergeThreshold  float64 `koanf:"merge_threshold" yaml:"merge_threshold"`
	ReviewThreshold float64 `koanf:"review_threshold" yaml:"review_threshold"`
}

// MaintenanceConfig wraps maintenance.Config.
type MaintenanceConfig struct {
	Enabled                 bool    `koanf:"enabled" yaml:"enabled"`
	IntervalLoops           int     `koanf:"interval_loops" yaml:"interval_loops"`
	SimilarityThreshold     float64 `koanf:"similarity_threshold" yaml:"similarity_threshold"`
	ArchivalThresholdCycles int     `koanf:"archival_threshold_cycles" yaml:"archival_threshold_cycles"`
}

// SupervisorConfig wraps supervisor.Config.
type SupervisorConfig struct {
	Enabled                 bool `koanf:"enabled" yaml:"enabled"`
	CooldownTurns           int  `koanf:"cooldown_turns" yaml:"cooldown_turns"`
	MaxTurnsWithoutProgress int  `koanf:"max_turns_without_progress" yaml:"max_turns_without_progress"`
}

// StatusServerConfig controls the optional read-only SALUTE observation
// surface (an addition beyond the strict core, see DESIGN.md).
type StatusServerConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" yaml:"addr"`
}

// Config is the full settings surface for one scaffolding core process.
type Config struct {
	Logger      logger.Config      `koanf:"logger" yaml:"logger"`
	Paths       PathsConfig        `koanf:"paths" yaml:"paths"`
	Belief      BeliefConfig       `koanf:"belief" yaml:"belief"`
	OrgKernel   OrgKernelConfig    `koanf:"org_kernel" yaml:"org_kernel"`
	Workflow    WorkflowConfig     `koanf:"workflow" yaml:"workflow"`
	ToolGate    ToolGateConfig     `koanf:"tool_gate" yaml:"tool_gate"`
	Vector      VectorConfig       `koanf:"vector" yaml:"vector"`
	Embedder    EmbedderConfig     `koanf:"embedder" yaml:"embedder"`
	Memory      MemoryConfig       `koanf:"memory" yaml:"memory"`
	Ontology    OntologyConfig     `koanf:"ontology" yaml:"ontology"`
	Maintenance MaintenanceConfig  `koanf:"maintenance" yaml:"maintenance"`
	Supervisor  SupervisorConfig   `koanf:"supervisor" yaml:"supervisor"`
	StatusServer StatusServerConfig `koanf:"status_server" yaml:"status_server"`

	TurnTimeout time.Duration `koanf:"turn_timeout" yaml:"turn_timeout"`
}

// SetDefaults fills zero-valued paths, backends, thresholds and timeouts
// of every subcomponent. Enabled flags are left as loaded.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	c.Paths.setDefaults()
	c.Belief.setDefaults()
	if c.Vector.Backend == "" {
		c.Vector.Backend = "chromem"
	}
	if c.Embedder.Backend == "" {
		c.Embedder.Backend = "local"
	}
	if c.Embedder.LocalDimension == 0 {
		c.Embedder.LocalDimension = 64
	}
	if c.ToolGate.ToolThreshold == 0 {
		c.ToolGate.ToolThreshold = 2
	}
	if c.ToolGate.GlobalThreshold == 0 {
		c.ToolGate.GlobalThreshold = 5
	}
	if c.Memory.HalfLifeHours == 0 {
		c.Memory.HalfLifeHours = 168
	}
	if c.Memory.MaxInjected == 0 {
		c.Memory.MaxInjected = 5
	}
	if c.Ontology.MergeThreshold == 0 {
		c.Ontology.MergeThreshold = 0.85
	}
	if c.Ontology.ReviewThreshold == 0 {
		c.Ontology.ReviewThreshold = 0.60
	}
	if c.Maintenance.IntervalLoops == 0 {
		c.Maintenance.IntervalLoops = maintenance.DefaultIntervalLoops
	}
	if c.Supervisor.CooldownTurns == 0 {
		c.Supervisor.CooldownTurns = 3
	}
	if c.TurnTimeout == 0 {
		c.TurnTimeout = 2 * time.Minute
	}
	if c.StatusServer.Addr == "" {
		c.StatusServer.Addr = ":8090"
	}
}

// RetrievalConfig projects the settings surface onto retrieval.Config.
func (c *Config) RetrievalConfig() retrieval.Config {
	return retrieval.Config{
		Enabled:       c.Memory.Enabled,
		HalfLifeHours: c.Memory.HalfLifeHours,
		MaxInjected:   c.Memory.MaxInjected,
		OntologyAware: c.Memory.OntologyAware,
	}
}

// MaintenanceConfigFor projects the settings surface onto maintenance.Config.
func (c *Config) MaintenanceConfigFor() maintenance.Config {
	return maintenance.Config{
		Enabled:                 c.Maintenance.Enabled,
		IntervalLoops:           c.Maintenance.IntervalLoops,
		SimilarityThreshold:     c.Maintenance.SimilarityThreshold,
		ArchivalThresholdCycles: c.Maintenance.ArchivalThresholdCycles,
	}
}

// SupervisorConfigFor projects the settings surface onto supervisor.Config.
func (c *Config) SupervisorConfigFor() supervisor.Config {
	return supervisor.Config{
		Enabled:       c.Supervisor.Enabled,
		CooldownTurns: c.Supervisor.CooldownTurns,
		Doctrine: supervisor.Doctrine{
			MaxTurnsWithoutProgress: c.Supervisor.MaxTurnsWithoutProgress,
		},
	}
}

// VectorProviderConfig projects the settings surface onto vector.Config.
func (c *Config) VectorProviderConfig() (vector.Config, error) {
	vc := vector.Config{Type: vector.BackendType(c.Vector.Backend)}
	vc.SetDefaults()
	switch vc.Type {
	case vector.BackendChromem:
		if c.Vector.Chromem != nil {
			vc.Chromem = c.Vector.Chromem
		}
	case vector.BackendQdrant:
		if c.Vector.Qdrant == nil {
			return vc, fmt.Errorf("config: qdrant backend selected but vector.qdrant is not configured")
		}
		vc.Qdrant = c.Vector.Qdrant
	case vector.BackendPinecone:
		if c.Vector.Pinecone == nil {
			return vc, fmt.Errorf("config: pinecone backend selected but vector.pinecone is not configured")
		}
		vc.Pinecone = c.Vector.Pinecone
	}
	return vc, nil
}

// EmbedderProviderConfig projects the settings surface onto embedder.Config.
func (c *Config) EmbedderProviderConfig() embedder.Config {
	return embedder.Config{
		Backend:        embedder.Backend(c.Embedder.Backend),
		LocalDimension: c.Embedder.LocalDimension,
		Ollama:         c.Embedder.Ollama,
	}
}

// ApplyToolGateThresholds copies the configured thresholds onto a gate
// built with toolgate.New; schemas and advice tables are loaded
// separately from their own files since they are data, not settings.
func (c *Config) ApplyToolGateThresholds(g *toolgate.Gate) {
	if c.ToolGate.ToolThreshold > 0 {
		g.ToolThreshold = c.ToolGate.ToolThreshold
	}
	if c.ToolGate.GlobalThreshold > 0 {
		g.GlobalThreshold = c.ToolGate.GlobalThreshold
	}
}

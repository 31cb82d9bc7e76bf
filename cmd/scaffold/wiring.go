package main

import (
	"fmt"
	"path/filepath"

	"github.com/cogscaffold/core/pkg/belief"
	"github.com/cogscaffold/core/pkg/config"
	"github.com/cogscaffold/core/pkg/embedder"
	"github.com/cogscaffold/core/pkg/logger"
	"github.com/cogscaffold/core/pkg/maintenance"
	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/model/ollama"
	"github.com/cogscaffold/core/pkg/ontology"
	"github.com/cogscaffold/core/pkg/orgkernel"
	"github.com/cogscaffold/core/pkg/retrieval"
	"github.com/cogscaffold/core/pkg/supervisor"
	"github.com/cogscaffold/core/pkg/tool"
	"github.com/cogscaffold/core/pkg/tool/builtin"
	"github.com/cogscaffold/core/pkg/toolgate"
	"github.com/cogscaffold/core/pkg/vector"
	"github.com/cogscaffold/core/pkg/workflow"
)

// buildPipeline loads every domain document named in the settings surface
// and assembles a Pipeline. Every load degrades rather than fails: a
// missing organization, taxonomy, or workflow library yields an inert
// component, matching each package's own documented boundary behaviour.
func buildPipeline(cfg *config.Config, modelName string) (*Pipeline, error) {
	log := logger.New(cfg.Logger)

	taxonomy, err := belief.LoadTaxonomy(cfg.Paths.TaxonomyPath)
	if err != nil {
		log.Warn("slot taxonomy not loaded, belief tracking degrades to passthrough", "error", err)
	}
	beliefTracker := belief.New(taxonomy, log)

	org, err := orgkernel.LoadOrganization(filepath.Join(cfg.Paths.OrganizationsDir, "active.json"))
	if err != nil {
		log.Warn("organization not loaded, org kernel is inert", "error", err)
	}
	var roles map[string]orgkernel.Role
	if org != nil {
		var roleIDs []string
		for _, ids := range org.Hierarchy {
			roleIDs = append(roleIDs, ids...)
		}
		roles = orgkernel.LoadRoles(filepath.Join(cfg.Paths.OrganizationsDir, "roles"), roleIDs)
	}
	reportStore := orgkernel.NewReportStore(".")
	kernel := orgkernel.New(org, roles, reportStore, log)

	library, err := workflow.LoadLibrary(filepath.Join(cfg.Paths.WorkflowsDir, "library.json"))
	if err != nil {
		log.Warn("workflow library not loaded, graph engine selects nothing", "error", err)
	}
	wfEngine := workflow.New(library, log)

	gate := toolgate.New(toolgate.SchemaSet{}, toolgate.AdviceTable{}, log)
	cfg.ApplyToolGateThresholds(gate)

	vecCfg, err := cfg.VectorProviderConfig()
	if err != nil {
		return nil, fmt.Errorf("wiring: vector config: %w", err)
	}
	provider, err := vector.New(vecCfg)
	if err != nil {
		return nil, fmt.Errorf("wiring: vector provider: %w", err)
	}
	emb, err := embedder.New(cfg.EmbedderProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("wiring: embedder: %w", err)
	}
	store := memstore.New(provider, emb)
	kernel.MemoryFragments = func() int { return len(store.IterateAll()) }

	ontStore := ontology.NewStore(log)
	retrievalEngine := retrieval.New(store, ontStore, cfg.RetrievalConfig(), log)
	maintRunner := maintenance.New(store, ontStore, cfg.MaintenanceConfigFor(), log)
	sup := supervisor.New(cfg.SupervisorConfigFor(), log)

	registry := tool.NewRegistry()
	registry.Register(builtin.NewToolset(store), builtin.NewInvestigationToolset(ontStore))

	llm := ollama.New(ollama.Config{Model: modelName})

	return &Pipeline{
		Belief:              beliefTracker,
		OrgKernel:           kernel,
		Workflow:            wfEngine,
		ToolGate:            gate,
		Retrieval:           retrievalEngine,
		Ontology:            ontStore,
		Maint:               maintRunner,
		Supervisor:          sup,
		LLM:                 llm,
		Tools:               registry,
		SystemPrompt:        "You are operating inside the cognitive scaffolding core. Use the tools offered when they help; otherwise answer directly.",
		MaintenanceInterval: cfg.Maintenance.IntervalLoops,
		TurnTimeout:         cfg.TurnTimeout,
		Log:                 log,
	}, nil
}

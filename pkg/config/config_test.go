package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, yamlBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scaffold.yaml")
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "paths:\n  organizations_dir: orgs\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Paths.OrganizationsDir != "orgs" {
		t.Errorf("expected configured value to survive, got %q", cfg.Paths.OrganizationsDir)
	}
	if cfg.Paths.WorkflowsDir != "workflows" {
		t.Errorf("expected default workflows dir, got %q", cfg.Paths.WorkflowsDir)
	}
	if cfg.Vector.Backend != "chromem" {
		t.Errorf("expected default vector backend chromem, got %q", cfg.Vector.Backend)
	}
	if cfg.Embedder.Backend != "local" {
		t.Errorf("expected default embedder backend local, got %q", cfg.Embedder.Backend)
	}
	if cfg.Memory.MaxInjected != 5 {
		t.Errorf("expected default max injected 5, got %d", cfg.Memory.MaxInjected)
	}
	if cfg.StatusServer.Addr != ":8090" {
		t.Errorf("expected default status server addr, got %q", cfg.StatusServer.Addr)
	}
}

func TestVectorProviderConfig_RequiresBackendConfigBlock(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Vector.Backend = "qdrant"

	if _, err := cfg.VectorProviderConfig(); err == nil {
		t.Fatal("expected an error when qdrant is selected without vector.qdrant configured")
	}
}

func TestEmbedderProviderConfig_Projection(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Embedder.LocalDimension = 32

	ec := cfg.EmbedderProviderConfig()
	if ec.LocalDimension != 32 {
		t.Errorf("expected projected dimension 32, got %d", ec.LocalDimension)
	}
}

func TestRetrievalConfig_Projection(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Memory.Enabled = true
	cfg.Memory.HalfLifeHours = 24

	rc := cfg.RetrievalConfig()
	if !rc.Enabled || rc.HalfLifeHours != 24 {
		t.Errorf("unexpected retrieval projection: %+v", rc)
	}
}

package ontology

import (
	"strings"
	"testing"
	"time"
)

func TestIngestJSON_JSONLMapsAliasedKeys(t *testing.T) {
	now := time.Now()
	input := strings.NewReader(`{"full_name": "Acme Corp", "ein": "12-3456789", "city": "Springfield"}
{"company_name": "Zenith Holdings"}
`)
	result, err := IngestJSON(input, "organization", "src-1", nil, now)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d (%+v)", len(result.Candidates), result)
	}
	if result.Candidates[0].Properties["name"] != "Acme Corp" {
		t.Fatalf("expected full_name alias mapped to name, got %+v", result.Candidates[0].Properties)
	}
	if result.Candidates[0].Properties["ein"] != "12-3456789" {
		t.Fatalf("expected ein carried through, got %+v", result.Candidates[0].Properties)
	}
	if result.Candidates[0].Properties["address"] != "Springfield" {
		t.Fatalf("expected city alias mapped to address, got %+v", result.Candidates[0].Properties)
	}
}

func TestIngestJSON_ArrayFormSkipsRecordsWithoutName(t *testing.T) {
	now := time.Now()
	input := strings.NewReader(`[{"name": "Acme Corp"}, {"ein": "12-3456789"}]`)
	result, err := IngestJSON(input, "organization", "src-1", nil, now)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped record without a name, got %d", result.Skipped)
	}
}

func TestIngestCSV_MapsColumnsByHeader(t *testing.T) {
	now := time.Now()
	input := strings.NewReader("company_name,ein,address\nAcme Corp,12-3456789,123 Main St\n")
	result, err := IngestCSV(input, "organization", "src-1", nil, 0, now)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	c := result.Candidates[0]
	if c.Properties["name"] != "Acme Corp" || c.Properties["ein"] != "12-3456789" || c.Properties["address"] != "123 Main St" {
		t.Fatalf("unexpected properties: %+v", c.Properties)
	}
	if c.Provenance.SourceID != "src-1" {
		t.Fatalf("expected source id carried into provenance, got %+v", c.Provenance)
	}
}

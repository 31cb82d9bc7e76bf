package ontology

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// KeyMap maps a candidate property name to the ordered list of source
// keys/columns tried for it, generalized from connectors/json_connector.py
// and connectors/csv_connector.py's DEFAULT_KEY_MAP / DEFAULT_MAPPINGS: a
// record rarely uses the exact property names the ontology wants, so each
// property tries several aliases in order and keeps the first non-empty hit.
type KeyMap map[string][]string

// DefaultKeyMap mirrors the Python connectors' default alias tables,
// trimmed to the properties this package's scoring axes actually use.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		"name":    {"name", "full_name", "entity_name", "company_name", "org_name", "person_name"},
		"address": {"address", "location", "street", "city"},
		"date":    {"date", "filing_date", "date_of_birth", "start_date", "effective_date"},
		"context": {"description", "summary", "bio", "about"},
		"ein":     {"ein"},
		"duns":    {"duns"},
		"ticker":  {"ticker"},
	}
}

// IngestResult mirrors the Python connectors' {"candidates", "skipped",
// "errors"} return shape.
type IngestResult struct {
	Candidates []Candidate
	Skipped    int
	Errors     int
}

func mapRecord(rec map[string]string, entityType, sourceID string, keyMap KeyMap, now time.Time) Candidate {
	props := map[string]string{}
	for prop, aliases := range keyMap {
		for _, alias := range aliases {
			if v := strings.TrimSpace(rec[alias]); v != "" {
				props[prop] = v
				break
			}
		}
	}
	return Candidate{
		EntityType: entityType,
		Properties: props,
		Provenance: Provenance{SourceID: sourceID, SourceType: "file", IngestedAt: now, Confidence: 0.8},
	}
}

// IngestJSON reads line-delimited or array-of-object JSON and maps each
// record into a Candidate via keyMap, generalized from
// connectors/json_connector.py's ingest_json: JSONL (one object per line)
// and a top-level JSON array are both accepted, matching the Python
// connector's auto-detection between the two.
func IngestJSON(r io.Reader, entityType, sourceID string, keyMap KeyMap, now time.Time) (IngestResult, error) {
	if keyMap == nil {
		keyMap = DefaultKeyMap()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return IngestResult{}, fmt.Errorf("read: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))

	var rawRecords []map[string]any
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &rawRecords); err != nil {
			return IngestResult{}, fmt.Errorf("decode json array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(strings.NewReader(trimmed))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				rawRecords = append(rawRecords, nil)
				continue
			}
			rawRecords = append(rawRecords, rec)
		}
	}

	result := IngestResult{}
	for _, raw := range rawRecords {
		if raw == nil {
			result.Errors++
			continue
		}
		rec := make(map[string]string, len(raw))
		for k, v := range raw {
			rec[k] = fmt.Sprintf("%v", v)
		}
		c := mapRecord(rec, entityType, sourceID, keyMap, now)
		if c.Properties["name"] == "" {
			result.Skipped++
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}
	return result, nil
}

// IngestCSV reads a delimited file (comma by default) and maps each row
// into a Candidate via keyMap, generalized from connectors/csv_connector.py's
// ingest_csv. Unlike the Python connector it does not sniff the delimiter;
// callers that need tab- or pipe-delimited input pass it explicitly.
func IngestCSV(r io.Reader, entityType, sourceID string, keyMap KeyMap, delimiter rune, now time.Time) (IngestResult, error) {
	if keyMap == nil {
		keyMap = DefaultKeyMap()
	}
	if delimiter == 0 {
		delimiter = ','
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return IngestResult{}, nil
	}
	if err != nil {
		return IngestResult{}, fmt.Errorf("read header: %w", err)
	}

	result := IngestResult{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors++
			continue
		}
		rec := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[strings.ToLower(strings.TrimSpace(col))] = row[i]
			}
		}
		c := mapRecord(rec, entityType, sourceID, keyMap, now)
		if c.Properties["name"] == "" {
			result.Skipped++
			continue
		}
		result.Candidates = append(result.Candidates, c)
	}
	return result, nil
}

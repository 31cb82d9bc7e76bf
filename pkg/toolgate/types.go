// Package toolgate implements the Tool Fallback & Meta-Reasoning Gate
// (spec §4.4): the before/after hooks that surround every tool invocation
// the model performs, validating arguments, tracking failures, and
// surfacing recovery advice.
package toolgate

import "encoding/json"

// ErrorKind is the fixed classification vocabulary a tool outcome is
// reduced to.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindTimeout    ErrorKind = "timeout"
	KindNotFound   ErrorKind = "not_found"
	KindPermission ErrorKind = "permission"
	KindSyntax     ErrorKind = "syntax"
	KindNetwork    ErrorKind = "network"
	KindResource   ErrorKind = "resource"
	KindDependency ErrorKind = "dependency"
	KindExecution  ErrorKind = "execution"
)

// anyTool / anyKind are the wildcard keys used by the three-level advice
// fallback lookup.
const (
	anyTool = "*"
	anyKind = ErrorKind("*")
)

// ArgSchema is a static per-tool argument contract: required names, alias
// resolution, and default injection.
type ArgSchema struct {
	ToolName string            `json:"tool_name"`
	Required []string          `json:"required"`
	Aliases  map[string]string `json:"aliases"`  // alias -> canonical name
	Defaults map[string]any    `json:"defaults"` // canonical name -> default value
}

// SchemaSet is the static tool_name -> ArgSchema table.
type SchemaSet map[string]ArgSchema

// LoadSchemaSet parses the static argument-schema table from JSON bytes.
// Malformed input yields an empty set together with the parse error; with
// an empty set, validation passes everything through unchecked rather than
// blocking tool calls.
func LoadSchemaSet(data []byte) (SchemaSet, error) {
	var list []ArgSchema
	if err := json.Unmarshal(data, &list); err != nil {
		return SchemaSet{}, err
	}
	set := SchemaSet{}
	for _, s := range list {
		set[s.ToolName] = s
	}
	return set, nil
}

// AdviceTable is the static (tool_name, error_kind) -> advice lookup,
// consulted tool-specific first, then tool-wide, then kind-wide.
type AdviceTable map[string]map[ErrorKind]string

func (t AdviceTable) lookup(toolName string, kind ErrorKind) (string, bool) {
	if byKind, ok := t[toolName]; ok {
		if advice, ok := byKind[kind]; ok {
			return advice, true
		}
		if advice, ok := byKind[anyKind]; ok {
			return advice, true
		}
	}
	if byKind, ok := t[anyTool]; ok {
		if advice, ok := byKind[kind]; ok {
			return advice, true
		}
	}
	return "", false
}

// FailureRecord mirrors the spec's bounded-ring entry.
type FailureRecord struct {
	ToolName       string    `json:"tool_name"`
	ErrorKind      ErrorKind `json:"error_kind"`
	MessagePreview string    `json:"message_preview"`
	Turn           int64     `json:"turn"`
}

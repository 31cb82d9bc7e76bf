package belief

import (
	"strings"

	"github.com/cogscaffold/core/pkg/textutil"
)

// Resolver is a pure function over (message, recent history, prior belief
// state) that attempts to fill one slot. It returns (value, true) on a
// non-null resolution, or (nil, false) to let the chain continue.
type Resolver func(msg string, history []string, prior *State, slot SlotDef) (any, bool)

// Registry is the canonical set of resolvers named in spec §4.1 step 3.
var Registry = map[string]Resolver{
	"keyword_map":              keywordMap,
	"file_extension_inference": fileExtensionInference,
	"last_mentioned_file":      lastMentionedFile,
	"last_mentioned_path":      lastMentionedPath,
	"last_mentioned_entity":    lastMentionedEntity,
	"history_scan":             historyScan,
	"context_inference":        contextInference,
}

// resolveSlot runs slot's resolver chain, returning the first non-null result.
func resolveSlot(msg string, history []string, prior *State, slot SlotDef) (any, bool) {
	for _, name := range slot.Resolvers {
		r, ok := Registry[name]
		if !ok {
			continue
		}
		if v, ok := r(msg, history, prior, slot); ok {
			return v, true
		}
	}
	return nil, false
}

func keywordMap(msg string, _ []string, _ *State, slot SlotDef) (any, bool) {
	return keywordMapOver(msg, slot)
}

func keywordMapOver(haystack string, slot SlotDef) (any, bool) {
	lower := strings.ToLower(haystack)
	for k, v := range slot.KeywordMap {
		if strings.Contains(lower, strings.ToLower(k)) {
			return v, true
		}
	}
	return nil, false
}

func fileExtensionInference(msg string, history []string, _ *State, slot SlotDef) (any, bool) {
	if m := textutil.FilePattern.FindString(msg); m != "" {
		return m, true
	}
	return nil, false
}

func lastMentionedFile(msg string, history []string, _ *State, _ SlotDef) (any, bool) {
	if m := textutil.LastMatch(textutil.FilePattern, msg, history); m != "" {
		return m, true
	}
	return nil, false
}

func lastMentionedPath(msg string, history []string, _ *State, _ SlotDef) (any, bool) {
	if m := textutil.LastMatch(textutil.PathPattern, msg, history); m != "" {
		return m, true
	}
	return nil, false
}

// lastMentionedEntity falls back to the last run of capitalized words (one
// word or more) in the message, then in the history from newest to oldest,
// a deterministic proxy for "the entity last referred to".
func lastMentionedEntity(msg string, history []string, _ *State, _ SlotDef) (any, bool) {
	if e := lastCapitalizedPhrase(msg); e != "" {
		return e, true
	}
	for i := len(history) - 1; i >= 0; i-- {
		if e := lastCapitalizedPhrase(history[i]); e != "" {
			return e, true
		}
	}
	return nil, false
}

func lastCapitalizedPhrase(s string) string {
	words := strings.Fields(s)
	var best string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			best = strings.Join(cur, " ")
			cur = nil
		}
	}
	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:")
		if trimmed != "" && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
			cur = append(cur, trimmed)
		} else {
			flush()
		}
	}
	flush()
	return best
}

// historyScan applies the keyword_map table over the joined history rather
// than the current message, catching slots only mentioned earlier.
func historyScan(_ string, history []string, _ *State, slot SlotDef) (any, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if v, ok := keywordMapOver(history[i], slot); ok {
			return v, true
		}
	}
	return nil, false
}

// contextInference carries a slot value forward from the prior belief state
// whenever that state holds a value under the slot's name; the prior
// state's domain is not compared.
func contextInference(_ string, _ []string, prior *State, slot SlotDef) (any, bool) {
	if prior == nil {
		return nil, false
	}
	v, ok := prior.Slots[slot.Name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

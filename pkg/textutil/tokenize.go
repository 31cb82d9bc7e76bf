// Package textutil holds the small set of deterministic, rule-based text
// helpers shared by the Belief State Tracker and the Memory Enhancement
// query expansion — both need order-preserving tokenization and stopword
// filtering, and the spec requires both to be pure functions (no model
// calls) per §1's Non-goals.
package textutil

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_./-]+`)

// defaultStopwords is the fixed stopword set referenced by spec §4.5's
// keyword query variant.
var defaultStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "at": {}, "by": {}, "from": {}, "and": {}, "or": {},
	"but": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "we": {}, "they": {}, "my": {},
	"your": {}, "our": {}, "their": {}, "can": {}, "do": {}, "does": {},
	"did": {}, "will": {}, "would": {}, "should": {}, "could": {}, "has": {},
	"have": {}, "had": {}, "not": {}, "so": {}, "as": {}, "if": {}, "then": {},
	"what": {}, "which": {}, "who": {}, "how": {}, "please": {},
}

// Tokenize lower-cases and splits s into word-ish tokens, preserving order.
func Tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// Keywords extracts up to maxTokens tokens of length > minLen from s with
// stopwords removed, preserving input order. Used for the "keyword" query
// variant (spec §4.5): at most 12 tokens of length > 2, input order.
func Keywords(s string, minLen, maxTokens int) []string {
	out := make([]string, 0, maxTokens)
	for _, tok := range Tokenize(s) {
		if len(out) >= maxTokens {
			break
		}
		if len(tok) <= minLen {
			continue
		}
		if _, stop := defaultStopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// MatchCount returns how many of the given trigger keywords occur in s
// (case-insensitive substring match), used for BST domain trigger scoring.
func MatchCount(s string, triggers []string) int {
	lower := strings.ToLower(s)
	count := 0
	for _, t := range triggers {
		if strings.Contains(lower, strings.ToLower(t)) {
			count++
		}
	}
	return count
}

// FilePattern matches file-like tokens (a path segment with a short extension).
var FilePattern = regexp.MustCompile(`[A-Za-z0-9_\-./]+\.[A-Za-z0-9]{1,6}\b`)

// PathPattern matches path-like tokens (containing at least one slash).
var PathPattern = regexp.MustCompile(`(?:[A-Za-z0-9_\-.]+/)+[A-Za-z0-9_\-.]*`)

// LastMatch returns the last regex match found across msg and history,
// scanning history most-recent-first, or "" if none found.
func LastMatch(re *regexp.Regexp, msg string, history []string) string {
	if m := re.FindString(msg); m != "" {
		return m
	}
	for i := len(history) - 1; i >= 0; i-- {
		if m := re.FindString(history[i]); m != "" {
			return m
		}
	}
	return ""
}

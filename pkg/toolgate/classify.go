package toolgate

import "regexp"

// classifyRule is one entry of the ordered regex table; first match wins.
type classifyRule struct {
	kind    ErrorKind
	pattern *regexp.Regexp
}

// defaultClassifier mirrors the fixed error_kind vocabulary. Rules are
// evaluated top to bottom; a response matching none of them is success.
var defaultClassifier = []classifyRule{
	{KindTimeout, regexp.MustCompile(`(?i)timed?\s*out|deadline exceeded|context deadline`)},
	{KindNotFound, regexp.MustCompile(`(?i)not found|no such file|404|does not exist`)},
	{KindPermission, regexp.MustCompile(`(?i)permission denied|forbidden|unauthorized|access denied|401|403`)},
	{KindSyntax, regexp.MustCompile(`(?i)syntax error|invalid argument|malformed|parse error|unexpected token`)},
	{KindNetwork, regexp.MustCompile(`(?i)connection refused|network unreachable|dns|tls handshake|econnreset`)},
	{KindResource, regexp.MustCompile(`(?i)out of memory|disk full|resource exhausted|too many open files|rate limit`)},
	{KindDependency, regexp.MustCompile(`(?i)module not found|package .* not found|dependency|unresolved import`)},
	{KindExecution, regexp.MustCompile(`(?i)panic|exit status [1-9]|traceback|exception|execution failed`)},
}

// Classify reduces a tool's raw output/error text to a fixed error_kind.
// An empty result means success.
func Classify(rules []classifyRule, output string, toolErr error) ErrorKind {
	if toolErr != nil {
		output = output + " " + toolErr.Error()
	}
	if output == "" {
		return KindNone
	}
	for _, r := range rules {
		if r.pattern.MatchString(output) {
			return r.kind
		}
	}
	return KindNone
}

// DefaultRules exposes the built-in classifier table for callers that want
// to extend rather than replace it.
func DefaultRules() []classifyRule {
	out := make([]classifyRule, len(defaultClassifier))
	copy(out, defaultClassifier)
	return out
}

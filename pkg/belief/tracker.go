package belief

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cogscaffold/core/pkg/corectx"
)

// underspecifiedPatterns are the anaphoric/continuation cues from spec §4.1
// step 1 ("fix it", "do that again", ...). Matching one of these, with a
// live belief state, reuses the prior domain and slots without reclassifying.
var underspecifiedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfix it\b`),
	regexp.MustCompile(`(?i)\bdo (that|it) again\b`),
	regexp.MustCompile(`(?i)\btry again\b`),
	regexp.MustCompile(`(?i)\bsame (thing|one|file)\b`),
	regexp.MustCompile(`(?i)\bkeep going\b`),
	regexp.MustCompile(`(?i)\bcontinue\b`),
	regexp.MustCompile(`(?i)\bonce more\b`),
	regexp.MustCompile(`(?i)\banother (one|pass)\b`),
}

// Result is the BST's effect, carried on a corectx.ComponentOutcome.
type Result struct {
	EnrichedMessage    string
	NewState           *State
	ClarifyingQuestion string
}

// Tracker runs the BST pipeline over a taxonomy.
type Tracker struct {
	Taxonomy *Taxonomy
	Log      *slog.Logger
}

// New builds a Tracker. A nil or empty taxonomy degrades every turn to
// passthrough, satisfying the core's backward-compatibility guarantee.
func New(t *Taxonomy, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{Taxonomy: t, Log: log}
}

// Process runs the BST pipeline for one turn. It never returns an error to
// the caller: unexpected failures degrade to passthrough per spec §4.1's
// failure semantics.
func (tr *Tracker) Process(msg string, history []string, prior *State, turn int64) corectx.ComponentOutcome {
	return corectx.Boundary("belief", func() (corectx.ComponentOutcome, error) {
		return tr.process(msg, history, prior, turn)
	})
}

func (tr *Tracker) process(msg string, history []string, prior *State, turn int64) (corectx.ComponentOutcome, error) {
	if tr.Taxonomy == nil || len(tr.Taxonomy.Domains) == 0 {
		return corectx.SkipOutcome("no taxonomy loaded"), nil
	}

	var domainName string
	var triggerScore float64
	reused := false

	if isUnderspecified(msg) && !prior.Expired() {
		domainName = prior.Domain
		triggerScore = 1.0
		reused = true
	} else {
		domainName, triggerScore = tr.classify(msg)
	}

	dom := tr.Taxonomy.domainByName(domainName)
	if dom == nil {
		return corectx.SkipOutcome(fmt.Sprintf("unknown domain %q", domainName)), nil
	}

	slots := map[string]any{}
	if reused && prior != nil {
		for k, v := range prior.Slots {
			slots[k] = v
		}
	}
	filledRequired := 0
	for _, slot := range dom.Slots {
		if !reused || slots[slot.Name] == nil {
			if v, ok := resolveSlot(msg, history, prior, slot); ok {
				slots[slot.Name] = v
			} else if _, exists := slots[slot.Name]; !exists {
				slots[slot.Name] = nil
			}
		}
		if slot.Required && slots[slot.Name] != nil {
			filledRequired++
		}
	}

	required := dom.RequiredSlots()
	fillRate := 1.0
	if len(required) > 0 {
		fillRate = float64(filledRequired) / float64(len(required))
	}

	final := 0.4*triggerScore + 0.6*fillRate

	tr.Log.Info("belief classified", "domain", dom.Name, "confidence", final,
		"filled_slots", filledSlotNames(slots))

	switch {
	case final >= dom.ConfidenceThreshold:
		enriched := composeEnrichedMessage(dom, slots, msg)
		newState := &State{
			Domain:       dom.Name,
			Slots:        slots,
			Confidence:   final,
			TTLRemaining: tr.Taxonomy.ttl(),
			CreatedTurn:  turn,
		}
		return corectx.OkOutcome(&Result{EnrichedMessage: enriched, NewState: newState}), nil

	case firstUnfilledRequired(required, slots) != nil:
		slot := firstUnfilledRequired(required, slots)
		return corectx.OkOutcome(&Result{ClarifyingQuestion: slot.ClarifyingQuestion}), nil

	default:
		return corectx.SkipOutcome("below threshold, no required slots outstanding"), nil
	}
}

func isUnderspecified(msg string) bool {
	for _, re := range underspecifiedPatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

// classify picks the domain with the highest trigger score, ties broken by
// taxonomy order; the conversational sentinel passes at score 0 when
// nothing clears the global floor.
func (tr *Tracker) classify(msg string) (string, float64) {
	bestName := ConversationalDomainName
	bestScore := 0.0
	for _, dom := range tr.Taxonomy.Domains {
		if len(dom.TriggerKeywords) == 0 {
			continue
		}
		matched := matchCount(msg, dom.TriggerKeywords)
		score := float64(matched) / float64(len(dom.TriggerKeywords))
		if score > bestScore {
			bestScore = score
			bestName = dom.Name
		}
	}
	if bestScore < tr.Taxonomy.GlobalMinFloor {
		return ConversationalDomainName, 0.0
	}
	return bestName, bestScore
}

func matchCount(msg string, triggers []string) int {
	lower := strings.ToLower(msg)
	n := 0
	for _, t := range triggers {
		if strings.Contains(lower, strings.ToLower(t)) {
			n++
		}
	}
	return n
}

func composeEnrichedMessage(dom *Domain, slots map[string]any, original string) string {
	var b strings.Builder
	b.WriteString("[TASK CONTEXT]\n")
	for _, slot := range dom.Slots {
		v := slots[slot.Name]
		if v == nil {
			continue
		}
		fmt.Fprintf(&b, "%s: %v\n", slot.Name, v)
	}
	b.WriteString("[INSTRUCTION]\n")
	b.WriteString(dom.Preamble)
	b.WriteString("\n[USER MESSAGE]\n")
	b.WriteString(original)
	return b.String()
}

func firstUnfilledRequired(required []SlotDef, slots map[string]any) *SlotDef {
	for i := range required {
		if slots[required[i].Name] == nil {
			return &required[i]
		}
	}
	return nil
}

func filledSlotNames(slots map[string]any) []string {
	var names []string
	for k, v := range slots {
		if v != nil {
			names = append(names, k)
		}
	}
	return names
}

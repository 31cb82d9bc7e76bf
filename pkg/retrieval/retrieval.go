// Package retrieval implements Memory Enhancement: query expansion,
// similarity search merged across variants, temporal decay, related-memory
// boosting, and access bookkeeping for whatever gets surfaced into a turn.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cogscaffold/core/pkg/corectx"
	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/ontology"
	"github.com/cogscaffold/core/pkg/textutil"
)

const (
	retrievalKPerVariant = 8
	maxInjected          = 5
	relatedBoost         = 0.08
	minRecencyScore      = 0.1
	decayWeight          = 0.15
	coRetrievalLogCap    = 500
)

// Config controls Memory Enhancement, mirroring spec §4.5's tunables.
type Config struct {
	Enabled        bool
	HalfLifeHours  float64
	DecayWeight    float64
	RelatedBoost   float64
	MaxInjected    int
	KPerVariant    int
	OntologyAware  bool
}

func (c *Config) setDefaults() {
	if c.HalfLifeHours == 0 {
		c.HalfLifeHours = 168
	}
	if c.DecayWeight == 0 {
		c.DecayWeight = decayWeight
	}
	if c.RelatedBoost == 0 {
		c.RelatedBoost = relatedBoost
	}
	if c.MaxInjected == 0 {
		c.MaxInjected = maxInjected
	}
	if c.KPerVariant == 0 {
		c.KPerVariant = retrievalKPerVariant
	}
}

func (c *Config) decayRate() float64 {
	return math.Ln2 / c.HalfLifeHours
}

// Engine runs Memory Enhancement against a shared memory store.
type Engine struct {
	Store    *memstore.Store
	Ontology *ontology.Store
	Cfg      Config
	Log      *slog.Logger

	coRetrievalLog []coRetrievalEntry
}

type coRetrievalEntry struct {
	IDs []string
	At  time.Time
}

func New(store *memstore.Store, ont *ontology.Store, cfg Config, log *slog.Logger) *Engine {
	cfg.setDefaults()
	return &Engine{Store: store, Ontology: ont, Cfg: cfg, Log: log}
}

// Scored pairs a fragment with its final blended score for display.
type Scored struct {
	Fragment *memstore.Fragment
	Score    float64
}

// Result is the Effect carried by a ComponentOutcome.
type Result struct {
	Injected []Scored
	Snippets []string
}

// Retrieve runs query expansion, search, decay, boosting, and emission for
// one turn's user message.
func (e *Engine) Retrieve(ctx context.Context, domain, message string, now time.Time) corectx.ComponentOutcome {
	return corectx.Boundary("retrieval", func() (corectx.ComponentOutcome, error) {
		return e.retrieve(ctx, domain, message, now)
	})
}

func (e *Engine) retrieve(ctx context.Context, domain, message string, now time.Time) (corectx.ComponentOutcome, error) {
	if !e.Cfg.Enabled {
		return corectx.SkipOutcome("memory enhancement disabled"), nil
	}
	queries := e.expandQueries(domain, message)

	merged := map[string]*mergedHit{}
	for _, q := range queries {
		vec, err := e.Store.Embedder.Embed(ctx, q)
		if err != nil {
			return corectx.ComponentOutcome{}, fmt.Errorf("embed query: %w", err)
		}
		frags, scores, err := e.Store.Search(ctx, vec, e.Cfg.KPerVariant, nil)
		if err != nil {
			return corectx.ComponentOutcome{}, fmt.Errorf("search: %w", err)
		}
		for i, f := range frags {
			mergeByMaxScore(merged, f, scores[i])
		}
	}

	if len(merged) == 0 {
		return corectx.SkipOutcome("no memory hits"), nil
	}

	scored := e.applyDecay(merged, now)

	// Provisional top-k selection happens before related-memory boosting
	// (spec §4.5, scenario 5): a fragment already inside the provisional
	// top-k gets no boost, only fragments from the broader merged pool
	// that fell outside it do, after which the set is re-sorted and
	// re-selected down to MaxInjected.
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	provisionalK := e.Cfg.MaxInjected
	if len(scored) > provisionalK {
		scored = scored[:provisionalK]
	}

	scored = e.applyRelatedBoost(scored, merged)

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > e.Cfg.MaxInjected {
		scored = scored[:e.Cfg.MaxInjected]
	}

	ids := make([]string, 0, len(scored))
	snippets := make([]string, 0, len(scored))
	for _, s := range scored {
		e.Store.Touch(s.Fragment.ID, now)
		ids = append(ids, s.Fragment.ID)
		snippets = append(snippets, s.Fragment.Content)
	}
	if e.Cfg.OntologyAware && e.Ontology != nil {
		snippets = append(snippets, e.ontologySnippets(message)...)
	}
	e.appendCoRetrieval(ids, now)

	return corectx.OkOutcome(&Result{Injected: scored, Snippets: snippets}), nil
}

// expandQueries builds the original/keyword/domain variant set (spec §4.5).
func (e *Engine) expandQueries(domain, message string) []string {
	queries := []string{message}
	kw := keywordVariant(message)
	if kw != "" && kw != message {
		queries = append(queries, kw)
	}
	if domain != "" {
		domainKeyword := kw
		if domainKeyword == "" {
			domainKeyword = message
		}
		queries = append(queries, domain+": "+domainKeyword)
	}
	if e.Cfg.OntologyAware && e.Ontology != nil {
		queries = append(queries, e.entityVariants(message)...)
	}
	return dedupeStrings(queries)
}

type mergedHit struct {
	fragment *memstore.Fragment
	score    float64
}

func mergeByMaxScore(merged map[string]*mergedHit, f *memstore.Fragment, score float64) {
	if existing, ok := merged[f.ID]; ok {
		if score > existing.score {
			existing.score = score
		}
		return
	}
	merged[f.ID] = &mergedHit{fragment: f, score: score}
}

func (e *Engine) applyDecay(merged map[string]*mergedHit, now time.Time) []Scored {
	out := make([]Scored, 0, len(merged))
	rate := e.Cfg.decayRate()
	for _, hit := range merged {
		recency := 1.0
		if !hit.fragment.Exempt() {
			ts, ok := hit.fragment.LastAccessedOrCreated()
			if !ok {
				recency = 1.0
			} else {
				ageHours := now.Sub(ts).Hours()
				if ageHours < 0 {
					ageHours = 0
				}
				recency = math.Exp(-rate * ageHours)
				if recency < minRecencyScore {
					recency = minRecencyScore
				}
			}
		}
		final := (1-e.Cfg.DecayWeight)*hit.score + e.Cfg.DecayWeight*recency
		out = append(out, Scored{Fragment: hit.fragment, Score: final})
	}
	return out
}

// applyRelatedBoost runs against the already-selected provisional top-k:
// for each of those fragments, any related id that the broader search
// turned up (present in merged) but that didn't make the provisional cut
// gets a score bump and re-enters the pool, so the caller's re-sort can
// pull it back in (spec §4.5, concrete scenario 5). Related ids the
// search never surfaced at all are left alone — relatedness alone isn't
// enough to inject a fragment that never matched the query.
func (e *Engine) applyRelatedBoost(scored []Scored, merged map[string]*mergedHit) []Scored {
	topIDs := map[string]bool{}
	for _, s := range scored {
		topIDs[s.Fragment.ID] = true
	}
	seenRelated := map[string]bool{}
	for _, s := range scored {
		for _, relID := range s.Fragment.Lineage.RelatedMemoryIDs {
			if topIDs[relID] || seenRelated[relID] {
				continue
			}
			hit, ok := merged[relID]
			if !ok {
				continue
			}
			seenRelated[relID] = true
			scored = append(scored, Scored{Fragment: hit.fragment, Score: hit.score + e.Cfg.RelatedBoost})
			topIDs[relID] = true
		}
	}
	return scored
}

func (e *Engine) entityVariants(message string) []string {
	var out []string
	for _, ent := range e.Ontology.MatchEntitiesByName(message) {
		out = append(out, ent.Name)
		if len(out) >= 2 {
			break
		}
	}
	return out
}

func (e *Engine) ontologySnippets(message string) []string {
	var out []string
	for _, ent := range e.Ontology.MatchEntitiesByName(message) {
		for _, rel := range e.Ontology.Neighbours(ent.ID, 10) {
			out = append(out, fmt.Sprintf("Known connections: %s --%s--> %s", ent.Name, rel.Type, rel.ToName))
		}
	}
	return out
}

func (e *Engine) appendCoRetrieval(ids []string, now time.Time) {
	if len(ids) < 2 {
		return
	}
	e.coRetrievalLog = append(e.coRetrievalLog, coRetrievalEntry{IDs: ids, At: now})
	if len(e.coRetrievalLog) > coRetrievalLogCap {
		e.coRetrievalLog = e.coRetrievalLog[len(e.coRetrievalLog)-coRetrievalLogCap:]
	}
}

// CoRetrievalLog exposes the bounded FIFO log for the Maintenance Pass.
func (e *Engine) CoRetrievalLog() []coRetrievalEntry {
	out := make([]coRetrievalEntry, len(e.coRetrievalLog))
	copy(out, e.coRetrievalLog)
	return out
}

func keywordVariant(message string) string {
	return strings.Join(textutil.Keywords(message, 2, 12), " ")
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Package maintenance runs the periodic, between-turns sweep:
// deduplication, related-memory linking, cluster detection, dormancy
// flagging, and ontology upkeep.
package maintenance

import (
	"log/slog"
	"math"
	"time"

	"github.com/cogscaffold/core/pkg/memstore"
	"github.com/cogscaffold/core/pkg/ontology"
)

const (
	DefaultIntervalLoops   = 25
	maxPairsPerCycle       = 20
	tagOverlapThreshold    = 3
	maxRelatedPerMemory    = 10
	clusterCoOccurrenceMin = 5
)

// Config controls the maintenance pass.
type Config struct {
	Enabled                bool
	IntervalLoops          int
	SimilarityThreshold    float64
	ArchivalThresholdCycles int
}

func (c *Config) setDefaults() {
	if c.IntervalLoops == 0 {
		c.IntervalLoops = DefaultIntervalLoops
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.90
	}
	if c.ArchivalThresholdCycles == 0 {
		c.ArchivalThresholdCycles = 10
	}
}

// Report summarizes one maintenance pass for observability.
type Report struct {
	DeprecatedIDs     []string
	FlaggedForReview  [][2]string
	RelatedLinksAdded int
	ClusterCandidates [][]string
	DormantIDs        []string
}

// Runner executes the maintenance pass over a shared memory store and
// ontology store. It holds no turn-local state: every field it needs is
// either config or read fresh from the stores each cycle.
type Runner struct {
	Store    *memstore.Store
	Ontology *ontology.Store
	Cfg      Config
	Log      *slog.Logger

	coOccurrence map[[2]string]int
}

func New(store *memstore.Store, ont *ontology.Store, cfg Config, log *slog.Logger) *Runner {
	cfg.setDefaults()
	return &Runner{Store: store, Ontology: ont, Cfg: cfg, Log: log, coOccurrence: map[[2]string]int{}}
}

// Run executes one maintenance cycle. It never blocks a turn: callers
// invoke it only between turns, per the spec's concurrency model.
func (r *Runner) Run(now time.Time, coRetrievalBatches [][]string) *Report {
	if !r.Cfg.Enabled {
		return &Report{}
	}
	report := &Report{}
	fragments := r.Store.IterateAll()

	r.dedup(fragments, now, report)
	r.linkRelated(fragments, report)
	r.detectClusters(coRetrievalBatches, report)
	r.flagDormant(fragments, now, report)
	r.ontologyUpkeep(coRetrievalBatches, now)

	return report
}

// dedup finds near-duplicate pairs and resolves them by source priority,
// never auto-deprecating load_bearing fragments (spec §4.7).
func (r *Runner) dedup(fragments []*memstore.Fragment, now time.Time, report *Report) {
	pairs := 0
	for i := 0; i < len(fragments) && pairs < maxPairsPerCycle; i++ {
		a := fragments[i]
		if a.Lineage.SupersededBy != "" {
			continue
		}
		for j := i + 1; j < len(fragments) && pairs < maxPairsPerCycle; j++ {
			b := fragments[j]
			if b.Lineage.SupersededBy != "" {
				continue
			}
			sim := cosineSim(a.Vector, b.Vector)
			if sim < r.Cfg.SimilarityThreshold {
				continue
			}
			pairs++
			r.resolveDuplicate(a, b, now, report)
		}
	}
}

func (r *Runner) resolveDuplicate(a, b *memstore.Fragment, now time.Time, report *Report) {
	if a.Utility == memstore.UtilityLoadBearing && b.Utility == memstore.UtilityLoadBearing {
		report.FlaggedForReview = append(report.FlaggedForReview, [2]string{a.ID, b.ID})
		return
	}
	if a.Source == memstore.SourceUserAsserted && b.Source == memstore.SourceUserAsserted {
		report.FlaggedForReview = append(report.FlaggedForReview, [2]string{a.ID, b.ID})
		return
	}

	winner, loser := a, b
	switch {
	case winner.Utility == memstore.UtilityLoadBearing:
		// keep winner
	case loser.Utility == memstore.UtilityLoadBearing:
		winner, loser = loser, winner
	case loser.Source.Higher(winner.Source):
		winner, loser = loser, winner
	case winner.Source.Higher(loser.Source):
		// keep winner
	case loser.CreatedAt.After(winner.CreatedAt):
		winner, loser = loser, winner
	}

	if loser.Utility == memstore.UtilityLoadBearing {
		report.FlaggedForReview = append(report.FlaggedForReview, [2]string{a.ID, b.ID})
		return
	}

	if err := r.Store.MarkSuperseded(loser.ID, winner.ID); err != nil {
		r.Log.Warn("maintenance: mark superseded failed", "loser", loser.ID, "error", err)
		return
	}
	report.DeprecatedIDs = append(report.DeprecatedIDs, loser.ID)
}

// linkRelated connects fragments sharing 3+ tags as mutually related
// (spec §4.7), up to the per-memory cap.
func (r *Runner) linkRelated(fragments []*memstore.Fragment, report *Report) {
	for i, a := range fragments {
		if len(a.Lineage.RelatedMemoryIDs) >= maxRelatedPerMemory {
			continue
		}
		for j := i + 1; j < len(fragments); j++ {
			b := fragments[j]
			if tagOverlapCount(a.Tags, b.Tags) < tagOverlapThreshold {
				continue
			}
			if !contains(a.Lineage.RelatedMemoryIDs, b.ID) && len(a.Lineage.RelatedMemoryIDs) < maxRelatedPerMemory {
				a.Lineage.RelatedMemoryIDs = append(a.Lineage.RelatedMemoryIDs, b.ID)
				report.RelatedLinksAdded++
			}
			if !contains(b.Lineage.RelatedMemoryIDs, a.ID) && len(b.Lineage.RelatedMemoryIDs) < maxRelatedPerMemory {
				b.Lineage.RelatedMemoryIDs = append(b.Lineage.RelatedMemoryIDs, a.ID)
				report.RelatedLinksAdded++
			}
		}
	}
}

// detectClusters observes co-retrieval pairs that have recurred often
// enough to be worth surfacing as a candidate cluster. Observation only:
// no fragment state changes (spec §4.7).
func (r *Runner) detectClusters(batches [][]string, report *Report) {
	for _, ids := range batches {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				key := pairKey(ids[i], ids[j])
				r.coOccurrence[key]++
			}
		}
	}
	seen := map[string]bool{}
	for key, count := range r.coOccurrence {
		if count > clusterCoOccurrenceMin && !seen[key[0]+key[1]] {
			seen[key[0]+key[1]] = true
			report.ClusterCandidates = append(report.ClusterCandidates, []string{key[0], key[1]})
		}
	}
}

// flagDormant marks fragments that have never been accessed and have
// aged past the archival threshold, without reclassifying them
// automatically (spec §4.7).
func (r *Runner) flagDormant(fragments []*memstore.Fragment, now time.Time, report *Report) {
	threshold := time.Duration(r.Cfg.ArchivalThresholdCycles) * 24 * time.Hour
	for _, f := range fragments {
		if f.Lineage.AccessCount != 0 {
			continue
		}
		if f.Lineage.SupersededBy != "" {
			continue
		}
		if now.Sub(f.CreatedAt) > threshold {
			report.DormantIDs = append(report.DormantIDs, f.ID)
		}
	}
}

// ontologyUpkeep records a co_mentioned relationship at confidence 0.4 for
// every pair of entity ids in each co-retrieval batch. It does not update
// the confidence of existing relationships, compact deprecated ones,
// re-resolve pending candidates or rebuild entity summaries.
func (r *Runner) ontologyUpkeep(batches [][]string, now time.Time) {
	if r.Ontology == nil {
		return
	}
	for _, ids := range batches {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				r.Ontology.RecordDiscoveredRelationship(ids[i], ids[j], ontology.RelationCoMentioned, 0.4, now)
			}
		}
	}
}

func tagOverlapCount(a, b []string) int {
	bset := map[string]bool{}
	for _, t := range b {
		bset[t] = true
	}
	count := 0
	for _, t := range a {
		if bset[t] {
			count++
		}
	}
	return count
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func cosineSim(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package ontology

import (
	"math"
	"strings"
	"time"
)

// nameSimilarity scores name similarity with Jaro-Winkler: it rewards
// matching characters within a bounded window regardless of intervening
// unmatched text, then boosts for a shared prefix. For the normalized pair
// "john a smith" / "j smith" it gives about 0.75 (plain LCS over the longer
// length would give 7/12, about 0.58).
func nameSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	jaro := jaroSimilarity(a, b)
	if jaro == 0 {
		return 0
	}
	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < 4 && a[prefix] == b[prefix] {
		prefix++
	}
	return jaro + float64(prefix)*0.1*(1-jaro)
}

func jaroSimilarity(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	window := la
	if lb > window {
		window = lb
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, la)
	bMatched := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	matchedA := make([]byte, 0, matches)
	matchedB := make([]byte, 0, matches)
	for i := 0; i < la; i++ {
		if aMatched[i] {
			matchedA = append(matchedA, a[i])
		}
	}
	for j := 0; j < lb; j++ {
		if bMatched[j] {
			matchedB = append(matchedB, b[j])
		}
	}
	transpositions := 0
	for i := range matchedA {
		if matchedA[i] != matchedB[i] {
			transpositions++
		}
	}

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3
}

func identifierScore(a, b map[string]string) (float64, bool) {
	for k, v := range a {
		if v == "" {
			continue
		}
		if ov, ok := b[k]; ok && ov != "" {
			if ov == v {
				return 1.0, true
			}
			return 0.0, true
		}
	}
	return 0, false
}

func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	bset := map[string]bool{}
	for _, t := range bt {
		bset[t] = true
	}
	hits := 0
	for _, t := range at {
		if bset[t] {
			hits++
		}
	}
	denom := len(at)
	if len(bt) > denom {
		denom = len(bt)
	}
	return float64(hits) / float64(denom)
}

// dateScore linearly decays from 1.0 at 0 days apart to 0.0 at 365 days
// apart, per spec §4.6.
func dateScore(a, b time.Time) (float64, bool) {
	if a.IsZero() || b.IsZero() {
		return 0, false
	}
	days := math.Abs(a.Sub(b).Hours() / 24)
	if days >= 365 {
		return 0, true
	}
	return 1 - days/365, true
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	aset := map[string]bool{}
	for _, t := range a {
		aset[t] = true
	}
	bset := map[string]bool{}
	for _, t := range b {
		bset[t] = true
	}
	union := map[string]bool{}
	inter := 0
	for t := range aset {
		union[t] = true
	}
	for t := range bset {
		if aset[t] {
			inter++
		}
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

// CompositeScore blends the five axes with the given weights. Axes with no
// applicable data (identifier missing from either side, date missing)
// are dropped from the weighted average rather than scored as zero, so a
// missing axis never drags down an otherwise strong match.
func CompositeScore(w Weights, nameA, nameB string, idA, idB map[string]string,
	addrA, addrB string, dateA, dateB time.Time, ctxA, ctxB []string) float64 {

	var sum, total float64

	sum += w.Name * nameSimilarity(nameA, nameB)
	total += w.Name

	if idScore, applicable := identifierScore(idA, idB); applicable {
		sum += w.Identifier * idScore
		total += w.Identifier
	}

	if addrA != "" || addrB != "" {
		sum += w.Address * tokenOverlap(addrA, addrB)
		total += w.Address
	}

	if dScore, applicable := dateScore(dateA, dateB); applicable {
		sum += w.Date * dScore
		total += w.Date
	}

	sum += w.Context * jaccard(ctxA, ctxB)
	total += w.Context

	if total == 0 {
		return 0
	}
	return sum / total
}

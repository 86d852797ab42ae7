package match

import (
	"sort"

	"github.com/Valecer/market-sub000/internal"
)

type Matcher struct {
	autoThreshold   float64
	reviewThreshold float64
	maxCandidates   int
}

func NewMatcher(autoThreshold, reviewThreshold float64, maxCandidates int) *Matcher {
	if maxCandidates <= 0 {
		maxCandidates = 5
	}
	return &Matcher{
		autoThreshold:   autoThreshold,
		reviewThreshold: reviewThreshold,
		maxCandidates:   maxCandidates,
	}
}

// FindMatches scores every product against the item name and returns the top
// candidates sorted descending, ties kept in input order. Entries below the
// review threshold are dropped, except that the single best scorer survives
// so a low-confidence decision is still auditable.
func (m *Matcher) FindMatches(itemName string, itemID int64, products []internal.Product) internal.MatchResult {
	if len(products) == 0 {
		return internal.MatchResult{ItemID: itemID, Status: internal.MatchUnmatched, Candidates: []internal.MatchCandidate{}}
	}

	scored := make([]internal.MatchCandidate, 0, len(products))
	for _, p := range products {
		scored = append(scored, internal.MatchCandidate{
			ProductID:   p.ID,
			ProductName: p.Name,
			Score:       WeightedRatio(itemName, p.Name),
			CategoryID:  p.CategoryID,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	candidates := make([]internal.MatchCandidate, 0, m.maxCandidates)
	for _, c := range scored {
		if c.Score < m.reviewThreshold {
			break
		}
		candidates = append(candidates, c)
		if len(candidates) >= m.maxCandidates {
			break
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, scored[0])
	}

	best := candidates[0]
	score := best.Score
	return internal.MatchResult{
		ItemID:     itemID,
		Status:     m.classify(score),
		Best:       &best,
		Candidates: candidates,
		Score:      &score,
	}
}

// ReviewThreshold exposes the lower confidence bound for audit logging.
func (m *Matcher) ReviewThreshold() float64 { return m.reviewThreshold }

// FromCandidates rebuilds a result after an external pass has rescored the
// candidate list, re-sorting and re-classifying against the same thresholds.
func (m *Matcher) FromCandidates(itemID int64, candidates []internal.MatchCandidate) internal.MatchResult {
	if len(candidates) == 0 {
		return internal.MatchResult{ItemID: itemID, Status: internal.MatchUnmatched, Candidates: []internal.MatchCandidate{}}
	}
	sorted := make([]internal.MatchCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	best := sorted[0]
	score := best.Score
	return internal.MatchResult{
		ItemID:     itemID,
		Status:     m.classify(score),
		Best:       &best,
		Candidates: sorted,
		Score:      &score,
	}
}

func (m *Matcher) classify(score float64) internal.MatchStatus {
	switch {
	case score >= m.autoThreshold:
		return internal.MatchAuto
	case score >= m.reviewThreshold:
		return internal.MatchPotential
	default:
		return internal.MatchUnmatched
	}
}

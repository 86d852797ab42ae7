package match

import (
	"github.com/Valecer/market-sub000/internal/util"
)

// Scores live on a 0-100 scale. All comparisons run over normalized text, so
// scoring is case-insensitive and identical strings score 100.

func Ratio(a, b string) float64 {
	return dice(util.Normalize(a), util.Normalize(b)) * 100
}

// PartialRatio slides the shorter string over the longer one and takes the
// best window similarity, so a name embedded in a longer title still scores
// high.
func PartialRatio(a, b string) float64 {
	na := []rune(util.Normalize(a))
	nb := []rune(util.Normalize(b))
	if len(na) > len(nb) {
		na, nb = nb, na
	}
	if len(na) == 0 {
		return 0
	}
	if len(na) == len(nb) {
		return dice(string(na), string(nb)) * 100
	}

	best := 0.0
	for i := 0; i+len(na) <= len(nb); i++ {
		score := dice(string(na), string(nb[i:i+len(na)]))
		if score > best {
			best = score
		}
		if best == 1 {
			break
		}
	}
	return best * 100
}

func TokenSortRatio(a, b string) float64 {
	return dice(util.SortedTokens(a), util.SortedTokens(b)) * 100
}

// WeightedRatio combines plain, partial and token-order-insensitive
// similarity. Partial matches are discounted so a substring hit alone cannot
// reach the auto-match band.
func WeightedRatio(a, b string) float64 {
	score := Ratio(a, b)
	if partial := 0.9 * PartialRatio(a, b); partial > score {
		score = partial
	}
	if tokenSort := TokenSortRatio(a, b); tokenSort > score {
		score = tokenSort
	}
	if score > 100 {
		score = 100
	}
	return score
}

func dice(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

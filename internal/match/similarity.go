package match

import (
	"strings"

	"ingest/internal/dataset"
)

// Name similarity blends three normalized-name signals:
//   - character bigram Dice coefficient (weight 0.5)
//   - token-set Jaccard similarity over "_"-split tokens (weight 0.4)
//   - a 0.8-valued containment bonus when one name contains the other
//     (weight 0.1)
//
// Exact normalized equality short-circuits to 1.0.

const (
	diceWeight        = 0.5
	jaccardWeight     = 0.4
	containmentWeight = 0.1
	containmentValue  = 0.8
)

// nameSimilarity scores two raw names in [0,1] after normalization.
func nameSimilarity(a, b string) float64 {
	na := dataset.NormalizeName(a)
	nb := dataset.NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	contain := 0.0
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		contain = containmentValue
	}

	score := diceWeight*bigramDice(na, nb) +
		jaccardWeight*tokenJaccard(na, nb) +
		containmentWeight*contain
	return dataset.Clamp(score, 0, 1)
}

// bigramDice is the Dice coefficient over consecutive character pairs.
func bigramDice(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	overlap := 0
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			if m < n {
				n = m
			}
			overlap += n
		}
	}

	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return dataset.SafeRatio(2*overlap, total)
}

func bigrams(s string) map[string]int {
	if len(s) < 2 {
		return nil
	}
	out := make(map[string]int, len(s)-1)
	for i := 0; i+2 <= len(s); i++ {
		out[s[i:i+2]]++
	}
	return out
}

// tokenJaccard is set intersection over union of "_"-delimited tokens.
func tokenJaccard(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return dataset.SafeRatio(inter, union)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Split(s, "_") {
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

func hasToken(tokens map[string]struct{}, wants ...string) bool {
	for _, w := range wants {
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}

package match

import (
	"math"
	"strings"

	"catalog-sync/core/catalog"
	"catalog-sync/core/normalize"

	"github.com/agnivade/levenshtein"
)

// Score computes the weighted similarity between a product and a candidate
// in [0,1]. Deterministic: same inputs always produce the same score.
func (m *Matcher) Score(p catalog.Product, beer catalog.ExternalBeer) float64 {
	cfg := m.cfg

	// Retailer names usually lead with the brewery; external records split
	// brewery and beer name. Compare against both renderings and keep the
	// better one.
	productName := normalize.Normalize(p.Name)
	nameSim := math.Max(
		stringSimilarity(productName, normalize.Normalize(beer.Name)),
		stringSimilarity(productName, normalize.Normalize(beer.Brewery+" "+beer.Name)),
	)

	var brewerySim float64
	if p.Brewery != "" && beer.Brewery != "" {
		brewerySim = stringSimilarity(normalize.Normalize(p.Brewery), normalize.Normalize(beer.Brewery))
	} else {
		// Missing brewery on either side is neutral, not a penalty: the
		// retailer frequently omits it.
		brewerySim = 0.5
	}

	styleSim := styleCompatibility(p.Style, beer.Style)
	abvSim := abvCloseness(p.ABV, beer.ABV, cfg.ABVTolerance)

	totalWeight := cfg.NameWeight + cfg.BreweryWeight + cfg.StyleWeight + cfg.ABVWeight
	if totalWeight <= 0 {
		return 0
	}

	score := cfg.NameWeight*nameSim +
		cfg.BreweryWeight*brewerySim +
		cfg.StyleWeight*styleSim +
		cfg.ABVWeight*abvSim
	return score / totalWeight
}

// stringSimilarity blends token-set overlap with edit distance on the
// normalized strings. Token overlap is robust to word reordering, edit
// distance catches near-identical spellings the token pass misses.
func stringSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return 0.5*tokenOverlap(a, b) + 0.5*editRatio(a, b)
}

// tokenOverlap is the overlap coefficient of the two token sets: the size
// of the intersection over the size of the smaller set. Using the smaller
// set keeps a name that fully contains the other from being penalised for
// extra noise tokens.
func tokenOverlap(a, b string) float64 {
	setA := normalize.TokenSet(a)
	setB := normalize.TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	small, large := setA, setB
	if len(large) < len(small) {
		small, large = large, small
	}

	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// editRatio converts Levenshtein distance to a similarity in [0,1].
func editRatio(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// styleCompatibility is neutral (0.5) when either side lacks a style,
// 1 when the normalized styles share a token, and 0 otherwise.
func styleCompatibility(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0.5
	}
	if tokenOverlap(a, b) > 0 {
		return 1
	}
	return 0
}

// abvCloseness is neutral (0.5) when either side lacks an ABV, otherwise
// scales linearly from 1 (identical) to 0 (difference at or beyond the
// tolerance).
func abvCloseness(a, b, tolerance float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	if tolerance <= 0 {
		tolerance = 1
	}
	diff := math.Abs(a - b)
	if diff >= tolerance {
		return 0
	}
	return 1 - diff/tolerance
}

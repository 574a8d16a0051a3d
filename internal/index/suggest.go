package index

import (
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// MinSimilarity is the lowest score a candidate needs to be suggested.
const MinSimilarity = 0.6

// Suggestion is a near match for an identity that was not found.
type Suggestion struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// Suggest ranks candidate symbols by similarity to symbol and returns the
// best ones, highest score first. Exact matches are left out.
func Suggest(symbol string, candidates []string, limit int) []Suggestion {
	var out []Suggestion
	seen := map[string]bool{}
	for _, c := range candidates {
		if c == symbol || seen[c] {
			continue
		}
		seen[c] = true
		score := similarity(symbol, c)
		if score >= MinSimilarity {
			out = append(out, Suggestion{Symbol: c, Score: score})
		}
	}
	slices.SortFunc(out, func(a, b Suggestion) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Symbol, b.Symbol)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// similarity blends normalized edit distance with 3-gram overlap.
func similarity(a, b string) float64 {
	lev := levenshtein.Similarity(a, b, nil)
	return 0.7*lev + 0.3*ngramOverlap(a, b, 3)
}

// ngramOverlap returns |ngrams(a) & ngrams(b)| / min(|ngrams(a)|, |ngrams(b)|).
func ngramOverlap(a, b string, n int) float64 {
	if len(a) < n || len(b) < n {
		return 0
	}
	ga, gb := ngrams(a, n), ngrams(b, n)
	shared := 0
	for g := range ga {
		if gb[g] {
			shared++
		}
	}
	return float64(shared) / float64(min(len(ga), len(gb)))
}

func ngrams(s string, n int) map[string]bool {
	out := make(map[string]bool, len(s)-n+1)
	for i := 0; i+n <= len(s); i++ {
		out[s[i:i+n]] = true
	}
	return out
}

// FormatSuggestions renders suggestions as a "; did you mean" suffix, or
// "" when there are none.
func FormatSuggestions(s []Suggestion) string {
	if len(s) == 0 {
		return ""
	}
	names := make([]string, len(s))
	for i, sg := range s {
		names[i] = sg.Symbol
	}
	return "; did you mean " + strings.Join(names, ", ") + "?"
}

// Symbols returns the distinct symbols of the index in sorted order.
func (ix *Index) Symbols() []string {
	var out []string
	for _, e := range ix.Entries() {
		out = append(out, e.Identity.Symbol)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

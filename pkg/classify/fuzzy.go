package classify

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultFuzzyThreshold is the minimum token-sort ratio for a fuzzy hit.
const DefaultFuzzyThreshold = 85

// indel counts a substitution as one deletion plus one insertion, which
// turns the edit distance into the classic ratio denominator.
var indel = levenshtein.NewParams().SubCost(2)

// TokenSortRatio scores the similarity of a and b from 0 to 100 after
// splitting both on hyphens and whitespace, sorting the tokens and
// rejoining them with single spaces. Word order therefore does not matter.
func TokenSortRatio(a, b string) int {
	a, b = sortTokens(a), sortTokens(b)
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	dist := levenshtein.Distance(a, b, indel)
	return (100*(total-dist) + total/2) / total
}

// BestMatch returns the key with the highest ratio against query, provided
// it reaches threshold. Ties go to the earliest key, so sorted keys give a
// stable answer.
func BestMatch(query string, keys []string, threshold int) (key string, score int, ok bool) {
	if query == "" {
		return "", 0, false
	}
	best := -1
	for _, k := range keys {
		if s := TokenSortRatio(query, k); s > best {
			best, key = s, k
			if s == 100 {
				break
			}
		}
	}
	if best < threshold {
		return "", best, false
	}
	return key, best, true
}

func sortTokens(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

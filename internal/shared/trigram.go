package shared

import "strings"

// trigramSet extracts the trigram set of s the way pg_trgm does: the string
// is lowercased, each word is padded with two leading and one trailing
// space, and every run of three bytes becomes a trigram.
func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			set[padded[i:i+3]] = struct{}{}
		}
	}
	return set
}

// TrigramSimilarity scores how alike two strings are on a [0, 1] scale:
// the ratio of shared trigrams to the union of both trigram sets. Two empty
// strings score zero.
func TrigramSimilarity(a, b string) float64 {
	ta, tb := trigramSet(a), trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

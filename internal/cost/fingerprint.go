package cost

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint normalizes query text into a canonical cache/dedup key:
// NFKC fold, lowercase, punctuation stripped, whitespace collapsed.
func Fingerprint(text string) string {
	folded := norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity computes Jaccard similarity over word bigrams of the two
// fingerprints. Returns a value in [0,1]; single-word inputs fall back to
// unigram comparison.
func Similarity(a, b string) float64 {
	setA := bigrams(Fingerprint(a))
	setB := bigrams(Fingerprint(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for g := range setA {
		if setB[g] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func bigrams(fp string) map[string]bool {
	words := strings.Fields(fp)
	set := make(map[string]bool)
	if len(words) == 1 {
		set[words[0]] = true
		return set
	}
	for i := 0; i+1 < len(words); i++ {
		set[words[i]+" "+words[i+1]] = true
	}
	return set
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

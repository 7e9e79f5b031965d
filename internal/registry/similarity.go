package registry

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// NormalizeName lower-cases a library name, maps underscores and spaces to
// hyphens and trims separators from both ends.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", "-", " ", "-").Replace(name)
	return strings.Trim(name, "-.")
}

// Similarity is the Ratcliff/Obershelp ratio of the two normalized names,
// from 0 (nothing in common) to 1 (identical).
func Similarity(a, b string) float64 {
	ra, rb := runes(NormalizeName(a)), runes(NormalizeName(b))
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	return difflib.NewMatcher(ra, rb).Ratio()
}

// Accept reports whether a similarity score clears threshold. The threshold
// itself is accepted.
func Accept(score, threshold float64) bool {
	return score >= threshold
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

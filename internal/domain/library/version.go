package library

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// IsNewer reports whether latest is a later release than claimed.
//
// Versions are compared as semantic versions, with MAJOR.MINOR read as
// MAJOR.MINOR.0. Anything semver rejects (four components, stray suffixes)
// is compared field by field numerically, missing fields counting as zero.
func IsNewer(latest, claimed string) bool {
	return CompareVersions(latest, claimed) > 0
}

// CompareVersions returns -1, 0 or +1 as a is older than, equal to or newer than b.
func CompareVersions(a, b string) int {
	va, vb := canonical(a), canonical(b)
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return compareFields(a, b)
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func compareFields(a, b string) int {
	fa, fb := numericFields(a), numericFields(b)
	n := max(len(fa), len(fb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(fa) {
			x = fa[i]
		}
		if i < len(fb) {
			y = fb[i]
		}
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

// numericFields parses the leading digits of each dot-separated field.
func numericFields(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		end := 0
		for end < len(p) && p[end] >= '0' && p[end] <= '9' {
			end++
		}
		n, _ := strconv.Atoi(p[:end])
		out = append(out, n)
	}
	return out
}

package extractor

import (
	"regexp"
	"sync"
)

// Input is what a Rule inspects: the lower-cased base file name and, on
// demand, the first lines of the file body.
type Input struct {
	Filename string

	lines  func() []string
	once   sync.Once
	cached []string
}

// Lines returns the header lines of the body. The body is read at most once.
func (in *Input) Lines() []string {
	in.once.Do(func() {
		if in.lines != nil {
			in.cached = in.lines()
		}
	})
	return in.cached
}

// NewInput builds an Input from already-read lines. Mainly useful for tests.
func NewInput(filename string, lines ...string) *Input {
	return &Input{Filename: filename, lines: func() []string { return lines }}
}

// Rule is one version guess. Rules are tried in order and the first non-empty
// result wins, so higher-confidence rules come first.
type Rule interface {
	Name() string
	Match(in *Input) string
}

// FilenameRule matches a version embedded in the file name.
type FilenameRule struct {
	Label   string
	Pattern *regexp.Regexp
}

func (r FilenameRule) Name() string { return r.Label }

// Match returns the first submatch of the pattern in the file name.
func (r FilenameRule) Match(in *Input) string {
	if m := r.Pattern.FindStringSubmatch(in.Filename); len(m) > 1 {
		return m[1]
	}
	return ""
}

// BodyRule scans the header lines and stops at the first line where any of
// its patterns match.
type BodyRule struct {
	Label    string
	Patterns []*regexp.Regexp
}

func (r BodyRule) Name() string { return r.Label }

// Match returns the version found on the first matching line.
func (r BodyRule) Match(in *Input) string {
	for _, line := range in.Lines() {
		for _, p := range r.Patterns {
			if m := p.FindStringSubmatch(line); len(m) > 1 {
				return m[1]
			}
		}
	}
	return ""
}

const (
	triple = `(\d{1,3}\.\d{1,3}\.\d{1,3})`
	pair   = `(\d{1,3}\.\d{1,3})`
)

// labeled matches `version = "1.2.3"`, `version: '1.2'` and `@version 1.2.3`.
func labeled(v string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:@version\s+|\bversion['"]?\s*[:=]\s*)['"]?v?` + v + `(?:[\s'",;]|$)`)
}

// banner matches a version token in a comment line: a comment opener, a run
// of non-digits, whitespace, then the version bounded by whitespace.
func banner(v string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*(?:/\*+!?|//+|\*)\D*?\s[v'"]?` + v + `(?:\s|$)`)
}

// DefaultRules returns the version rule cascade, highest confidence first.
func DefaultRules() []Rule {
	return []Rule{
		FilenameRule{Label: "filename-triple", Pattern: regexp.MustCompile(`[-_]` + triple + `(?:\D|$)`)},
		FilenameRule{Label: "filename-pair", Pattern: regexp.MustCompile(`[-_]` + pair + `(?:\D|$)`)},
		BodyRule{Label: "body-triple", Patterns: []*regexp.Regexp{labeled(triple), banner(triple)}},
		BodyRule{Label: "body-pair", Patterns: []*regexp.Regexp{labeled(pair), banner(pair)}},
	}
}

// Package verifier compares a local script against its reference artifact
// and produces the line diff that backs a "modified" verdict.
package verifier

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

// Side names the file a DecodeError refers to.
type Side string

const (
	SideLocal     Side = "local"
	SideReference Side = "reference"
)

// DecodeError means one side is not valid text, so no meaningful diff exists.
type DecodeError struct {
	Side Side
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s file is not valid UTF-8 text", e.Side)
}

func (e *DecodeError) Unwrap() error {
	return apperrors.ErrDecodeFailure
}

// Verdict is the content comparison of a local file with its reference.
type Verdict struct {
	Identical bool
	Diff      []library.DiffSegment
}

// Verifier compares local files against references.
type Verifier struct{}

// New returns a Verifier.
func New() *Verifier {
	return &Verifier{}
}

// Verify compares local against reference. Byte-identical content is
// identical whatever its encoding; otherwise both sides must decode as text
// and the verdict carries a line diff from reference to local.
func (v *Verifier) Verify(local, reference []byte) (Verdict, error) {
	if bytes.Equal(local, reference) {
		return Verdict{Identical: true}, nil
	}
	if !utf8.Valid(reference) {
		return Verdict{}, &DecodeError{Side: SideReference}
	}
	if !utf8.Valid(local) {
		return Verdict{}, &DecodeError{Side: SideLocal}
	}
	return Verdict{Diff: Diff(SplitLines(string(reference)), SplitLines(string(local)))}, nil
}

// Classify folds a verdict and the staleness flag into the final status.
// A content mismatch always shows, stale or not.
func Classify(v Verdict, stale bool) library.Status {
	switch {
	case v.Identical && stale:
		return library.StatusStale
	case v.Identical:
		return library.StatusOK
	case stale:
		return library.StatusStaleAndModified
	default:
		return library.StatusModified
	}
}

// SplitLines splits s into lines, keeping each line's terminator.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Diff returns the ordered segments turning from into to.
func Diff(from, to []string) []library.DiffSegment {
	matcher := difflib.NewMatcher(from, to)
	opcodes := matcher.GetOpCodes()

	segments := make([]library.DiffSegment, 0, len(opcodes))
	for _, op := range opcodes {
		seg := library.DiffSegment{
			FromStart: op.I1,
			ToStart:   op.J1,
		}
		switch op.Tag {
		case 'e':
			seg.Kind = library.DiffEqual
		case 'i':
			seg.Kind = library.DiffInsert
		case 'd':
			seg.Kind = library.DiffDelete
		case 'r':
			seg.Kind = library.DiffReplace
		default:
			continue
		}
		if op.I2 > op.I1 {
			seg.FromLines = append([]string(nil), from[op.I1:op.I2]...)
		}
		if op.J2 > op.J1 {
			seg.ToLines = append([]string(nil), to[op.J1:op.J2]...)
		}
		segments = append(segments, seg)
	}
	return segments
}

// Changed reports whether any segment is not an equal block.
func Changed(segments []library.DiffSegment) bool {
	for _, s := range segments {
		if s.Kind != library.DiffEqual {
			return true
		}
	}
	return false
}

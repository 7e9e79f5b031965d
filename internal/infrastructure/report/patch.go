package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

// renderPatch emits one unified diff per modified file, reference as the
// original side and the local copy as the new side. Applying it to the
// reference artifact reproduces the local file.
func renderPatch(outcomes []library.Outcome) ([]byte, error) {
	var files []*diff.FileDiff
	for _, o := range outcomes {
		if !o.Status.Modified() || len(o.Diff) == 0 {
			continue
		}
		fd := FileDiff(o)
		if len(fd.Hunks) == 0 {
			continue
		}
		files = append(files, fd)
	}
	if len(files) == 0 {
		return []byte{}, nil
	}
	out, err := diff.PrintMultiFileDiff(files)
	if err != nil {
		return nil, fmt.Errorf("print patch: %w", err)
	}
	return out, nil
}

// FileDiff converts the stored segments of o into unified diff hunks.
func FileDiff(o library.Outcome) *diff.FileDiff {
	var from, to []string
	for _, seg := range o.Diff {
		from = append(from, seg.FromLines...)
		to = append(to, seg.ToLines...)
	}

	name := strings.TrimPrefix(o.Path, "/")
	fd := &diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
	}

	matcher := difflib.NewMatcher(from, to)
	for _, group := range matcher.GetGroupedOpCodes(diffContext) {
		first, last := group[0], group[len(group)-1]
		hunk := &diff.Hunk{
			OrigStartLine: hunkStart(first.I1, last.I2),
			OrigLines:     int32(last.I2 - first.I1),
			NewStartLine:  hunkStart(first.J1, last.J2),
			NewLines:      int32(last.J2 - first.J1),
		}

		var body bytes.Buffer
		for _, op := range group {
			switch op.Tag {
			case 'e':
				writeLines(&body, ' ', from[op.I1:op.I2])
			case 'd':
				writeLines(&body, '-', from[op.I1:op.I2])
			case 'i':
				writeLines(&body, '+', to[op.J1:op.J2])
			case 'r':
				writeLines(&body, '-', from[op.I1:op.I2])
				writeLines(&body, '+', to[op.J1:op.J2])
			}
		}
		hunk.Body = body.Bytes()
		fd.Hunks = append(fd.Hunks, hunk)
	}
	return fd
}

// hunkStart follows the unified format: 1-based, or the preceding line when
// the range is empty.
func hunkStart(start, end int) int32 {
	if start == end {
		return int32(start)
	}
	return int32(start + 1)
}

func writeLines(buf *bytes.Buffer, prefix byte, lines []string) {
	for _, line := range lines {
		buf.WriteByte(prefix)
		buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			buf.WriteByte('\n')
		}
	}
}

package report

import (
	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

// RowKind labels a row of a side-by-side diff.
type RowKind string

const (
	RowEqual   RowKind = "equal"
	RowInsert  RowKind = "insert"
	RowDelete  RowKind = "delete"
	RowReplace RowKind = "replace"
	RowSkip    RowKind = "skip"
)

// DiffRow is one line pair of a side-by-side diff. Line numbers are 1-based;
// zero means the side has no line on this row.
type DiffRow struct {
	Kind     RowKind
	FromLine int
	ToLine   int
	From     string
	To       string
	Skipped  int
}

type statusCount struct {
	Status library.Status
	Label  string
	Count  int
}

type entry struct {
	library.Outcome
	Label string
	Rows  []DiffRow
}

type templateData struct {
	Document
	Counts   []statusCount
	Total    int
	Findings int
	Duration string
	Entries  []entry
}

func buildTemplateData(doc Document) templateData {
	data := templateData{
		Document: doc,
		Total:    doc.Summary.Total(),
		Findings: doc.Summary.Findings(),
		Duration: "n/a",
	}
	if !doc.StartedAt.IsZero() && !doc.CompletedAt.IsZero() {
		data.Duration = formatDuration(doc.CompletedAt.Sub(doc.StartedAt))
	}
	for _, s := range library.AllStatuses {
		data.Counts = append(data.Counts, statusCount{Status: s, Label: StatusLabel(s), Count: doc.Summary[s]})
	}
	for _, o := range doc.Outcomes {
		e := entry{Outcome: o, Label: StatusLabel(o.Status)}
		if o.Status.Modified() {
			e.Rows = SideBySide(o.Diff, diffContext)
		}
		data.Entries = append(data.Entries, e)
	}
	return data
}

// SideBySide lays segments out as paired rows. Unchanged runs longer than
// twice the context are folded into a single skip row.
func SideBySide(segments []library.DiffSegment, context int) []DiffRow {
	var rows []DiffRow
	last := len(segments) - 1
	for i, seg := range segments {
		switch seg.Kind {
		case library.DiffEqual:
			rows = append(rows, equalRows(seg, context, i > 0, i < last)...)
		case library.DiffInsert:
			for k, line := range seg.ToLines {
				rows = append(rows, DiffRow{Kind: RowInsert, ToLine: seg.ToStart + k + 1, To: trimEOL(line)})
			}
		case library.DiffDelete:
			for k, line := range seg.FromLines {
				rows = append(rows, DiffRow{Kind: RowDelete, FromLine: seg.FromStart + k + 1, From: trimEOL(line)})
			}
		case library.DiffReplace:
			n := max(len(seg.FromLines), len(seg.ToLines))
			for k := 0; k < n; k++ {
				row := DiffRow{Kind: RowReplace}
				if k < len(seg.FromLines) {
					row.FromLine = seg.FromStart + k + 1
					row.From = trimEOL(seg.FromLines[k])
				}
				if k < len(seg.ToLines) {
					row.ToLine = seg.ToStart + k + 1
					row.To = trimEOL(seg.ToLines[k])
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// equalRows keeps context lines after a preceding change (head) and before a
// following change (tail), folding the rest.
func equalRows(seg library.DiffSegment, context int, head, tail bool) []DiffRow {
	lines := seg.FromLines
	n := len(lines)
	keep := make([]bool, n)
	for k := 0; k < n; k++ {
		if (head && k < context) || (tail && k >= n-context) {
			keep[k] = true
		}
	}

	var rows []DiffRow
	skipped := 0
	flush := func() {
		if skipped > 0 {
			rows = append(rows, DiffRow{Kind: RowSkip, Skipped: skipped})
			skipped = 0
		}
	}
	for k, line := range lines {
		if !keep[k] {
			skipped++
			continue
		}
		flush()
		rows = append(rows, DiffRow{
			Kind:     RowEqual,
			FromLine: seg.FromStart + k + 1,
			ToLine:   seg.ToStart + k + 1,
			From:     trimEOL(line),
			To:       trimEOL(line),
		})
	}
	flush()
	return rows
}

package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
)

const (
	maxPDFEntries  = 200
	maxPDFDiffRows = 40
	pdfBreakY      = 260
)

func renderPDF(data templateData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s - page %d", data.RunID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "JavaScript Library Audit", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Run metadata
	pdf.SetFont("Arial", "", 10)
	line := func(format string, args ...any) {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf(format, args...)), "", 1, "", false, 0, "")
	}
	line("Run: %s (%s)", data.RunID, data.Status)
	line("Root: %s", data.Root)
	if data.Operator != "" {
		line("Operator: %s", data.Operator)
	}
	line("Started: %s", formatTimestamp(data.StartedAt))
	line("Completed: %s", formatTimestamp(data.CompletedAt))
	line("Duration: %s", data.Duration)
	line("Catalog: %s (similarity >= %.2f, %d workers)", data.Metadata.Registry, data.Metadata.Threshold, data.Metadata.Workers)
	if data.Checksum != "" {
		line("Results %s: %s", data.HashAlgorithm, data.Checksum)
	}
	pdf.Ln(4)

	// Summary
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, c := range data.Counts {
		pdf.CellFormat(70, 6, tr(c.Label), "1", 0, "", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", c.Count), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Total", "1", 0, "", false, 0, "")
	pdf.CellFormat(20, 6, fmt.Sprintf("%d", data.Total), "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	// Files
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Files", "", 1, "", false, 0, "")
	pdf.Ln(2)

	for i, e := range data.Entries {
		if i == maxPDFEntries {
			pdf.SetFont("Arial", "I", 9)
			line("... %d additional files omitted ...", len(data.Entries)-maxPDFEntries)
			break
		}
		if pdf.GetY() > pdfBreakY {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 10)
		r, g, b := statusColor(e.Status)
		pdf.SetFillColor(r, g, b)
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s - %s", e.Path, strings.ToUpper(e.Label))), "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		if e.Name != "" {
			line("Library: %s %s", e.Name, orNA(e.Version))
		}
		if e.LatestVersion != "" {
			line("Latest version: %s", e.LatestVersion)
		}
		if e.Status.Stale() && e.LatestURL != "" {
			line("Download: %s", e.LatestURL)
		}
		if e.ReferenceURL != "" {
			line("Reference: %s", e.ReferenceURL)
		}
		if e.License != "" {
			line("License: %s", e.License)
		}
		if e.Error != "" && e.Status == library.StatusError {
			pdf.SetFont("Arial", "I", 9)
			pdf.MultiCell(0, 5, tr("Error: "+e.Error), "", "", false)
		}
		if len(e.Rows) > 0 {
			writePDFDiff(pdf, tr, e.Rows)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writePDFDiff(pdf *gofpdf.Fpdf, tr func(string) string, rows []DiffRow) {
	pdf.SetFont("Courier", "", 7)
	shown := 0
	for _, row := range rows {
		if row.Kind == RowEqual {
			continue
		}
		if shown == maxPDFDiffRows {
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(0, 4, "... diff truncated, see the HTML or patch report ...", "", 1, "", false, 0, "")
			return
		}
		if pdf.GetY() > pdfBreakY+15 {
			pdf.AddPage()
			pdf.SetFont("Courier", "", 7)
		}
		switch row.Kind {
		case RowSkip:
			pdf.CellFormat(0, 4, fmt.Sprintf("@@ %d unchanged lines @@", row.Skipped), "", 1, "", false, 0, "")
			continue
		case RowDelete, RowReplace:
			if row.FromLine > 0 {
				pdf.SetTextColor(160, 0, 0)
				pdf.MultiCell(0, 4, tr(fmt.Sprintf("-%5d %s", row.FromLine, truncate(row.From, 160))), "", "", false)
			}
		}
		if row.ToLine > 0 {
			pdf.SetTextColor(0, 120, 0)
			pdf.MultiCell(0, 4, tr(fmt.Sprintf("+%5d %s", row.ToLine, truncate(row.To, 160))), "", "", false)
		}
		pdf.SetTextColor(0, 0, 0)
		shown++
	}
}

func statusColor(s library.Status) (int, int, int) {
	switch s {
	case library.StatusOK:
		return 220, 240, 220
	case library.StatusModified, library.StatusStaleAndModified:
		return 245, 210, 210
	case library.StatusStale:
		return 250, 235, 200
	case library.StatusError:
		return 235, 220, 245
	default:
		return 235, 235, 235
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

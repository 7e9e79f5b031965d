// Package report renders a completed audit run into its output formats.
package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"os"
	"slices"
	"strings"
	texttemplate "text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
	"github.com/khanhnv2901/jsaudit/internal/shared/security"
)

// Format is a report output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
	FormatPatch    Format = "patch"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatMarkdown, FormatHTML, FormatPDF, FormatPatch}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "markdown":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q (must be one of %s)", apperrors.ErrInvalidFormat, s, formatList())
	}
	return f, nil
}

// ParseFormats validates a list of format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	var out []Format
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := ParseFormat(part)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Filename is the file a format is written to inside the run directory.
func (f Format) Filename() string {
	return "report." + string(f)
}

const (
	htmlTemplatePath     = "templates/report.html"
	markdownTemplatePath = "templates/report.md"

	// diffContext is the number of unchanged lines shown around a change.
	diffContext = 3
)

//go:embed templates/report.html templates/report.md
var templateFS embed.FS

var (
	templateFuncs = map[string]any{
		"statusLabel":    StatusLabel,
		"formatTime":     formatTimestamp,
		"formatDuration": formatDuration,
		"trimEOL":        trimEOL,
		"inc":            func(i int) int { return i + 1 },
	}

	htmlReportTemplate = htmltemplate.Must(
		htmltemplate.New("report.html").Funcs(templateFuncs).ParseFS(templateFS, htmlTemplatePath),
	)
	markdownReportTemplate = texttemplate.Must(
		texttemplate.New("report.md").Funcs(templateFuncs).ParseFS(templateFS, markdownTemplatePath),
	)
)

// Document is the serializable view of a run.
type Document struct {
	RunID         string            `json:"run_id" yaml:"run_id"`
	Root          string            `json:"root" yaml:"root"`
	Operator      string            `json:"operator,omitempty" yaml:"operator,omitempty"`
	Status        string            `json:"status" yaml:"status"`
	StartedAt     time.Time         `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time         `json:"completed_at,omitzero" yaml:"completed_at,omitempty"`
	GeneratedAt   time.Time         `json:"generated_at" yaml:"generated_at"`
	Metadata      library.Metadata  `json:"metadata" yaml:"metadata"`
	Checksum      string            `json:"results_checksum,omitempty" yaml:"results_checksum,omitempty"`
	HashAlgorithm string            `json:"hash_algorithm,omitempty" yaml:"hash_algorithm,omitempty"`
	Summary       library.Summary   `json:"summary" yaml:"summary"`
	Outcomes      []library.Outcome `json:"outcomes" yaml:"outcomes"`
}

// FromRun builds the document of a completed run.
func FromRun(run *library.Run) Document {
	outcomes := run.Outcomes()
	return Document{
		RunID:       run.ID(),
		Root:        run.Root(),
		Operator:    run.Operator(),
		Status:      string(run.Status()),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
		GeneratedAt: time.Now().UTC(),
		Metadata:    run.Metadata(),
		Summary:     library.Summarize(outcomes),
		Outcomes:    outcomes,
	}
}

// Render produces the report bytes for f.
func Render(f Format, doc Document) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json report: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml report: %w", err)
		}
		return buf.Bytes(), nil
	case FormatMarkdown:
		return executeTemplate(markdownReportTemplate, buildTemplateData(doc))
	case FormatHTML:
		return executeTemplate(htmlReportTemplate, buildTemplateData(doc))
	case FormatPDF:
		return renderPDF(buildTemplateData(doc))
	case FormatPatch:
		return renderPatch(doc.Outcomes)
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidFormat, f)
	}
}

// Write renders f and stores it in dir under f.Filename().
func Write(dir string, f Format, doc Document) (string, error) {
	data, err := Render(f, doc)
	if err != nil {
		return "", err
	}
	path, err := security.ResolveWithin(dir, f.Filename())
	if err != nil {
		return "", fmt.Errorf("resolve report path: %w", err)
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("write %s report: %w", f, err)
	}
	return path, nil
}

type template interface {
	Name() string
	Execute(w io.Writer, data any) error
}

func executeTemplate(tmpl template, data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}

// StatusLabel is the human wording of a status.
func StatusLabel(s library.Status) string {
	switch s {
	case library.StatusOK:
		return "matches reference"
	case library.StatusModified:
		return "modified"
	case library.StatusStale:
		return "newer version available"
	case library.StatusStaleAndModified:
		return "modified, newer version available"
	case library.StatusUnidentified:
		return "no version found"
	case library.StatusError:
		return "could not be verified"
	default:
		return string(s)
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return d.Round(time.Millisecond).String()
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

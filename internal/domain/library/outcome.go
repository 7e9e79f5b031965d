package library

import "time"

// Status is the terminal classification of a scanned file.
type Status string

const (
	StatusUnidentified     Status = "unidentified"
	StatusOK               Status = "ok"
	StatusModified         Status = "modified"
	StatusStale            Status = "stale"
	StatusStaleAndModified Status = "stale_and_modified"
	StatusError            Status = "error"
)

// AllStatuses lists every status in report order.
var AllStatuses = []Status{
	StatusModified,
	StatusStaleAndModified,
	StatusStale,
	StatusError,
	StatusUnidentified,
	StatusOK,
}

// Modified reports whether the local copy differs from its reference.
func (s Status) Modified() bool {
	return s == StatusModified || s == StatusStaleAndModified
}

// Stale reports whether a newer release than the claimed one exists.
func (s Status) Stale() bool {
	return s == StatusStale || s == StatusStaleAndModified
}

func (s Status) String() string {
	return string(s)
}

// DiffKind labels a diff segment.
type DiffKind string

const (
	DiffEqual   DiffKind = "equal"
	DiffInsert  DiffKind = "insert"
	DiffDelete  DiffKind = "delete"
	DiffReplace DiffKind = "replace"
)

// DiffSegment is one contiguous block of a line diff between the reference
// artifact (from) and the local file (to). Starts are zero-based line offsets.
type DiffSegment struct {
	Kind      DiffKind `json:"kind" yaml:"kind"`
	FromStart int      `json:"from_start" yaml:"from_start"`
	ToStart   int      `json:"to_start" yaml:"to_start"`
	FromLines []string `json:"from_lines,omitempty" yaml:"from_lines,omitempty"`
	ToLines   []string `json:"to_lines,omitempty" yaml:"to_lines,omitempty"`
}

// Outcome is the terminal record for one discovered file. It is built once at
// the end of the file's pipeline and never modified afterwards.
type Outcome struct {
	Index         int           `json:"-" yaml:"-"`
	Path          string        `json:"path" yaml:"path"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Version       string        `json:"version,omitempty" yaml:"version,omitempty"`
	Status        Status        `json:"status" yaml:"status"`
	LatestVersion string        `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	LatestURL     string        `json:"latest_url,omitempty" yaml:"latest_url,omitempty"`
	ReferenceURL  string        `json:"reference_url,omitempty" yaml:"reference_url,omitempty"`
	Homepage      string        `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	License       string        `json:"license,omitempty" yaml:"license,omitempty"`
	Diff          []DiffSegment `json:"diff,omitempty" yaml:"diff,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration      time.Duration `json:"duration_ns,omitempty" yaml:"duration_ns,omitempty"`
}

// NewUnidentified builds the outcome for a candidate that never reached the catalog
// or whose catalog lookup was rejected.
func NewUnidentified(c Candidate) Outcome {
	return Outcome{
		Index:   c.Index,
		Path:    c.Path,
		Name:    c.Name,
		Version: c.Version,
		Status:  StatusUnidentified,
	}
}

// WithMatch returns a copy of o carrying the catalog metadata of m.
func (o Outcome) WithMatch(m *CatalogMatch) Outcome {
	if m == nil {
		return o
	}
	o.LatestVersion = m.LatestVersion
	o.LatestURL = m.LatestURL
	o.Homepage = m.Homepage
	o.License = m.License
	return o
}

// Summary counts outcomes per status.
type Summary map[Status]int

// Summarize counts the given outcomes per status.
func Summarize(outcomes []Outcome) Summary {
	s := make(Summary, len(AllStatuses))
	for _, st := range AllStatuses {
		s[st] = 0
	}
	for _, o := range outcomes {
		s[o.Status]++
	}
	return s
}

// Total returns the number of counted outcomes.
func (s Summary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Findings returns the number of outcomes that need attention.
func (s Summary) Findings() int {
	return s[StatusModified] + s[StatusStaleAndModified] + s[StatusStale] + s[StatusError]
}

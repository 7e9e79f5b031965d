// Package extractor guesses which library, and which version of it, a script
// file claims to be from its file name and the banner comments in its body.
package extractor

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

// maxBodyBytes bounds how much of a file body is read while looking for a banner.
const maxBodyBytes = 8 << 20

var nameRun = regexp.MustCompile(`[a-z\-_.]*[a-z]`)

// Extractor maps a file to a library.Candidate. It never fails: anything it
// cannot recognize is left empty.
type Extractor struct {
	headerLines int
	rules       []Rule
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithHeaderLines bounds the number of body lines searched for a version.
func WithHeaderLines(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.headerLines = n
		}
	}
}

// WithLogger sets the logger used for unreadable files.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules replaces the version rule cascade.
func WithRules(rules ...Rule) Option {
	return func(e *Extractor) {
		if len(rules) > 0 {
			e.rules = rules
		}
	}
}

// New creates an Extractor with the default rule cascade.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		headerLines: consts.DefaultHeaderLines,
		rules:       DefaultRules(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract guesses the library behind path. body is only read when no
// filename rule matches; it may be nil.
func (e *Extractor) Extract(path string, body io.Reader) library.Candidate {
	open := func() (io.ReadCloser, error) {
		if body == nil {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(body), nil
	}
	return e.extract(path, open)
}

// ExtractFile guesses the library behind the file at path, opening it only if
// the file name alone does not carry a version.
func (e *Extractor) ExtractFile(path string) library.Candidate {
	return e.extract(path, func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

func (e *Extractor) extract(path string, open func() (io.ReadCloser, error)) library.Candidate {
	c := library.Candidate{
		Path:     path,
		Name:     ExtractName(path),
		Minified: library.IsMinified(path),
	}

	in := &Input{
		Filename: strings.ToLower(filepath.Base(path)),
		lines: func() []string {
			return e.readHeader(path, open)
		},
	}
	c.Version = e.version(in)
	return c
}

func (e *Extractor) version(in *Input) string {
	for _, rule := range e.rules {
		if v := rule.Match(in); v != "" {
			return v
		}
	}
	return ""
}

// readHeader reads up to headerLines lines without any per-line length limit;
// minified files are often one very long line.
func (e *Extractor) readHeader(path string, open func() (io.ReadCloser, error)) []string {
	rc, err := open()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.logger.Debug("open file for version scan", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	defer rc.Close()

	reader := bufio.NewReader(io.LimitReader(rc, maxBodyBytes))
	lines := make([]string, 0, e.headerLines)
	for len(lines) < e.headerLines {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.logger.Debug("read file for version scan", zap.String("path", path), zap.Error(err))
			}
			break
		}
	}
	return lines
}

// ExtractName returns the longest run of lower-case letters, hyphens,
// underscores and dots in the file's base name that ends in a letter, after
// the extension and any minification marker are removed. Separators left at
// either edge are trimmed.
func ExtractName(path string) string {
	base := strings.ToLower(filepath.Base(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = library.StripMinMarker(stem)

	longest := ""
	for _, run := range nameRun.FindAllString(stem, -1) {
		run = strings.Trim(run, "-_.")
		if len(run) > len(longest) {
			longest = run
		}
	}
	return longest
}

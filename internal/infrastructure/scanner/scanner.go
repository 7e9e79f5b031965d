// Package scanner lists the script files below a project root.
package scanner

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

// InvalidRootError reports a scan root that is missing or not a directory.
type InvalidRootError struct {
	Root string
	Err  error
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid scan root %q: %v", e.Root, e.Err)
}

func (e *InvalidRootError) Unwrap() []error {
	return []error{apperrors.ErrInvalidRoot, e.Err}
}

// Scanner walks a directory tree lazily.
type Scanner struct {
	extensions []string
	skipDirs   []string
	logger     *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions sets the accepted file extensions, compared case-insensitively.
// A leading dot is added when missing.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		if len(exts) == 0 {
			return
		}
		s.extensions = s.extensions[:0]
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extensions = append(s.extensions, ext)
		}
	}
}

// WithSkipDirs excludes directories by base name, e.g. ".git".
func WithSkipDirs(names ...string) Option {
	return func(s *Scanner) {
		s.skipDirs = append(s.skipDirs, names...)
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner matching consts.DefaultExtensions unless configured otherwise.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		extensions: slices.Clone(consts.DefaultExtensions),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateRoot checks that root exists and is a directory.
func ValidateRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return &InvalidRootError{Root: root, Err: fs.ErrInvalid}
	}
	info, err := os.Stat(root)
	if err != nil {
		return &InvalidRootError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return &InvalidRootError{Root: root, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

// Files yields every matching regular file below root in lexical walk order.
// Unreadable entries are logged and skipped; the walk never fails midway.
func (s *Scanner) Files(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != root && slices.Contains(s.skipDirs, d.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !s.accepts(d.Name()) {
				return nil
			}
			if !yield(path) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

func (s *Scanner) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext != "" && slices.Contains(s.extensions, ext)
}

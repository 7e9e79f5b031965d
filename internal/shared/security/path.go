// Package security guards the paths the tool writes to.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPathEscape indicates the resolved path would escape the trusted root directory.
	ErrPathEscape = errors.New("path escapes base directory")
	// ErrInvalidSegment indicates a name that cannot be used as a single path element.
	ErrInvalidSegment = errors.New("invalid path segment")
)

// ResolveWithin joins elems under base and ensures the result never leaves
// base. The returned path is absolute.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	cleanBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	target := filepath.Join(append([]string{cleanBase}, elems...)...)
	rel, err := filepath.Rel(cleanBase, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}

	return target, nil
}

// ValidateSegment rejects identifiers that are stored as a directory or file
// name but would act as a path: empty, "." and "..", or anything with a separator.
func ValidateSegment(kind, id string) error {
	switch id {
	case "":
		return fmt.Errorf("%w: %s is required", ErrInvalidSegment, kind)
	case ".", "..":
		return fmt.Errorf("%w: %s %q is reserved", ErrInvalidSegment, kind, id)
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: %s %q must not contain path separators", ErrInvalidSegment, kind, id)
	}
	return nil
}

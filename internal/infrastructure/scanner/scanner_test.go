package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestFilesFiltersByExtension(t *testing.T) {
	root := writeTree(t,
		"js/jquery-3.4.1.min.js",
		"js/vendor/Select2.JS",
		"css/site.css",
		"index.html",
		"README",
	)

	got := rel(t, root, slices.Collect(New().Files(root)))
	assert.Equal(t, []string{"js/jquery-3.4.1.min.js", "js/vendor/Select2.JS"}, got)
}

func TestFilesCustomExtensionsAndSkipDirs(t *testing.T) {
	root := writeTree(t,
		"a.mjs",
		"b.js",
		"node_modules/c.js",
		"lib/d.cjs",
	)

	s := New(WithExtensions("mjs", ".CJS", ".js"), WithSkipDirs("node_modules"))
	got := rel(t, root, slices.Collect(s.Files(root)))
	assert.Equal(t, []string{"a.mjs", "b.js", "lib/d.cjs"}, got)
}

func TestFilesStopsEarly(t *testing.T) {
	root := writeTree(t, "a.js", "b.js", "c.js")

	var seen int
	for range New().Files(root) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestFilesEmptyDirectory(t *testing.T) {
	assert.Empty(t, slices.Collect(New().Files(t.TempDir())))
}

func TestValidateRoot(t *testing.T) {
	root := writeTree(t, "a.js")

	require.NoError(t, ValidateRoot(root))

	for _, bad := range []string{"", filepath.Join(root, "missing"), filepath.Join(root, "a.js")} {
		err := ValidateRoot(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidRoot), bad)
		var rootErr *InvalidRootError
		assert.True(t, errors.As(err, &rootErr))
	}
}

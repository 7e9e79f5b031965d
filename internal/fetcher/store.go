package fetcher

import (
	"fmt"
	"os"
	"path/filepath"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	"github.com/khanhnv2901/jsaudit/internal/shared/security"
)

// DirStore keeps reference copies under a directory as <name>-<version>-<file>.
type DirStore struct {
	Dir string
}

// Save writes content under the store directory, refusing names that would
// escape it.
func (s DirStore) Save(name, version, filename string, content []byte) error {
	if err := os.MkdirAll(s.Dir, consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}
	target, err := security.ResolveWithin(s.Dir, fmt.Sprintf("%s-%s-%s", name, version, filepath.Base(filename)))
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, content, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("write reference copy: %w", err)
	}
	return nil
}

package json

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

// DefaultHashAlgorithm seals stored evidence files.
const DefaultHashAlgorithm = "sha256"

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, sharedErrors.ErrInvalidHashAlgorithm
	}
}

// ComputeHash returns the hex digest of the file at path.
func ComputeHash(path, algorithm string) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Seal writes a "<digest>  <name>" companion next to path, named
// path + "." + algorithm, in the format sha256sum -c understands.
func Seal(path, algorithm string) (string, error) {
	digest, err := ComputeHash(path, algorithm)
	if err != nil {
		return "", err
	}
	content := fmt.Sprintf("%s  %s\n", digest, filepath.Base(path))
	if err := os.WriteFile(path+"."+algorithm, []byte(content), consts.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("failed to write hash file: %w", err)
	}
	return digest, nil
}

// VerifySeal checks path against its companion checksum. A file without any
// companion is reported as unsealed with an empty digest and no error.
func VerifySeal(path string) (digest, algorithm string, err error) {
	for _, alg := range []string{"sha256", "sha512"} {
		content, readErr := os.ReadFile(path + "." + alg)
		if readErr != nil {
			continue
		}
		fields := strings.Fields(string(content))
		if len(fields) == 0 {
			return "", alg, fmt.Errorf("%w: empty %s file", sharedErrors.ErrIntegrityMismatch, alg)
		}

		actual, err := ComputeHash(path, alg)
		if err != nil {
			return "", alg, err
		}
		if !strings.EqualFold(fields[0], actual) {
			return actual, alg, fmt.Errorf("%w: %s", sharedErrors.ErrIntegrityMismatch, filepath.Base(path))
		}
		return actual, alg, nil
	}
	return "", "", nil
}

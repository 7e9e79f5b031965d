package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultWorkers is the size of the candidate worker pool.
	DefaultWorkers = 4
	// DefaultHTTPTimeout bounds a single catalog query or reference download.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultHeaderLines caps how many lines of a file body are searched for a version banner.
	DefaultHeaderLines = 100
	// MaxReferenceBytes caps the size of a downloaded reference artifact.
	MaxReferenceBytes = 32 << 20
	// MaxCatalogResponseBytes caps the size of a catalog search response.
	MaxCatalogResponseBytes = 4 << 20
)

const (
	// DefaultRegistryURL is the cdnjs library search endpoint.
	DefaultRegistryURL = "https://api.cdnjs.com/libraries"
	// DefaultRegistryQueryParam is the query parameter carrying the searched name.
	DefaultRegistryQueryParam = "search"
	// DefaultSimilarityThreshold is the minimum name similarity for a catalog match to be accepted.
	DefaultSimilarityThreshold = 0.9
	// DefaultUserAgent identifies outbound requests.
	DefaultUserAgent = "jsaudit/1.0"
)

// DefaultExtensions lists the file extensions picked up by the directory scanner.
var DefaultExtensions = []string{".js"}

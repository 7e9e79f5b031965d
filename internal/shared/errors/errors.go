package errors

import "errors"

// Domain errors
var (
	// Pipeline errors. None of these abort a run; each maps to a per-file status.
	ErrExtractionMiss    = errors.New("no library name or version found")
	ErrCatalogMiss       = errors.New("no catalog match")
	ErrFetchFailure      = errors.New("reference artifact unavailable")
	ErrReferenceNotFound = errors.New("reference artifact not found")
	ErrDecodeFailure     = errors.New("file is not valid text")

	// CLI errors
	ErrInvalidRoot   = errors.New("invalid root directory")
	ErrInvalidFormat = errors.New("unsupported report format")
	ErrRunNotFound   = errors.New("audit run not found")

	// Evidence integrity errors
	ErrIntegrityMismatch    = errors.New("stored file does not match its checksum")
	ErrInvalidHashAlgorithm = errors.New("unsupported hash algorithm")

	// Run lifecycle errors
	ErrRunAlreadyStarted = errors.New("audit run already started")
	ErrRunNotStarted     = errors.New("audit run not started")
)

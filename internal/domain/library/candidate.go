// Package library holds the data model shared by the audit pipeline: the
// candidates discovered on disk, the catalog entries they match and the
// per-file outcomes handed to reporting.
package library

// Candidate identifies one discovered file and the library it claims to be.
type Candidate struct {
	// Index is the discovery order of the file within a scan.
	Index int
	// Path is the filesystem location; unique within a scan.
	Path string
	// Name is the lower-cased, normalized library name guess.
	Name string
	// Version is the guessed MAJOR.MINOR[.PATCH] version.
	Version string
	// Minified reports whether the filename carries a minification marker.
	Minified bool
}

// Identified reports whether the candidate carries both a name and a version.
// Only identified candidates are ever looked up in the catalog.
func (c Candidate) Identified() bool {
	return c.Name != "" && c.Version != ""
}

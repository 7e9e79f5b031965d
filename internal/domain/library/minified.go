package library

import (
	"path"
	"regexp"
	"strings"
)

// minMarker matches a minification marker token such as ".min." or "-min"
// at the end of a name.
var minMarker = regexp.MustCompile(`[.\-_]min([.\-_]|$)`)

// IsMinified reports whether a file name carries a minification marker.
func IsMinified(filename string) bool {
	return minMarker.MatchString(strings.ToLower(path.Base(filename)))
}

// StripMinMarker removes every minification marker from name, keeping the
// separator that followed it.
func StripMinMarker(name string) string {
	for minMarker.MatchString(name) {
		name = minMarker.ReplaceAllString(name, "$1")
	}
	return name
}

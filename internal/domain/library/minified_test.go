package library

import "testing"

func TestIsMinified(t *testing.T) {
	tests := map[string]bool{
		"jquery.min.js":          true,
		"jquery-min.js":          true,
		"vendor/jquery_min.js":   true,
		"JQUERY.MIN.JS":          true,
		"jquery.js":              false,
		"admin.js":               false,
		"minimist.js":            false,
		"lib/minified/jquery.js": false,
	}
	for name, want := range tests {
		if got := IsMinified(name); got != want {
			t.Errorf("IsMinified(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestStripMinMarker(t *testing.T) {
	tests := map[string]string{
		"jquery.min.js":     "jquery.js",
		"jquery.min":        "jquery",
		"foo-min-1.0":       "foo-1.0",
		"bootstrap.min.min": "bootstrap",
		"admin":             "admin",
	}
	for in, want := range tests {
		if got := StripMinMarker(in); got != want {
			t.Errorf("StripMinMarker(%q) = %q, want %q", in, got, want)
		}
	}
}

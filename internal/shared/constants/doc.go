// Package constants centralizes configuration defaults shared across the CLI.
//
// File permissions, pool sizes, network caps and catalog defaults live here so
// cmd/ and internal/ can reference them without introducing import cycles.
package constants

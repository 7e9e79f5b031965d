package cmd

import (
	"errors"
	"fmt"
)

// Exit codes returned by Execute.
const (
	exitFailure  = 1
	exitFindings = 2
)

// RunNotFoundError indicates a stored run lookup failure.
type RunNotFoundError struct {
	ID string
}

func (e *RunNotFoundError) Error() string {
	if e.ID == "" {
		return "no stored runs found"
	}
	return fmt.Sprintf("run %s not found", e.ID)
}

// FindingsError signals that a completed scan reported modified or stale
// libraries and the caller asked for a failing exit status.
type FindingsError struct {
	RunID    string
	Findings int
}

func (e *FindingsError) Error() string {
	noun := "findings"
	if e.Findings == 1 {
		noun = "finding"
	}
	return fmt.Sprintf("run %s reported %d %s", e.RunID, e.Findings, noun)
}

func exitCode(err error) int {
	var findings *FindingsError
	if errors.As(err, &findings) {
		return exitFindings
	}
	return exitFailure
}

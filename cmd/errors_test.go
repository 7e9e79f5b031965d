package cmd

import (
	"errors"
	"fmt"
	"testing"
)

func TestRunNotFoundError(t *testing.T) {
	err := &RunNotFoundError{ID: "123"}
	if err.Error() != "run 123 not found" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}

	err = &RunNotFoundError{}
	if err.Error() != "no stored runs found" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestFindingsError(t *testing.T) {
	err := &FindingsError{RunID: "abc", Findings: 1}
	want := "run abc reported 1 finding"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}

	err = &FindingsError{RunID: "abc", Findings: 3}
	want = "run abc reported 3 findings"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Fatalf("expected %d, got %d", exitFailure, got)
	}
	wrapped := fmt.Errorf("scan: %w", &FindingsError{RunID: "x", Findings: 2})
	if got := exitCode(wrapped); got != exitFindings {
		t.Fatalf("expected %d, got %d", exitFindings, got)
	}
}

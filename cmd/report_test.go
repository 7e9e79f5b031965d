package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanhnv2901/jsaudit/internal/infrastructure/report"
)

func TestReportGenerateFromStoredRun(t *testing.T) {
	disableColor(t)
	srv := newCatalogServer(t, nil)

	appCtx := setupTestAppContext(t)
	appCtx.Config.Registry.URL = srv.URL + "/libraries"
	appCtx.Config.Scan.Formats = nil

	scan, _ := newTestCommand(t, appCtx)
	if err := runScan(scan, []string{sampleProject(t)}); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	cmd, out := newTestCommand(t, appCtx)
	cmd.Flags().String("run", latestRunID, "")
	cmd.Flags().StringSlice("format", nil, "")
	if err := cmd.Flags().Set("format", "md,yaml"); err != nil {
		t.Fatalf("set format: %v", err)
	}

	if err := runReportGenerate(cmd, nil); err != nil {
		t.Fatalf("runReportGenerate: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "Total files: 3") || !strings.Contains(output, "Findings: 2") {
		t.Fatalf("unexpected output:\n%s", output)
	}

	services, err := newServices(appCtx)
	if err != nil {
		t.Fatalf("newServices: %v", err)
	}
	run, err := loadRun(cmd, services, latestRunID)
	if err != nil {
		t.Fatalf("loadRun: %v", err)
	}
	dir, _ := services.RunRepo.Dir(run.ID())
	for _, f := range []report.Format{report.FormatMarkdown, report.FormatYAML} {
		if _, err := os.Stat(filepath.Join(dir, f.Filename())); err != nil {
			t.Errorf("expected %s: %v", f.Filename(), err)
		}
	}
}

func TestReportGenerateUnknownRun(t *testing.T) {
	appCtx := setupTestAppContext(t)

	cmd, _ := newTestCommand(t, appCtx)
	cmd.Flags().String("run", "run-missing", "")
	cmd.Flags().StringSlice("format", []string{"json"}, "")

	err := runReportGenerate(cmd, nil)
	var notFound *RunNotFoundError
	if !errors.As(err, &notFound) || notFound.ID != "run-missing" {
		t.Fatalf("expected RunNotFoundError for run-missing, got %v", err)
	}

	cmd, _ = newTestCommand(t, appCtx)
	cmd.Flags().String("run", latestRunID, "")
	cmd.Flags().StringSlice("format", []string{"json"}, "")
	err = runReportGenerate(cmd, nil)
	if !errors.As(err, &notFound) || notFound.Error() != "no stored runs found" {
		t.Fatalf("expected RunNotFoundError for latest, got %v", err)
	}
}

func TestReportGenerateDetectsTampering(t *testing.T) {
	srv := newCatalogServer(t, nil)
	appCtx := setupTestAppContext(t)
	appCtx.Config.Registry.URL = srv.URL + "/libraries"
	appCtx.Config.Scan.Formats = nil

	scan, _ := newTestCommand(t, appCtx)
	if err := runScan(scan, []string{sampleProject(t)}); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	services, err := newServices(appCtx)
	if err != nil {
		t.Fatalf("newServices: %v", err)
	}
	runs, err := services.RunRepo.FindAll(scan.Context())
	if err != nil || len(runs) != 1 {
		t.Fatalf("FindAll = %d runs, %v", len(runs), err)
	}
	path, _ := services.RunRepo.Path(runs[0].ID())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	tampered := strings.Replace(string(data), "stale_and_modified", "ok", 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("write results: %v", err)
	}

	cmd, _ := newTestCommand(t, appCtx)
	cmd.Flags().String("run", runs[0].ID(), "")
	cmd.Flags().StringSlice("format", []string{"json"}, "")
	if err := runReportGenerate(cmd, nil); err == nil {
		t.Fatal("expected integrity error for edited results")
	}
}

func TestReportList(t *testing.T) {
	disableColor(t)
	srv := newCatalogServer(t, nil)

	appCtx := setupTestAppContext(t)
	appCtx.Config.Registry.URL = srv.URL + "/libraries"
	appCtx.Config.Scan.Formats = nil

	cmd, out := newTestCommand(t, appCtx)
	if err := runReportList(cmd, nil); err != nil {
		t.Fatalf("runReportList: %v", err)
	}
	if !strings.Contains(out.String(), "No stored runs.") {
		t.Fatalf("unexpected empty listing: %q", out.String())
	}

	scan, _ := newTestCommand(t, appCtx)
	if err := runScan(scan, []string{sampleProject(t)}); err != nil {
		t.Fatalf("runScan: %v", err)
	}

	cmd, out = newTestCommand(t, appCtx)
	if err := runReportList(cmd, nil); err != nil {
		t.Fatalf("runReportList: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one run, got:\n%s", out.String())
	}
	if !strings.HasPrefix(lines[0], "RUN ID") || !strings.Contains(lines[1], "completed") {
		t.Fatalf("unexpected listing:\n%s", out.String())
	}
}

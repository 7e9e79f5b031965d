package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/jsaudit/internal/application"
	auditapp "github.com/khanhnv2901/jsaudit/internal/application/audit"
	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/metrics"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/report"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan <root>",
	Short: "Audit the JavaScript libraries vendored under a directory",
	Long: `Walk <root>, identify each library file by name and version, look it up on the
catalog and compare it byte for byte with the published copy of the same version.

Results are stored under the results directory in <run id>/results.json together
with a sha256 companion file, followed by one report per requested format.`,
	Example: `  jsaudit scan ./public
  jsaudit scan ./static --format html,patch --workers 8 --rate-limit 5
  jsaudit scan . --fail-on-findings --metrics-file /var/lib/node_exporter/jsaudit.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	flags := scanCmd.Flags()
	flags.IntVarP(&cliConfig.Scan.Workers, "workers", "w", cliConfig.Scan.Workers, "number of files audited concurrently")
	flags.Float64Var(&cliConfig.Scan.RateLimit, "rate-limit", cliConfig.Scan.RateLimit, "outbound requests per second across catalog and downloads (0 = unlimited)")
	flags.IntVar(&cliConfig.Scan.TimeoutSecs, "timeout", cliConfig.Scan.TimeoutSecs, "per-request timeout in seconds")
	flags.StringSliceVar(&cliConfig.Scan.Extensions, "ext", cliConfig.Scan.Extensions, "file extensions to audit")
	flags.StringSliceVar(&cliConfig.Scan.SkipDirs, "skip-dir", cliConfig.Scan.SkipDirs, "directory names that are not descended into")
	flags.IntVar(&cliConfig.Scan.HeaderLines, "header-lines", cliConfig.Scan.HeaderLines, "lines of each file searched for a version banner")
	flags.BoolVar(&cliConfig.Scan.KeepReferences, "keep-references", cliConfig.Scan.KeepReferences, "keep downloaded reference copies next to the run results")
	flags.StringVar(&cliConfig.Registry.URL, "registry-url", cliConfig.Registry.URL, "catalog search endpoint")
	flags.Float64Var(&cliConfig.Registry.Threshold, "threshold", cliConfig.Registry.Threshold, "minimum name similarity for a catalog match")
	flags.StringSliceVarP(&cliConfig.Scan.Formats, "format", "f", cliConfig.Scan.Formats, "report formats: json, yaml, md, html, pdf, patch")
	flags.BoolVar(&cliConfig.Scan.TelemetryEnabled, "telemetry", cliConfig.Scan.TelemetryEnabled, "append a summary line to telemetry.jsonl")
	flags.StringVar(&cliConfig.Scan.MetricsFile, "metrics-file", cliConfig.Scan.MetricsFile, "write Prometheus metrics to this textfile")
	flags.BoolVar(&cliConfig.Scan.ProgressEnabled, "progress", cliConfig.Scan.ProgressEnabled, "show a live progress line")
	flags.BoolVar(&cliConfig.Scan.FailOnFindings, "fail-on-findings", cliConfig.Scan.FailOnFindings, "exit with status 2 when modified, stale or failed files are found")
}

func runScan(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	if appCtx == nil {
		return errors.New("application context not initialized")
	}
	cfg := appCtx.Config
	out := cmd.OutOrStdout()

	root := args[0]
	if err := scanner.ValidateRoot(root); err != nil {
		return err
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	formats, err := report.ParseFormats(cfg.Scan.Formats)
	if err != nil {
		return err
	}

	services, err := newServices(appCtx)
	if err != nil {
		return err
	}

	run := library.NewRun(root, appCtx.Operator)
	run.SetMetadata(library.Metadata{
		Workers:   services.Options().Workers,
		Registry:  cfg.Registry.URL,
		Threshold: cfg.Registry.Threshold,
	})
	if err := run.Start(); err != nil {
		return err
	}

	recorder := metrics.NewRecorder(metrics.WithConstLabels(prometheus.Labels{"run_id": run.ID()}))
	opts := []auditapp.Option{auditapp.WithRecorder(recorder)}
	if cfg.Scan.ProgressEnabled {
		printer := newProgressPrinter("scan")
		printer.out = out
		opts = append(opts, auditapp.WithProgress(printer))
	}
	auditor, err := services.NewAuditor(run.ID(), opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "%s Scanning %s (run %s)\n", colorInfo("→"), root, run.ID())
	started := time.Now()
	result, auditErr := auditor.Audit(ctx, services.Scanner.Files(root))
	elapsed := time.Since(started)
	recorder.ObserveRun(elapsed)

	cancelled := auditErr != nil
	if cancelled && !errors.Is(auditErr, context.Canceled) && !errors.Is(auditErr, context.DeadlineExceeded) {
		return fmt.Errorf("audit %s: %w", root, auditErr)
	}
	if err := run.Complete(result.Outcomes, cancelled); err != nil {
		return err
	}

	// Persisting must not be interrupted by the signal that cancelled the scan.
	saveCtx := context.WithoutCancel(ctx)
	resultsPath, err := services.RunRepo.Save(saveCtx, run)
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	auditPath, err := services.AuditLog.Write(saveCtx, run)
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	paths, err := writeReports(saveCtx, services, run, formats)
	if err != nil {
		return err
	}

	if cfg.Scan.TelemetryEnabled {
		if err := recordTelemetry(appCtx, run.ID(), cmd.Name(), result.Summary, elapsed); err != nil {
			appCtx.Logger.Warnw("failed to record telemetry", "error", err)
		}
	}
	if cfg.Scan.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Scan.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	printScanSummary(out, run, result.Summary, elapsed)
	fmt.Fprintf(out, "Results: %s\n", resultsPath)
	fmt.Fprintf(out, "Audit log: %s\n", auditPath)
	for _, p := range paths {
		fmt.Fprintf(out, "Report: %s\n", p)
	}

	if cancelled {
		fmt.Fprintln(out, colorWarn("Scan interrupted; unfinished files were left out of the results."))
		return auditErr
	}
	if cfg.Scan.FailOnFindings {
		if n := result.Summary.Findings(); n > 0 {
			return &FindingsError{RunID: run.ID(), Findings: n}
		}
	}
	return nil
}

// newServices builds the application container from the effective CLI configuration.
func newServices(appCtx *AppContext) (*application.Container, error) {
	cfg := appCtx.Config
	logger := zap.NewNop()
	if appCtx.Logger != nil {
		logger = appCtx.Logger.Desugar()
	}
	services, err := application.NewContainer(application.Options{
		ResultsDir:     appCtx.ResultsDir,
		Workers:        cfg.Scan.Workers,
		RateLimit:      cfg.Scan.RateLimit,
		Timeout:        time.Duration(cfg.Scan.TimeoutSecs) * time.Second,
		HeaderLines:    cfg.Scan.HeaderLines,
		Extensions:     cfg.Scan.Extensions,
		SkipDirs:       cfg.Scan.SkipDirs,
		RegistryURL:    cfg.Registry.URL,
		QueryParam:     cfg.Registry.QueryParam,
		UserAgent:      cfg.Registry.UserAgent,
		Threshold:      cfg.Registry.Threshold,
		KeepReferences: cfg.Scan.KeepReferences,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return services, nil
}

// writeReports renders each format into the run directory.
func writeReports(ctx context.Context, services *application.Container, run *library.Run, formats []report.Format) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	dir, err := services.RunRepo.Dir(run.ID())
	if err != nil {
		return nil, err
	}
	doc := report.FromRun(run)
	doc.Checksum, doc.HashAlgorithm, err = services.RunRepo.Checksum(ctx, run.ID())
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		p, err := report.Write(dir, f, doc)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func printScanSummary(w io.Writer, run *library.Run, summary library.Summary, elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s %d files audited in %s\n", colorSuccess("✓"), summary.Total(), elapsed.Round(time.Millisecond))
	for _, status := range library.AllStatuses {
		name := status.String()
		fmt.Fprintf(w, "  %s%s %d\n", formatStatusWithColor(name), strings.Repeat(" ", max(0, 20-len(name))), summary[status])
	}

	for _, o := range run.Outcomes() {
		if !o.Status.Modified() && !o.Status.Stale() && o.Status != library.StatusError {
			continue
		}
		line := fmt.Sprintf("  %s %s %s", formatStatusWithColor(o.Status.String()), o.Path, o.Version)
		if o.Status.Stale() {
			line += fmt.Sprintf(" (latest %s)", o.LatestVersion)
		}
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Fprintln(w, line)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

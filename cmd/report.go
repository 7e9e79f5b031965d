package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/jsaudit/internal/application"
	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/report"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

const latestRunID = "latest"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Re-render reports from stored scan results",
	Long: `Render one or more report formats from the results.json of a stored run.
The stored results are verified against their checksum before rendering.`,
	Example: `  jsaudit report --run latest --format html
  jsaudit report --run run-20260101120000-000042 --format md,pdf,patch
  jsaudit report list`,
	Args: cobra.NoArgs,
	RunE: runReportGenerate,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

func init() {
	reportCmd.Flags().String("run", latestRunID, "run id to render, or \"latest\"")
	reportCmd.Flags().StringSliceP("format", "f", []string{string(report.FormatHTML)}, "report formats: json, yaml, md, html, pdf, patch")

	reportCmd.AddCommand(reportListCmd)
}

func runReportGenerate(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	if appCtx == nil {
		return errors.New("application context not initialized")
	}

	id, _ := cmd.Flags().GetString("run")
	names, _ := cmd.Flags().GetStringSlice("format")

	formats, err := report.ParseFormats(names)
	if err != nil {
		return err
	}

	services, err := newServices(appCtx)
	if err != nil {
		return err
	}

	run, err := loadRun(cmd, services, id)
	if err != nil {
		return err
	}

	paths, err := writeReports(commandContext(cmd), services, run, formats)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	summary := run.Summary()
	for i, p := range paths {
		fmt.Fprintf(out, "Report generated: %s\n", p)
		fmt.Fprintf(out, "Format: %s\n", formats[i])
	}
	fmt.Fprintf(out, "Total files: %d\n", summary.Total())
	fmt.Fprintf(out, "Findings: %d\n", summary.Findings())
	return nil
}

func loadRun(cmd *cobra.Command, services *application.Container, id string) (*library.Run, error) {
	ctx := commandContext(cmd)
	var (
		run *library.Run
		err error
	)
	if id == "" || id == latestRunID {
		run, err = services.RunRepo.Latest(ctx)
		id = ""
	} else {
		run, err = services.RunRepo.FindByID(ctx, id)
	}
	if errors.Is(err, apperrors.ErrRunNotFound) {
		return nil, &RunNotFoundError{ID: id}
	}
	return run, err
}

func runReportList(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	if appCtx == nil {
		return errors.New("application context not initialized")
	}

	services, err := newServices(appCtx)
	if err != nil {
		return err
	}

	runs, err := services.RunRepo.FindAll(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored runs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tSTATUS\tFILES\tFINDINGS\tROOT")
	for _, run := range runs {
		summary := run.Summary()
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID(),
			run.StartedAt().Format(time.RFC3339),
			run.Status(),
			summary.Total(),
			summary.Findings(),
			run.Root(),
		)
	}
	return w.Flush()
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

const telemetryFilename = "telemetry.jsonl"

type telemetryRecord struct {
	Timestamp          time.Time      `json:"timestamp"`
	Command            string         `json:"command"`
	RunID              string         `json:"run_id"`
	FileCount          int            `json:"file_count"`
	IdentifiedCount    int            `json:"identified_count"`
	FindingCount       int            `json:"finding_count"`
	ErrorCount         int            `json:"error_count"`
	StatusCounts       map[string]int `json:"status_counts"`
	DurationSeconds    float64        `json:"duration_seconds"`
	AvgDurationPerFile float64        `json:"avg_duration_per_file"`
}

// recordTelemetry appends one line per run to telemetry.jsonl in the results directory.
func recordTelemetry(appCtx *AppContext, runID string, command string, summary library.Summary, duration time.Duration) error {
	total := summary.Total()

	avgDuration := 0.0
	if total > 0 {
		avgDuration = duration.Seconds() / float64(total)
	}

	counts := make(map[string]int, len(summary))
	for status, n := range summary {
		counts[status.String()] = n
	}

	record := telemetryRecord{
		Timestamp:          time.Now().UTC(),
		Command:            command,
		RunID:              runID,
		FileCount:          total,
		IdentifiedCount:    total - summary[library.StatusUnidentified],
		FindingCount:       summary.Findings() - summary[library.StatusError],
		ErrorCount:         summary[library.StatusError],
		StatusCounts:       counts,
		DurationSeconds:    duration.Seconds(),
		AvgDurationPerFile: avgDuration,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath := filepath.Join(appCtx.ResultsDir, telemetryFilename)
	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}

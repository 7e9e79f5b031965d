package json

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
	"github.com/khanhnv2901/jsaudit/internal/shared/security"
)

// AuditFilename is the per-run evidence log.
const AuditFilename = "audit.csv"

var auditHeader = []string{
	"timestamp",
	"run_id",
	"operator",
	"path",
	"name",
	"version",
	"status",
	"latest_version",
	"reference_url",
	"error",
	"duration_seconds",
}

// AuditEntry is one row of the evidence log.
type AuditEntry struct {
	Timestamp       time.Time
	RunID           string
	Operator        string
	Path            string
	Name            string
	Version         string
	Status          library.Status
	LatestVersion   string
	ReferenceURL    string
	Error           string
	DurationSeconds float64
}

// AuditLog writes one CSV row per audited file, sealed with a checksum.
type AuditLog struct {
	repo *RunRepository
}

// NewAuditLog stores logs next to the results kept by repo.
func NewAuditLog(repo *RunRepository) *AuditLog {
	return &AuditLog{repo: repo}
}

// Write records every outcome of run and seals the file.
func (l *AuditLog) Write(ctx context.Context, run *library.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := l.repo.Dir(run.ID())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	filePath, err := security.ResolveWithin(dir, AuditFilename)
	if err != nil {
		return "", err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, consts.DefaultFilePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create audit file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(auditHeader); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write header: %w", err)
	}

	stamp := run.CompletedAt()
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	for _, o := range run.Outcomes() {
		record := []string{
			stamp.Format(time.RFC3339),
			run.ID(),
			run.Operator(),
			o.Path,
			o.Name,
			o.Version,
			string(o.Status),
			o.LatestVersion,
			o.ReferenceURL,
			o.Error,
			fmt.Sprintf("%.3f", o.Duration.Seconds()),
		}
		if err := writer.Write(record); err != nil {
			file.Close()
			return "", fmt.Errorf("failed to write entry: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to flush audit file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close audit file: %w", err)
	}

	if _, err := Seal(filePath, DefaultHashAlgorithm); err != nil {
		return "", err
	}
	return filePath, nil
}

// Read loads the evidence log of run id after checking its seal.
func (l *AuditLog) Read(ctx context.Context, id string) ([]AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := l.repo.Dir(id)
	if err != nil {
		return nil, err
	}
	filePath, err := security.ResolveWithin(dir, AuditFilename)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, _, err := VerifySeal(filePath); err != nil {
		return nil, err
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(auditHeader)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var entries []AuditEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		timestamp, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		duration, _ := strconv.ParseFloat(record[10], 64)

		entries = append(entries, AuditEntry{
			Timestamp:       timestamp,
			RunID:           record[1],
			Operator:        record[2],
			Path:            record[3],
			Name:            record[4],
			Version:         record[5],
			Status:          library.Status(record[6]),
			LatestVersion:   record[7],
			ReferenceURL:    record[8],
			Error:           record[9],
			DurationSeconds: duration,
		})
	}
	return entries, nil
}

package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
	"github.com/khanhnv2901/jsaudit/internal/shared/security"
)

// ResultsFilename is the name of the stored run inside its directory.
const ResultsFilename = "results.json"

// runDTO is the data transfer object for JSON serialization
type runDTO struct {
	ID          string            `json:"id"`
	Root        string            `json:"root"`
	Operator    string            `json:"operator"`
	StartedAt   string            `json:"started_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
	Status      string            `json:"status"`
	Metadata    library.Metadata  `json:"metadata"`
	Summary     library.Summary   `json:"summary"`
	Outcomes    []library.Outcome `json:"outcomes"`
}

// RunRepository stores each run as <resultsDir>/<run id>/results.json, sealed
// with a checksum companion.
type RunRepository struct {
	resultsDir string
	mu         sync.RWMutex
}

// NewRunRepository creates a new JSON-based run repository
func NewRunRepository(resultsDir string) (*RunRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &RunRepository{
		resultsDir: resultsDir,
	}, nil
}

// Dir returns the directory holding the files of run id.
func (r *RunRepository) Dir(id string) (string, error) {
	if err := security.ValidateSegment("run id", id); err != nil {
		return "", err
	}
	return security.ResolveWithin(r.resultsDir, id)
}

// Path returns the results file of run id.
func (r *RunRepository) Path(id string) (string, error) {
	dir, err := r.Dir(id)
	if err != nil {
		return "", err
	}
	return security.ResolveWithin(dir, ResultsFilename)
}

// Save persists a run with all its outcomes and returns the written path.
func (r *RunRepository) Save(ctx context.Context, run *library.Run) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.Dir(run.ID())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	filePath, err := security.ResolveWithin(dir, ResultsFilename)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(toDTO(run), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(filePath, data, consts.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	if _, err := Seal(filePath, DefaultHashAlgorithm); err != nil {
		return "", err
	}
	return filePath, nil
}

// Checksum verifies the stored results of run id against their companion
// checksum and returns the digest.
func (r *RunRepository) Checksum(ctx context.Context, id string) (digest, algorithm string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.Path(id)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
	}
	return VerifySeal(filePath)
}

// FindByID retrieves a run by its ID. A run whose results no longer match their
// checksum is refused with ErrIntegrityMismatch.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*library.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.Path(id)
	if err != nil {
		return nil, err
	}
	run, err := loadFromFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if _, _, err := VerifySeal(filePath); err != nil {
		return nil, err
	}
	return run, nil
}

// Latest returns the most recently started run.
func (r *RunRepository) Latest(ctx context.Context) (*library.Run, error) {
	runs, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sharedErrors.ErrRunNotFound
	}
	return runs[len(runs)-1], nil
}

// FindAll retrieves all stored runs ordered by start time. Directories without
// a readable results file are skipped.
func (r *RunRepository) FindAll(ctx context.Context) ([]*library.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var runs []*library.Run
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		filePath, err := r.Path(entry.Name())
		if err != nil {
			continue
		}
		run, err := loadFromFile(filePath)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	slices.SortStableFunc(runs, func(a, b *library.Run) int {
		if c := a.StartedAt().Compare(b.StartedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return runs, nil
}

// Delete removes a run directory.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, err := r.Dir(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Helper methods

func loadFromFile(filePath string) (*library.Run, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var dto runDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filePath, err)
	}

	return fromDTO(dto)
}

func toDTO(run *library.Run) runDTO {
	outcomes := run.Outcomes()
	dto := runDTO{
		ID:        run.ID(),
		Root:      run.Root(),
		Operator:  run.Operator(),
		StartedAt: run.StartedAt().Format(time.RFC3339Nano),
		Status:    string(run.Status()),
		Metadata:  run.Metadata(),
		Summary:   library.Summarize(outcomes),
		Outcomes:  outcomes,
	}
	if dto.Outcomes == nil {
		dto.Outcomes = []library.Outcome{}
	}

	if !run.CompletedAt().IsZero() {
		dto.CompletedAt = run.CompletedAt().Format(time.RFC3339Nano)
	}

	return dto
}

func fromDTO(dto runDTO) (*library.Run, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started at time: %w", err)
	}

	var completedAt time.Time
	if dto.CompletedAt != "" {
		completedAt, err = time.Parse(time.RFC3339Nano, dto.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed at time: %w", err)
		}
	}

	return library.Reconstruct(
		dto.ID,
		dto.Root,
		dto.Operator,
		startedAt,
		completedAt,
		library.RunStatus(dto.Status),
		dto.Outcomes,
		dto.Metadata,
	), nil
}

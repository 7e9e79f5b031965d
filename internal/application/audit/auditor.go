// Package audit drives the per-file pipeline: identify, look up, fetch,
// verify. Network-bound stages run on a bounded pool of workers; every file
// ends in exactly one Outcome.
package audit

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
	"github.com/khanhnv2901/jsaudit/internal/verifier"
)

// Identifier guesses the library behind a file.
type Identifier interface {
	ExtractFile(path string) library.Candidate
}

// Catalog resolves a library name to an accepted catalog match.
type Catalog interface {
	Lookup(ctx context.Context, name string) (*library.CatalogMatch, error)
}

// ReferenceFetcher downloads the artifact of a claimed version.
type ReferenceFetcher interface {
	Fetch(ctx context.Context, match *library.CatalogMatch, claimedVersion string, minified bool) (*library.Reference, error)
}

// Comparer compares a local file with its reference.
type Comparer interface {
	Verify(local, reference []byte) (verifier.Verdict, error)
}

// Result is the completed, ordered outcome set of one audit.
type Result struct {
	Outcomes []library.Outcome
	Summary  library.Summary
}

// Auditor fans candidates out over a fixed-size worker pool.
type Auditor struct {
	identifier Identifier
	catalog    Catalog
	fetcher    ReferenceFetcher
	comparer   Comparer

	workers  int
	readFile func(string) ([]byte, error)
	progress Progress
	recorder Recorder
	logger   *zap.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithWorkers sets the number of candidates processed concurrently.
func WithWorkers(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithProgress reports progress to p.
func WithProgress(p Progress) Option {
	return func(a *Auditor) {
		if p != nil {
			a.progress = p
		}
	}
}

// WithRecorder reports pipeline events to r.
func WithRecorder(r Recorder) Option {
	return func(a *Auditor) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLogger sets the auditor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Auditor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithFileReader replaces os.ReadFile for local file contents.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(a *Auditor) {
		if read != nil {
			a.readFile = read
		}
	}
}

// New creates an Auditor from its four pipeline stages.
func New(identifier Identifier, catalog Catalog, fetcher ReferenceFetcher, comparer Comparer, opts ...Option) *Auditor {
	a := &Auditor{
		identifier: identifier,
		catalog:    catalog,
		fetcher:    fetcher,
		comparer:   comparer,
		workers:    consts.DefaultWorkers,
		readFile:   os.ReadFile,
		progress:   NopProgress{},
		recorder:   NopRecorder{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit consumes paths once, in full, then processes every identified
// candidate on the worker pool. Outcomes are returned in discovery order.
//
// If ctx is cancelled, candidates still queued or in flight are left out and
// ctx.Err() is returned alongside the outcomes completed so far.
func (a *Auditor) Audit(ctx context.Context, paths iter.Seq[string]) (*Result, error) {
	candidates := a.identify(ctx, paths)
	a.progress.Start(len(candidates))
	defer a.progress.Finish()

	outcomes := make([]library.Outcome, 0, len(candidates))
	pending := make([]library.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Identified() {
			o := library.NewUnidentified(c)
			o.Error = apperrors.ErrExtractionMiss.Error()
			outcomes = a.collect(outcomes, o)
			continue
		}
		pending = append(pending, c)
	}

	results := make(chan library.Outcome)
	go func() {
		defer close(results)
		var g errgroup.Group
		g.SetLimit(a.workers)
		for _, c := range pending {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if o, ok := a.process(ctx, c); ok {
					results <- o
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	// Sole writer of the aggregate.
	for o := range results {
		outcomes = a.collect(outcomes, o)
	}

	slices.SortStableFunc(outcomes, func(x, y library.Outcome) int {
		return cmp.Compare(x.Index, y.Index)
	})

	return &Result{Outcomes: outcomes, Summary: library.Summarize(outcomes)}, ctx.Err()
}

func (a *Auditor) identify(ctx context.Context, paths iter.Seq[string]) []library.Candidate {
	var candidates []library.Candidate
	for path := range paths {
		if ctx.Err() != nil {
			break
		}
		c := a.identifier.ExtractFile(path)
		c.Index = len(candidates)
		candidates = append(candidates, c)
	}
	return candidates
}

func (a *Auditor) collect(outcomes []library.Outcome, o library.Outcome) []library.Outcome {
	a.recorder.ObserveOutcome(o)
	a.progress.Advance(o)
	return append(outcomes, o)
}

// process runs one identified candidate through lookup, fetch and verify.
// It returns false when the context was cancelled mid-pipeline; such a
// candidate has no outcome.
func (a *Auditor) process(ctx context.Context, c library.Candidate) (out library.Outcome, ok bool) {
	start := time.Now()
	log := a.logger.With(zap.String("path", c.Path), zap.String("name", c.Name), zap.String("version", c.Version))

	defer func() {
		if r := recover(); r != nil {
			log.Error("candidate pipeline panicked", zap.Any("panic", r))
			out = library.NewUnidentified(c)
			out.Status = library.StatusError
			out.Error = fmt.Sprintf("internal error: %v", r)
			ok = true
		}
		out.Duration = time.Since(start)
	}()

	out = library.NewUnidentified(c)

	match, err := a.catalog.Lookup(ctx, c.Name)
	if ctx.Err() != nil {
		return out, false
	}
	a.recorder.ObserveLookup(err == nil)
	if err != nil {
		log.Debug("no catalog match", zap.Error(err))
		out.Error = err.Error()
		return out, true
	}

	out = out.WithMatch(match)
	stale := library.IsNewer(match.LatestVersion, c.Version)

	fetchStart := time.Now()
	ref, err := a.fetcher.Fetch(ctx, match, c.Version, c.Minified)
	if ctx.Err() != nil {
		return out, false
	}
	a.recorder.ObserveFetch(time.Since(fetchStart), err)
	if err != nil {
		log.Warn("reference unavailable", zap.Error(err))
		out.Status = library.StatusError
		out.Error = err.Error()
		return out, true
	}
	out.ReferenceURL = ref.URL

	local, err := a.readFile(c.Path)
	if err != nil {
		log.Warn("read local file", zap.Error(err))
		out.Status = library.StatusError
		out.Error = fmt.Sprintf("read local file: %v", err)
		return out, true
	}

	verdict, err := a.comparer.Verify(local, ref.Content)
	if err != nil {
		log.Warn("compare with reference", zap.Error(err))
		out.Status = library.StatusError
		out.Error = err.Error()
		return out, true
	}

	out.Status = verifier.Classify(verdict, stale)
	if out.Status.Modified() {
		out.Diff = verdict.Diff
	}
	log.Debug("candidate verified", zap.String("status", out.Status.String()), zap.Bool("stale", stale))
	return out, true
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
	"github.com/khanhnv2901/jsaudit/internal/verifier"
)

type stubIdentifier map[string]library.Candidate

func (s stubIdentifier) ExtractFile(path string) library.Candidate {
	c, ok := s[path]
	if !ok {
		return library.Candidate{Path: path}
	}
	c.Path = path
	return c
}

type stubCatalog struct {
	mu      sync.Mutex
	calls   []string
	matches map[string]*library.CatalogMatch
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
}

func (s *stubCatalog) Lookup(ctx context.Context, name string) (*library.CatalogMatch, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m, ok := s.matches[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("lookup %s: %w", name, apperrors.ErrCatalogMiss)
}

func (s *stubCatalog) called(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.calls, name)
}

type stubFetcher struct {
	content map[string][]byte
}

func (s stubFetcher) Fetch(_ context.Context, match *library.CatalogMatch, version string, minified bool) (*library.Reference, error) {
	key := match.Name + "@" + version
	data, ok := s.content[key]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", key, apperrors.ErrFetchFailure)
	}
	return &library.Reference{URL: "https://cdn.test/" + key, Content: data}, nil
}

type files map[string][]byte

func (f files) read(path string) ([]byte, error) {
	data, ok := f[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

type recordingProgress struct {
	total    int
	advanced []string
	finished bool
}

func (r *recordingProgress) Start(total int)           { r.total = total }
func (r *recordingProgress) Advance(o library.Outcome) { r.advanced = append(r.advanced, o.Path) }
func (r *recordingProgress) Finish()                   { r.finished = true }

func seq(paths ...string) iter.Seq[string] {
	return slices.Values(paths)
}

func jquery() *library.CatalogMatch {
	return &library.CatalogMatch{
		Name:          "jquery",
		LatestVersion: "3.6.0",
		LatestURL:     "https://cdn.test/jquery/3.6.0/jquery.min.js",
		Homepage:      "https://jquery.com",
		License:       "MIT",
	}
}

func TestAuditClassifiesEveryFile(t *testing.T) {
	const ref = "line 1\nline 2\n"
	identifier := stubIdentifier{
		"ok.js":          {Name: "lib", Version: "2.0.0"},
		"stale.js":       {Name: "jquery", Version: "3.4.1", Minified: true},
		"tampered.js":    {Name: "lib", Version: "2.0.0"},
		"both.js":        {Name: "jquery", Version: "3.4.1"},
		"mystery.js":     {},
		"noversion.js":   {Name: "thing"},
		"unknown.js":     {Name: "nothing", Version: "1.0.0"},
		"unavailable.js": {Name: "lib", Version: "0.0.1"},
		"binary.js":      {Name: "lib", Version: "2.0.0"},
		"missing.js":     {Name: "lib", Version: "2.0.0"},
	}
	catalog := &stubCatalog{matches: map[string]*library.CatalogMatch{
		"jquery": jquery(),
		"lib":    {Name: "lib", LatestVersion: "2.0.0", LatestURL: "https://cdn.test/lib/2.0.0/lib.js"},
	}}
	fetcher := stubFetcher{content: map[string][]byte{
		"lib@2.0.0":    []byte(ref),
		"jquery@3.4.1": []byte(ref),
	}}
	local := files{
		"ok.js":          []byte(ref),
		"stale.js":       []byte(ref),
		"tampered.js":    []byte("line 1\ninjected\nline 2\n"),
		"both.js":        []byte("line 1\n"),
		"unavailable.js": []byte(ref),
		"binary.js":      {0xff, 0xfe, 0xfd},
	}
	progress := &recordingProgress{}

	auditor := New(identifier, catalog, fetcher, verifier.New(),
		WithWorkers(3),
		WithFileReader(local.read),
		WithProgress(progress),
		WithLogger(zaptest.NewLogger(t)),
	)

	order := []string{"ok.js", "stale.js", "tampered.js", "both.js", "mystery.js", "noversion.js", "unknown.js", "unavailable.js", "binary.js", "missing.js"}
	result, err := auditor.Audit(context.Background(), seq(order...))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, len(order))

	got := make(map[string]library.Outcome)
	for i, o := range result.Outcomes {
		assert.Equal(t, order[i], o.Path, "outcomes must follow discovery order")
		got[o.Path] = o
	}

	assert.Equal(t, library.StatusOK, got["ok.js"].Status)
	assert.Equal(t, library.StatusStale, got["stale.js"].Status)
	assert.Equal(t, "3.6.0", got["stale.js"].LatestVersion)
	assert.Empty(t, got["stale.js"].Diff)
	assert.Equal(t, library.StatusModified, got["tampered.js"].Status)
	assert.NotEmpty(t, got["tampered.js"].Diff)
	assert.Equal(t, library.StatusStaleAndModified, got["both.js"].Status)
	assert.Equal(t, library.StatusUnidentified, got["mystery.js"].Status)
	assert.Equal(t, library.StatusUnidentified, got["noversion.js"].Status)
	assert.Equal(t, library.StatusUnidentified, got["unknown.js"].Status)
	assert.Empty(t, got["unknown.js"].LatestVersion, "metadata only for accepted matches")
	assert.Equal(t, library.StatusError, got["unavailable.js"].Status)
	assert.Equal(t, "2.0.0", got["unavailable.js"].LatestVersion)
	assert.Equal(t, library.StatusError, got["binary.js"].Status)
	assert.Contains(t, got["binary.js"].Error, "UTF-8")
	assert.Equal(t, library.StatusError, got["missing.js"].Status)

	assert.False(t, catalog.called("thing"), "unidentified candidates never reach the catalog")
	assert.Equal(t, 10, progress.total)
	assert.Len(t, progress.advanced, 10)
	assert.True(t, progress.finished)
	assert.Equal(t, 10, result.Summary.Total())
	assert.Equal(t, 3, result.Summary[library.StatusUnidentified])
}

func TestAuditBoundsConcurrency(t *testing.T) {
	identifier := stubIdentifier{}
	paths := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("lib%d.js", i)
		identifier[p] = library.Candidate{Name: fmt.Sprintf("lib%d", i), Version: "1.0.0"}
		paths = append(paths, p)
	}
	catalog := &stubCatalog{delay: 20 * time.Millisecond, matches: map[string]*library.CatalogMatch{}}

	auditor := New(identifier, catalog, stubFetcher{}, verifier.New(), WithWorkers(4))
	result, err := auditor.Audit(context.Background(), seq(paths...))
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 20)
	assert.LessOrEqual(t, catalog.peak.Load(), int32(4))
	assert.Greater(t, catalog.peak.Load(), int32(1), "lookups should overlap")
}

func TestAuditIsIdempotent(t *testing.T) {
	identifier := stubIdentifier{
		"a.js": {Name: "lib", Version: "1.0.0"},
		"b.js": {Name: "lib", Version: "2.0.0"},
		"c.js": {},
	}
	catalog := &stubCatalog{matches: map[string]*library.CatalogMatch{
		"lib": {Name: "lib", LatestVersion: "2.0.0", LatestURL: "https://cdn.test/lib/2.0.0/lib.js"},
	}}
	fetcher := stubFetcher{content: map[string][]byte{"lib@1.0.0": []byte("x\n"), "lib@2.0.0": []byte("y\n")}}
	local := files{"a.js": []byte("x\n"), "b.js": []byte("z\n")}

	statuses := func() []library.Status {
		a := New(identifier, catalog, fetcher, verifier.New(), WithFileReader(local.read))
		res, err := a.Audit(context.Background(), seq("a.js", "b.js", "c.js"))
		require.NoError(t, err)
		out := make([]library.Status, 0, len(res.Outcomes))
		for _, o := range res.Outcomes {
			out = append(out, o.Status)
		}
		return out
	}

	first := statuses()
	assert.Equal(t, []library.Status{library.StatusStale, library.StatusModified, library.StatusUnidentified}, first)
	assert.Equal(t, first, statuses())
}

func TestAuditCancellationOmitsUnfinished(t *testing.T) {
	identifier := stubIdentifier{"slow.js": {Name: "slow", Version: "1.0.0"}, "mystery.js": {}}
	catalog := &stubCatalog{delay: time.Minute, matches: map[string]*library.CatalogMatch{}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := New(identifier, catalog, stubFetcher{}, verifier.New()).Audit(ctx, seq("slow.js", "mystery.js"))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "mystery.js", result.Outcomes[0].Path)
}

type panickyFetcher struct{}

func (panickyFetcher) Fetch(context.Context, *library.CatalogMatch, string, bool) (*library.Reference, error) {
	panic("boom")
}

func TestAuditIsolatesPanics(t *testing.T) {
	identifier := stubIdentifier{"a.js": {Name: "jquery", Version: "3.4.1"}, "b.js": {}}
	catalog := &stubCatalog{matches: map[string]*library.CatalogMatch{"jquery": jquery()}}

	result, err := New(identifier, catalog, panickyFetcher{}, verifier.New()).Audit(context.Background(), seq("a.js", "b.js"))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, library.StatusError, result.Outcomes[0].Status)
	assert.Equal(t, library.StatusUnidentified, result.Outcomes[1].Status)
}

type countingRecorder struct {
	mu       sync.Mutex
	lookups  map[bool]int
	fetches  int
	outcomes int
}

func (c *countingRecorder) ObserveLookup(accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups[accepted]++
}

func (c *countingRecorder) ObserveFetch(time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches++
}

func (c *countingRecorder) ObserveOutcome(library.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes++
}

func TestAuditRecordsEvents(t *testing.T) {
	identifier := stubIdentifier{
		"a.js": {Name: "jquery", Version: "3.4.1"},
		"b.js": {Name: "nothing", Version: "1.0.0"},
		"c.js": {},
	}
	catalog := &stubCatalog{matches: map[string]*library.CatalogMatch{"jquery": jquery()}}
	fetcher := stubFetcher{content: map[string][]byte{"jquery@3.4.1": []byte("x")}}
	rec := &countingRecorder{lookups: map[bool]int{}}

	_, err := New(identifier, catalog, fetcher, verifier.New(),
		WithRecorder(rec),
		WithFileReader(files{"a.js": []byte("x")}.read),
	).Audit(context.Background(), seq("a.js", "b.js", "c.js"))
	require.NoError(t, err)

	assert.Equal(t, 1, rec.lookups[true])
	assert.Equal(t, 1, rec.lookups[false])
	assert.Equal(t, 1, rec.fetches)
	assert.Equal(t, 3, rec.outcomes)
}

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

type fakeCatalog struct {
	mu      sync.Mutex
	queries []string
	calls   atomic.Int32
	results map[string][]map[string]any
	status  int
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	name := r.URL.Query().Get("search")
	f.mu.Lock()
	f.queries = append(f.queries, r.URL.RawQuery)
	f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": f.results[name]})
}

func newTestClient(t *testing.T, catalog *fakeCatalog, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(catalog)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL + "/libraries"), WithLogger(zaptest.NewLogger(t))}, opts...)
	return NewClient(opts...)
}

func TestLookupAcceptsCloseMatch(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]map[string]any{
		"jquery": {{
			"name":     "jquery",
			"latest":   "https://cdnjs.cloudflare.com/ajax/libs/jquery/3.6.0/jquery.min.js",
			"filename": "jquery.min.js",
			"version":  "3.6.0",
			"homepage": "https://jquery.com/",
			"license":  "MIT",
		}},
	}}
	client := newTestClient(t, catalog)

	match, err := client.Lookup(context.Background(), "jquery")
	require.NoError(t, err)
	assert.Equal(t, "jquery", match.Name)
	assert.Equal(t, "3.6.0", match.LatestVersion)
	assert.Equal(t, "https://cdnjs.cloudflare.com/ajax/libs/jquery/3.6.0/jquery.min.js", match.LatestURL)
	assert.Equal(t, "MIT", match.License)
	assert.Equal(t, "https://jquery.com/", match.Homepage)
	assert.InDelta(t, 1.0, match.Similarity, 1e-9)

	require.Len(t, catalog.queries, 1)
	assert.Contains(t, catalog.queries[0], "fields=name%2Cfilename%2Cversion%2Chomepage%2Clicense")
}

func TestLookupRejectsDissimilarMatch(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]map[string]any{
		"modal": {{"name": "bootstrap-modal", "latest": "https://cdn/x/bootstrap-modal.js", "version": "2.2.6"}},
	}}
	client := newTestClient(t, catalog)

	match, err := client.Lookup(context.Background(), "modal")
	assert.Nil(t, match)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCatalogMiss))

	var miss *MissError
	require.True(t, errors.As(err, &miss))
	assert.Contains(t, miss.Reason, "similarity")
}

func TestLookupMisses(t *testing.T) {
	tests := []struct {
		name    string
		catalog *fakeCatalog
	}{
		{"empty results", &fakeCatalog{results: map[string][]map[string]any{}}},
		{"server error", &fakeCatalog{status: http.StatusInternalServerError}},
		{"not found", &fakeCatalog{status: http.StatusNotFound}},
		{"no version", &fakeCatalog{results: map[string][]map[string]any{
			"lodash": {{"name": "lodash", "latest": ""}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.catalog)
			match, err := client.Lookup(context.Background(), "lodash")
			assert.Nil(t, match)
			assert.ErrorIs(t, err, apperrors.ErrCatalogMiss)
		})
	}
}

func TestLookupMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Lookup(context.Background(), "vue")
	assert.ErrorIs(t, err, apperrors.ErrCatalogMiss)
}

func TestLookupTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).Lookup(context.Background(), "vue")
	assert.ErrorIs(t, err, apperrors.ErrCatalogMiss)
}

func TestLookupCachesPerName(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]map[string]any{
		"vue": {{"name": "vue", "latest": "https://cdn/vue/3.4.0/vue.js", "version": "3.4.0"}},
	}}
	client := newTestClient(t, catalog)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Lookup(context.Background(), "Vue")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := client.Lookup(context.Background(), "vue")
	require.NoError(t, err)
	assert.Equal(t, int32(1), catalog.calls.Load(), "one query per distinct name")

	// Misses are cached too.
	_, err = client.Lookup(context.Background(), "nothing")
	require.Error(t, err)
	_, err = client.Lookup(context.Background(), "nothing")
	require.Error(t, err)
	assert.Equal(t, int32(2), catalog.calls.Load())
}

func TestLookupCancelledIsNotCached(t *testing.T) {
	catalog := &fakeCatalog{results: map[string][]map[string]any{
		"vue": {{"name": "vue", "latest": "https://cdn/vue/3.4.0/vue.js", "version": "3.4.0"}},
	}}
	client := newTestClient(t, catalog)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Lookup(ctx, "vue")
	require.Error(t, err)

	match, err := client.Lookup(context.Background(), "vue")
	require.NoError(t, err)
	assert.Equal(t, "3.4.0", match.LatestVersion)
}

func TestLookupEmptyName(t *testing.T) {
	_, err := NewClient().Lookup(context.Background(), " _ ")
	assert.ErrorIs(t, err, apperrors.ErrCatalogMiss)
}

func TestLicenseShapes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"MIT"`, "MIT"},
		{`{"type":"BSD-3-Clause","url":"x"}`, "BSD-3-Clause"},
		{`{"name":"Apache-2.0"}`, "Apache-2.0"},
		{`["MIT", {"type": "GPL-2.0"}]`, "MIT OR GPL-2.0"},
		{`42`, ""},
	}
	for _, tt := range tests {
		var l licenseField
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &l), tt.raw)
		assert.Equal(t, tt.want, string(l), tt.raw)
	}
}

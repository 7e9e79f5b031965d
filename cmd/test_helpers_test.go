package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zaptest"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

const (
	jqueryMin = "/*! jQuery v3.4.1 | (c) JS Foundation */\n!function(e,t){}(window);\n"
	jqueryDev = "/*!\n * jQuery JavaScript Library v3.4.1\n */\n(function(global){\n})(window);\n"
)

// setupTestAppContext initializes an AppContext rooted in a temporary data directory.
func setupTestAppContext(t *testing.T) *AppContext {
	t.Helper()

	original := globalAppContext
	t.Cleanup(func() {
		globalAppContext = original
	})

	dataDir := t.TempDir()
	t.Setenv(dataDirEnvVar, dataDir)

	resultsDir := filepath.Join(dataDir, "results")
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("failed to create results directory: %v", err)
	}

	cfg := newCLIConfig()
	cfg.Scan.ProgressEnabled = false

	appCtx := &AppContext{
		Logger:     zaptest.NewLogger(t).Sugar(),
		Operator:   "test-operator",
		ResultsDir: resultsDir,
		Config:     cfg,
	}
	globalAppContext = appCtx
	return appCtx
}

// newTestCommand returns a detached command carrying appCtx whose output is captured.
func newTestCommand(t *testing.T, appCtx *AppContext) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	storeAppContext(cmd, appCtx)
	return cmd, out
}

// newCatalogServer fakes the cdnjs search API and CDN for jQuery 3.4.1, latest 3.6.0.
func newCatalogServer(t *testing.T, lookups *atomic.Int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/libraries", func(w http.ResponseWriter, r *http.Request) {
		if lookups != nil {
			lookups.Add(1)
		}
		results := []map[string]any{}
		if r.URL.Query().Get("search") == "jquery" {
			results = append(results, map[string]any{
				"name":     "jquery",
				"filename": "jquery.min.js",
				"version":  "3.6.0",
				"latest":   srv.URL + "/ajax/libs/jquery/3.6.0/jquery.min.js",
				"homepage": "https://jquery.com/",
				"license":  "MIT",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	mux.HandleFunc("/ajax/libs/jquery/3.4.1/jquery.min.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(jqueryMin))
	})
	mux.HandleFunc("/ajax/libs/jquery/3.4.1/jquery.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(jqueryDev))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeProject lays out files (slash-separated names) under a fresh directory.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), consts.DefaultDirPerm); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), consts.DefaultFilePerm); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

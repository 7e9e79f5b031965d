package application

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	auditapp "github.com/khanhnv2901/jsaudit/internal/application/audit"
	"github.com/khanhnv2901/jsaudit/internal/extractor"
	"github.com/khanhnv2901/jsaudit/internal/fetcher"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/jsaudit/internal/infrastructure/scanner"
	"github.com/khanhnv2901/jsaudit/internal/registry"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	"github.com/khanhnv2901/jsaudit/internal/verifier"
)

// ReferencesDir is the run subdirectory holding retained reference copies.
const ReferencesDir = "references"

// Options configures the pipeline built by the container.
type Options struct {
	ResultsDir string
	Workers    int
	// RateLimit is the shared outbound request budget per second; 0 disables it.
	RateLimit      float64
	Timeout        time.Duration
	HeaderLines    int
	Extensions     []string
	SkipDirs       []string
	RegistryURL    string
	QueryParam     string
	UserAgent      string
	Threshold      float64
	KeepReferences bool
	Logger         *zap.Logger
}

// Container holds all application services and repositories
// This is a simple dependency injection container
type Container struct {
	// Repositories
	RunRepo  *json.RunRepository
	AuditLog *json.AuditLog

	// Pipeline stages
	Scanner   *scanner.Scanner
	Extractor *extractor.Extractor
	Catalog   *registry.Client
	Verifier  *verifier.Verifier

	opts       Options
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewContainer creates a new application service container
func NewContainer(opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = consts.DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = consts.DefaultHTTPTimeout
	}

	runRepo, err := json.NewRunRepository(opts.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run repository: %w", err)
	}

	// One budget for catalog queries and downloads together.
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	httpClient := &http.Client{Timeout: opts.Timeout}

	catalogOpts := []registry.Option{
		registry.WithHTTPClient(httpClient),
		registry.WithLimiter(limiter),
		registry.WithLogger(opts.Logger.Named("registry")),
	}
	if opts.RegistryURL != "" {
		catalogOpts = append(catalogOpts, registry.WithBaseURL(opts.RegistryURL))
	}
	if opts.QueryParam != "" {
		catalogOpts = append(catalogOpts, registry.WithQueryParam(opts.QueryParam))
	}
	if opts.UserAgent != "" {
		catalogOpts = append(catalogOpts, registry.WithUserAgent(opts.UserAgent))
	}
	if opts.Threshold > 0 {
		catalogOpts = append(catalogOpts, registry.WithThreshold(opts.Threshold))
	}

	return &Container{
		RunRepo:  runRepo,
		AuditLog: json.NewAuditLog(runRepo),
		Scanner: scanner.New(
			scanner.WithExtensions(opts.Extensions...),
			scanner.WithSkipDirs(opts.SkipDirs...),
			scanner.WithLogger(opts.Logger.Named("scanner")),
		),
		Extractor: extractor.New(
			extractor.WithHeaderLines(opts.HeaderLines),
			extractor.WithLogger(opts.Logger.Named("extractor")),
		),
		Catalog:    registry.NewClient(catalogOpts...),
		Verifier:   verifier.New(),
		opts:       opts,
		limiter:    limiter,
		httpClient: httpClient,
	}, nil
}

// Options returns the effective options after defaults.
func (c *Container) Options() Options {
	return c.opts
}

// NewFetcher builds the reference fetcher for one run. When references are
// retained they go to <results>/<run id>/references.
func (c *Container) NewFetcher(runID string) (*fetcher.Fetcher, error) {
	fetchOpts := []fetcher.Option{
		fetcher.WithHTTPClient(c.httpClient),
		fetcher.WithLimiter(c.limiter),
		fetcher.WithLogger(c.opts.Logger.Named("fetcher")),
	}
	if c.opts.UserAgent != "" {
		fetchOpts = append(fetchOpts, fetcher.WithUserAgent(c.opts.UserAgent))
	}
	if c.opts.KeepReferences {
		dir, err := c.RunRepo.Dir(runID)
		if err != nil {
			return nil, err
		}
		fetchOpts = append(fetchOpts, fetcher.WithStore(fetcher.DirStore{Dir: filepath.Join(dir, ReferencesDir)}))
	}
	return fetcher.New(fetchOpts...), nil
}

// NewAuditor assembles the orchestrator for one run.
func (c *Container) NewAuditor(runID string, opts ...auditapp.Option) (*auditapp.Auditor, error) {
	f, err := c.NewFetcher(runID)
	if err != nil {
		return nil, err
	}
	base := []auditapp.Option{
		auditapp.WithWorkers(c.opts.Workers),
		auditapp.WithLogger(c.opts.Logger.Named("audit")),
	}
	return auditapp.New(c.Extractor, c.Catalog, f, c.Verifier, append(base, opts...)...), nil
}

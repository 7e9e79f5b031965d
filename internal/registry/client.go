// Package registry queries a public library catalog (cdnjs by default) for the
// library a candidate claims to be and accepts the top result only when its
// name is close enough to the candidate's.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

// DefaultFields is the field list requested from the catalog.
var DefaultFields = []string{"name", "filename", "version", "homepage", "license"}

// Limiter throttles outbound requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client looks libraries up in the catalog. Lookups are cached per normalized
// name for the lifetime of the client, and concurrent lookups of the same
// name share one request.
type Client struct {
	baseURL    string
	queryParam string
	fields     []string
	threshold  float64
	userAgent  string
	httpClient *http.Client
	limiter    Limiter
	logger     *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedLookup
}

type cachedLookup struct {
	match *library.CatalogMatch
	err   error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the catalog search endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithQueryParam sets the query parameter that carries the searched name.
func WithQueryParam(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.queryParam = p
		}
	}
}

// WithThreshold sets the minimum accepted name similarity.
func WithThreshold(t float64) Option {
	return func(c *Client) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithHTTPClient sets the HTTP client used for catalog queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter throttles catalog queries. Cache hits are never throttled.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a catalog client with cdnjs defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    consts.DefaultRegistryURL,
		queryParam: consts.DefaultRegistryQueryParam,
		fields:     DefaultFields,
		threshold:  consts.DefaultSimilarityThreshold,
		userAgent:  consts.DefaultUserAgent,
		httpClient: &http.Client{Timeout: consts.DefaultHTTPTimeout},
		logger:     zap.NewNop(),
		cache:      make(map[string]cachedLookup),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the accepted catalog match for name. Every failure, from an
// empty result set to a transport error, is a *MissError wrapping
// errors.ErrCatalogMiss.
func (c *Client) Lookup(ctx context.Context, name string) (*library.CatalogMatch, error) {
	key := NormalizeName(name)
	if key == "" {
		return nil, &MissError{Name: name, Reason: "empty name"}
	}

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached.match, cached.err
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.cache[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		match, err := c.search(ctx, key)
		res := cachedLookup{match: match, err: err}
		if !isContextErr(err) {
			c.mu.Lock()
			c.cache[key] = res
			c.mu.Unlock()
		}
		return res, nil
	})
	res := v.(cachedLookup)
	return res.match, res.err
}

func (c *Client) search(ctx context.Context, name string) (*library.CatalogMatch, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &MissError{Name: name, Reason: "rate limiter", Err: err}
		}
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &MissError{Name: name, Reason: "invalid catalog url", Err: err}
	}
	q := endpoint.Query()
	q.Set(c.queryParam, name)
	q.Set("fields", strings.Join(c.fields, ","))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &MissError{Name: name, Reason: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("catalog query failed", zap.String("name", name), zap.Error(err))
		return nil, &MissError{Name: name, Reason: "transport", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &MissError{Name: name, Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, consts.MaxCatalogResponseBytes)).Decode(&payload); err != nil {
		return nil, &MissError{Name: name, Reason: "decode response", Err: err}
	}
	if len(payload.Results) == 0 {
		return nil, &MissError{Name: name, Reason: "no results"}
	}

	// The catalog ranks by relevance; only the top hit is considered.
	top := payload.Results[0]
	score := Similarity(name, top.Name)
	if !Accept(score, c.threshold) {
		c.logger.Debug("catalog match rejected",
			zap.String("name", name),
			zap.String("catalog_name", top.Name),
			zap.Float64("similarity", score),
		)
		return nil, &MissError{Name: name, Reason: fmt.Sprintf("closest match %q below similarity threshold (%.2f)", top.Name, score)}
	}
	if top.Version == "" || top.Latest == "" {
		return nil, &MissError{Name: name, Reason: fmt.Sprintf("match %q has no published version", top.Name)}
	}

	return &library.CatalogMatch{
		Name:          top.Name,
		Filename:      top.Filename,
		LatestVersion: top.Version,
		LatestURL:     top.Latest,
		Homepage:      top.Homepage,
		License:       string(top.License),
		Similarity:    score,
	}, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Package fetcher downloads the reference artifact a catalog publishes for a
// specific library version.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/jsaudit/internal/domain/library"
	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
	apperrors "github.com/khanhnv2901/jsaudit/internal/shared/errors"
)

// Limiter throttles outbound requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Store keeps a copy of every fetched reference. Optional.
type Store interface {
	Save(name, version, filename string, content []byte) error
}

// FetchError reports why a reference artifact could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s failed", e.URL)
}

func (e *FetchError) Unwrap() []error {
	errs := []error{apperrors.ErrFetchFailure}
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone {
		errs = append(errs, apperrors.ErrReferenceNotFound)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Fetcher retrieves reference artifacts with a single attempt per request.
type Fetcher struct {
	httpClient *http.Client
	limiter    Limiter
	store      Store
	userAgent  string
	maxBytes   int64
	logger     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		if hc != nil {
			f.httpClient = hc
		}
	}
}

// WithLimiter throttles downloads.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithStore keeps a copy of every successfully fetched reference.
func WithStore(s Store) Option {
	return func(f *Fetcher) {
		f.store = s
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBytes caps the accepted artifact size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: consts.DefaultHTTPTimeout},
		userAgent:  consts.DefaultUserAgent,
		maxBytes:   consts.MaxReferenceBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the artifact of match for claimedVersion. minified tells
// whether the local file is a minified build, so the URL points at the same
// kind of build.
func (f *Fetcher) Fetch(ctx context.Context, match *library.CatalogMatch, claimedVersion string, minified bool) (*library.Reference, error) {
	if match == nil {
		return nil, &FetchError{Err: errors.New("no catalog match")}
	}
	refURL, err := ReferenceURL(match.LatestURL, match.LatestVersion, claimedVersion, minified)
	if err != nil {
		return nil, &FetchError{URL: match.LatestURL, Err: err}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: refURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refURL, nil)
	if err != nil {
		return nil, &FetchError{URL: refURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: refURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: refURL, StatusCode: resp.StatusCode}
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: refURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(content)) > f.maxBytes {
		return nil, &FetchError{URL: refURL, Err: fmt.Errorf("artifact exceeds %d bytes", f.maxBytes)}
	}

	if f.store != nil {
		if err := f.store.Save(match.Name, claimedVersion, path.Base(refURL), content); err != nil {
			// Retention is best effort and never fails the candidate.
			f.logger.Warn("failed to keep reference copy", zap.String("url", refURL), zap.Error(err))
		}
	}

	return &library.Reference{URL: refURL, Content: content}, nil
}

// ReferenceURL derives the download URL of claimedVersion from the catalog's
// latest URL. Every occurrence of latestVersion in the path is replaced, and
// when the local file is not minified the minification marker is removed from
// the file name. Host and directory names are never touched by the marker.
func ReferenceURL(latestURL, latestVersion, claimedVersion string, minified bool) (string, error) {
	if latestURL == "" {
		return "", errors.New("empty latest url")
	}
	u, err := url.Parse(latestURL)
	if err != nil {
		return "", fmt.Errorf("parse latest url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("latest url %q is not absolute", latestURL)
	}

	p := u.Path
	if latestVersion != "" && claimedVersion != "" {
		p = strings.ReplaceAll(p, latestVersion, claimedVersion)
	}
	if !minified {
		dir, file := path.Split(p)
		p = dir + library.StripMinMarker(file)
	}

	u.Path = p
	u.RawPath = ""
	return u.String(), nil
}

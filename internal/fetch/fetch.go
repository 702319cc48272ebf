// Package fetch lists and downloads template package releases from a
// GitHub-compatible API into the package cache.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/cache"
)

// Fetch failure causes. Errors returned by Client wrap one of these inside an
// apperr FetchFailed error.
var (
	ErrNotFound       = errors.New("release not found")
	ErrNetwork        = errors.New("network error")
	ErrArchiveCorrupt = errors.New("archive corrupt")
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

const (
	defaultTimeout = 30 * time.Second
	defaultBackoff = 500 * time.Millisecond
	maxTries       = 2
	maxErrBody     = 500
	pageSize       = 100
	maxPages       = 10
)

// HTTPDoer defines the HTTP operations required by Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration // per attempt
	Backoff    time.Duration // wait before the retry
	HTTPClient HTTPDoer
	Logger     *slog.Logger
}

// Request names one release to install.
type Request struct {
	Source   string // cache key
	Location string // owner/repo
	Tag      string // upstream tag, e.g. v1.2.0
	Version  string // canonical version used as the cache directory
	Force    bool   // replace an existing entry
}

// LatestRequest names a remote source whose default branch is installed
// because no release tag identifies a version.
type LatestRequest struct {
	Source   string
	Location string
	Force    bool
	// VersionOf reads the package version from the extracted tree.
	VersionOf func(dir string) (string, error)
}

// Client talks to the release API and writes into a cache.
type Client struct {
	store      *cache.Cache
	baseURL    string
	token      string
	timeout    time.Duration
	backoff    time.Duration
	httpClient HTTPDoer
	logger     *slog.Logger
	group      singleflight.Group
}

// New creates a Client that installs into store.
func New(store *cache.Cache, opts Options) *Client {
	c := &Client{
		store:      store,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		timeout:    opts.Timeout,
		backoff:    opts.Backoff,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

type release struct {
	TagName string `json:"tag_name"`
	Draft   bool   `json:"draft"`
}

// ListVersions returns the release tags published for location, in API
// order. Pages are followed through the Link header up to maxPages.
func (c *Client) ListVersions(ctx context.Context, location string) ([]string, error) {
	if err := checkLocation(location); err != nil {
		return nil, apperr.FetchFailed(location, err)
	}

	tags := []string{}
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.baseURL, location, pageSize)
	for page := 0; url != "" && page < maxPages; page++ {
		resp, err := c.get(ctx, url)
		if err != nil {
			return nil, apperr.FetchFailed(location, err)
		}

		var releases []release
		if err := json.Unmarshal(resp.body, &releases); err != nil {
			return nil, apperr.FetchFailed(location, fmt.Errorf("%w: decoding release list: %v", ErrNetwork, err))
		}
		for _, r := range releases {
			if r.Draft || r.TagName == "" {
				continue
			}
			tags = append(tags, r.TagName)
		}
		url = resp.next
	}
	return tags, nil
}

// Fetch downloads the archive for req.Tag and installs it into the cache.
// Concurrent calls for the same source, version and force flag share one
// download.
func (c *Client) Fetch(ctx context.Context, req Request) (*cache.Entry, error) {
	if err := checkLocation(req.Location); err != nil {
		return nil, apperr.FetchFailed(req.Location, err)
	}
	return c.shared(flightKey(req.Source, req.Version, req.Force), func() (*cache.Entry, error) {
		return c.fetch(ctx, req)
	})
}

// FetchLatest downloads the default branch of req.Location, reads its
// version with req.VersionOf and installs it under that version.
func (c *Client) FetchLatest(ctx context.Context, req LatestRequest) (*cache.Entry, error) {
	if err := checkLocation(req.Location); err != nil {
		return nil, apperr.FetchFailed(req.Location, err)
	}
	return c.shared(flightKey(req.Source, "latest", req.Force), func() (*cache.Entry, error) {
		return c.fetchLatest(ctx, req)
	})
}

func flightKey(source, version string, force bool) string {
	return source + "@" + version + "/" + strconv.FormatBool(force)
}

func (c *Client) shared(key string, fn func() (*cache.Entry, error)) (*cache.Entry, error) {
	v, err, shared := c.group.Do(key, func() (any, error) {
		return fn()
	})
	if shared {
		c.logger.Debug("fetch shared with concurrent caller", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*cache.Entry), nil
}

func (c *Client) fetch(ctx context.Context, req Request) (*cache.Entry, error) {
	if !req.Force {
		if entry, err := c.store.Lookup(req.Source, req.Version); err == nil {
			return entry, nil
		}
	}

	url := fmt.Sprintf("%s/repos/%s/tarball/%s", c.baseURL, req.Location, req.Tag)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, apperr.FetchFailed(req.Location, err)
	}
	return c.install(ctx, req.Source, req.Location, req.Version, req.Tag, resp.body, req.Force)
}

func (c *Client) fetchLatest(ctx context.Context, req LatestRequest) (*cache.Entry, error) {
	url := fmt.Sprintf("%s/repos/%s/tarball", c.baseURL, req.Location)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, apperr.FetchFailed(req.Location, err)
	}
	archive := resp.body

	scratch, err := os.MkdirTemp("", "noter-latest-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := extractTarGz(archive, scratch); err != nil {
		if errors.Is(err, ErrArchiveCorrupt) {
			return nil, apperr.FetchFailed(req.Location, err)
		}
		return nil, err
	}
	version, err := req.VersionOf(scratch)
	if err != nil {
		return nil, err
	}
	return c.install(ctx, req.Source, req.Location, version, "", archive, req.Force)
}

func (c *Client) install(ctx context.Context, source, location, version, tag string, archive []byte, force bool) (*cache.Entry, error) {
	entry, err := c.store.Install(ctx, source, version, func(dir string) error {
		return extractTarGz(archive, dir)
	}, cache.InstallOptions{Tag: tag, Force: force})
	if err != nil {
		if errors.Is(err, ErrArchiveCorrupt) {
			return nil, apperr.FetchFailed(location, err)
		}
		return nil, err
	}

	c.logger.Info("installed template package",
		"source", source, "version", version, "tag", tag, "path", entry.Path)
	return entry, nil
}

type response struct {
	body []byte
	next string // rel="next" target of the Link header
}

// get performs a GET with a per-attempt timeout, retrying once on
// network errors and server failures.
func (c *Client) get(ctx context.Context, url string) (response, error) {
	attempt := 0
	op := func() (response, error) {
		attempt++
		resp, err := c.getOnce(ctx, url)
		if err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Debug("fetch attempt failed", "url", url, "attempt", attempt, "error", err)
		}
		return resp, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.backoff)),
		backoff.WithMaxTries(maxTries),
	)
}

func (c *Client) getOnce(ctx context.Context, url string) (response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "noter")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return response{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, url))
	case resp.StatusCode != http.StatusOK:
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		err := fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, strings.TrimSpace(string(errBody)))
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return response{}, backoff.Permanent(err)
		}
		return response{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}
	return response{body: body, next: nextLink(resp.Header.Get("Link"))}, nil
}

// nextLink extracts the rel="next" URL from a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(part, ";")
		if ok && strings.Contains(params, `rel="next"`) {
			return strings.Trim(strings.TrimSpace(target), "<>")
		}
	}
	return ""
}

func checkLocation(location string) error {
	parts := strings.Split(location, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: location %q is not owner/repo", ErrNotFound, location)
	}
	return nil
}

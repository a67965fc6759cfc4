package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"surplus/internal/config"
	"surplus/internal/services"
)

// Result is one fetched record with its provenance.
type Result struct {
	Source      string         `json:"source"`
	URL         string         `json:"url,omitempty"`
	Data        map[string]any `json:"data"`
	FromFixture bool           `json:"from_fixture"`
	FetchedAt   time.Time      `json:"fetched_at"`
}

// Fetcher retrieves the record for a source identifier.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (Result, error)
}

// NewFetcher picks the fixture or HTTP fetcher from the network switch.
func NewFetcher(cfg *config.Config) Fetcher {
	store := NewStore(cfg.Paths.FixturesDir)
	if !cfg.NetworkEnabled() {
		return &FixtureFetcher{Store: store}
	}
	return NewHTTPFetcher(HTTPOptions{
		BaseURL:     cfg.Fetch.BaseURL,
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     time.Duration(cfg.Fetch.RequestTimeout) * time.Second,
		MinInterval: time.Duration(cfg.Fetch.MinIntervalMS) * time.Millisecond,
	})
}

// FixtureFetcher serves records from a Store.
type FixtureFetcher struct {
	Store *Store
	now   func() time.Time
}

// Fetch loads the fixture recorded for source.
func (f *FixtureFetcher) Fetch(ctx context.Context, source string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	data, err := f.Store.LoadRecord(source)
	if err != nil {
		return Result{}, err
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return Result{
		Source:      source,
		Data:        data,
		FromFixture: true,
		FetchedAt:   now().UTC(),
	}, nil
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MinInterval time.Duration
	Client      *http.Client
}

// HTTPFetcher GETs <base_url>/<source> and decodes a JSON object. Requests
// are spaced at least MinInterval apart.
type HTTPFetcher struct {
	baseURL     string
	userAgent   string
	minInterval time.Duration
	client      *http.Client

	mu   sync.Mutex
	last time.Time
}

// NewHTTPFetcher builds an HTTPFetcher from opts.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	agent := strings.TrimSpace(opts.UserAgent)
	if agent == "" {
		agent = "surplus/dev"
	}
	return &HTTPFetcher{
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		userAgent:   agent,
		minInterval: opts.MinInterval,
		client:      client,
	}
}

// Fetch retrieves source from the remote endpoint.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, services.Wrap(services.ErrValidation, "fetch", "build url", "source is empty", nil)
	}
	if f.baseURL == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "fetch", "build url", "fetch.base_url is not configured", nil)
	}
	target := f.baseURL + "/" + url.PathEscape(source)

	if err := f.wait(ctx); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "fetch", "build request", target, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternal, "fetch", "request", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{}, services.Wrap(services.ErrNotFound, "fetch", "request", fmt.Sprintf("%s returned 404", target), nil)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		marker := services.ErrExternal
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			marker = services.ErrTransient
		}
		return Result{}, services.Wrap(marker, "fetch", "request",
			fmt.Sprintf("%s returned %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var data map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&data); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "fetch", "decode", target, err)
	}
	return Result{
		Source:    source,
		URL:       target,
		Data:      data,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// wait blocks until MinInterval has passed since the previous request.
func (f *HTTPFetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.minInterval > 0 && !f.last.IsZero() {
		if remaining := f.minInterval - time.Since(f.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	f.last = time.Now()
	return nil
}

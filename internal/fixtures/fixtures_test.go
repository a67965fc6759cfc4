package fixtures_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"surplus/internal/fixtures"
	"surplus/internal/services"
	"surplus/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	store := fixtures.NewStore(t.TempDir())
	path, err := store.SaveRecord("county/2024-0042", map[string]any{"owner_name": "ada lovelace"})
	if err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	if filepath.Base(path) != "2024-0042.json" {
		t.Fatalf("unexpected fixture path %s", path)
	}
	record, err := store.LoadRecord("county/2024-0042")
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if record["owner_name"] != "ada lovelace" {
		t.Fatalf("unexpected record %v", record)
	}
	text, err := store.ReadText("county/2024-0042.json")
	if err != nil || text == "" {
		t.Fatalf("ReadText: %q err=%v", text, err)
	}
}

func TestStoreMissingAndEscaping(t *testing.T) {
	store := fixtures.NewStore(t.TempDir())
	_, err := store.LoadRecord("nope")
	var notFound *fixtures.NotFoundError
	if !errors.As(err, &notFound) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := store.Path("../outside.json"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected escape to be rejected, got %v", err)
	}
	if _, err := fixtures.NewStore("").Path("x.json"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFetcherOfflineUsesFixtures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFixture(t, cfg.Paths.FixturesDir, "case-1", map[string]any{"case_number": "2024-CV-1"})

	fetcher := fixtures.NewFetcher(cfg)
	result, err := fetcher.Fetch(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !result.FromFixture || result.Data["case_number"] != "2024-CV-1" || result.URL != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHTTPFetcher(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		switch r.URL.Path {
		case "/records/case-1":
			if r.Header.Get("User-Agent") != "surplus-test" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"case_number":"2024-CV-1","amount":"1,250.00"}`))
		case "/records/busy":
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNetwork(server.URL+"/records/"))
	cfg.Fetch.UserAgent = "surplus-test"
	fetcher := fixtures.NewFetcher(cfg)

	result, err := fetcher.Fetch(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.FromFixture || result.Data["amount"] != "1,250.00" {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := fetcher.Fetch(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), "busy"); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 3 requests, got %d", hits)
	}
}

func TestHTTPFetcherRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fetcher := fixtures.NewHTTPFetcher(fixtures.HTTPOptions{BaseURL: server.URL, MinInterval: 60 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := fetcher.Fetch(context.Background(), "x"); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Fatalf("expected requests to be spaced, took %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fetcher.Fetch(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled wait, got %v", err)
	}
}

func TestHTTPFetcherRequiresBaseURL(t *testing.T) {
	fetcher := fixtures.NewHTTPFetcher(fixtures.HTTPOptions{})
	if _, err := fetcher.Fetch(context.Background(), "x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/ehellyer/Hellfire/internal/testutil"
	"github.com/ehellyer/Hellfire/pkg/diskcache"
	"github.com/ehellyer/Hellfire/pkg/policy"
)

func newTestClient(t *testing.T) (*Client, *testutil.StubOrigin) {
	t.Helper()

	cache := diskcache.New(diskcache.Options{
		Root: "/cache",
		FS:   diskcache.NewFileSystem(afero.NewMemMapFs()),
	})
	t.Cleanup(func() { cache.Close() })

	cfg := DefaultConfig(cache, "hellfire-test/1.0")
	cfg.InitialBackoff = 5 * time.Millisecond

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	origin := testutil.NewStubOrigin()
	t.Cleanup(origin.Close)

	return c, origin
}

func TestNew_Validation(t *testing.T) {
	cache := diskcache.New(diskcache.Options{
		Root: "/cache",
		FS:   diskcache.NewFileSystem(afero.NewMemMapFs()),
	})
	defer cache.Close()

	if _, err := New(Config{UserAgent: "x"}); err == nil {
		t.Error("New without cache should fail")
	}
	if _, err := New(Config{Cache: cache}); err == nil {
		t.Error("New without user-agent should fail")
	}

	c, err := New(Config{Cache: cache, UserAgent: "x"})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if c.config.Locale == "" {
		t.Error("locale default not applied")
	}
}

func TestFetch_SecondCallServedFromCache(t *testing.T) {
	c, origin := newTestClient(t)
	origin.SetResponse("/items", testutil.StubResponse{
		StatusCode: http.StatusOK,
		Body:       `{"items": [1, 2, 3]}`,
	})

	req := Request{URL: origin.URL() + "/items", Bucket: policy.Day}

	first, err := c.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	second, err := c.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("cache returned %q, network returned %q", second, first)
	}
	if got := origin.GetRequestCount(); got != 1 {
		t.Errorf("origin saw %d requests, want 1 (second fetch must hit the cache)", got)
	}
}

func TestFetch_DoNotCacheAlwaysHitsNetwork(t *testing.T) {
	c, origin := newTestClient(t)

	req := Request{URL: origin.URL() + "/volatile", Bucket: policy.DoNotCache}

	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(context.Background(), req); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}

	if got := origin.GetRequestCount(); got != 3 {
		t.Errorf("origin saw %d requests, want 3 (DoNotCache must never persist)", got)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	c, origin := newTestClient(t)
	origin.FailTimes("/flaky", 2, http.StatusInternalServerError, `{"ok": true}`)

	data, err := c.Fetch(context.Background(), Request{
		URL:    origin.URL() + "/flaky",
		Bucket: policy.Hour,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(data, []byte(`{"ok": true}`)) {
		t.Errorf("Fetch() = %q", data)
	}
	if got := origin.GetRequestCount(); got != 3 {
		t.Errorf("origin saw %d requests, want 3 (two failures plus success)", got)
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	c, origin := newTestClient(t)
	origin.SetResponse("/missing", testutil.StubResponse{StatusCode: http.StatusNotFound})

	_, err := c.Fetch(context.Background(), Request{
		URL:    origin.URL() + "/missing",
		Bucket: policy.Day,
	})
	if err == nil {
		t.Fatal("fetch of 404 should fail")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %v is not a StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if statusErr.Class != ErrorClassClient {
		t.Errorf("Class = %q, want %q", statusErr.Class, ErrorClassClient)
	}
	if got := origin.GetRequestCount(); got != 1 {
		t.Errorf("origin saw %d requests, want 1 (client errors must not be retried)", got)
	}
}

func TestFetch_RetryExhaustion(t *testing.T) {
	c, origin := newTestClient(t)
	origin.SetResponse("/broken", testutil.StubResponse{StatusCode: http.StatusServiceUnavailable})

	_, err := c.Fetch(context.Background(), Request{
		URL:    origin.URL() + "/broken",
		Bucket: policy.Day,
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if got := origin.GetRequestCount(); got != 3 {
		t.Errorf("origin saw %d requests, want 3 (MaxRetries)", got)
	}
}

func TestFetch_PostBodyPartitionsCache(t *testing.T) {
	c, origin := newTestClient(t)

	pageOne := Request{
		URL:    origin.URL() + "/search",
		Body:   []byte(`{"page": 1}`),
		Bucket: policy.Hour,
	}
	pageTwo := Request{
		URL:    origin.URL() + "/search",
		Body:   []byte(`{"page": 2}`),
		Bucket: policy.Hour,
	}

	if _, err := c.Fetch(context.Background(), pageOne); err != nil {
		t.Fatalf("fetch page one: %v", err)
	}
	// Same URL, different body: must be a distinct cache entry.
	if _, err := c.Fetch(context.Background(), pageTwo); err != nil {
		t.Fatalf("fetch page two: %v", err)
	}
	if got := origin.GetRequestCount(); got != 2 {
		t.Errorf("origin saw %d requests, want 2", got)
	}

	// Repeats of both are now cache hits.
	if _, err := c.Fetch(context.Background(), pageOne); err != nil {
		t.Fatalf("refetch page one: %v", err)
	}
	if _, err := c.Fetch(context.Background(), pageTwo); err != nil {
		t.Fatalf("refetch page two: %v", err)
	}
	if got := origin.GetRequestCount(); got != 2 {
		t.Errorf("origin saw %d requests after refetch, want 2", got)
	}
}

func TestFetch_SendsUserAgentAndLocale(t *testing.T) {
	c, origin := newTestClient(t)

	if _, err := c.Fetch(context.Background(), Request{
		URL:    origin.URL() + "/whoami",
		Bucket: policy.DoNotCache,
	}); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if got := origin.LastRequestHeader.Get("User-Agent"); got != "hellfire-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := origin.LastRequestHeader.Get("Accept-Language"); got != "en-US" {
		t.Errorf("Accept-Language = %q", got)
	}
}

func TestFetch_ContextCancellation(t *testing.T) {
	c, origin := newTestClient(t)
	origin.SetResponse("/slow", testutil.StubResponse{
		StatusCode: http.StatusOK,
		Body:       "late",
		Delay:      2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Fetch(ctx, Request{URL: origin.URL() + "/slow", Bucket: policy.Day}); err == nil {
		t.Fatal("fetch should fail when the context deadline passes")
	}
}

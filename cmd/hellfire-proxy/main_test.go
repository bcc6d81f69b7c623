package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/ehellyer/Hellfire/internal/testutil"
	"github.com/ehellyer/Hellfire/pkg/client"
	"github.com/ehellyer/Hellfire/pkg/diskcache"
	"github.com/ehellyer/Hellfire/pkg/policy"
)

func newMemCache(t *testing.T) *diskcache.Cache {
	t.Helper()
	cache := diskcache.New(diskcache.Options{
		Root: "/cache",
		FS:   diskcache.NewFileSystem(afero.NewMemMapFs()),
	})
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		handler := readyHandler(newMemCache(t))

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
		}
	})

	t.Run("not_ready_cache_disabled", func(t *testing.T) {
		disabled := diskcache.New(diskcache.Options{
			Root: "/cache",
			FS:   diskcache.NewFileSystem(afero.NewReadOnlyFs(afero.NewMemMapFs())),
		})
		defer disabled.Close()
		handler := readyHandler(disabled)

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Result().StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Result().StatusCode)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	// Creating a cache registers all cache metrics.
	newMemCache(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(bodyStr, "hellfire_cache_bytes_used") {
		t.Error("Expected metrics output to contain hellfire_cache_bytes_used")
	}
}

func TestFetchHandler(t *testing.T) {
	origin := testutil.NewStubOrigin()
	defer origin.Close()
	origin.SetResponse("/data", testutil.StubResponse{
		StatusCode: http.StatusOK,
		Body:       `{"cached": true}`,
	})

	fetcher, err := client.New(client.DefaultConfig(newMemCache(t), "test/1.0"))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	handler := fetchHandler(fetcher)

	t.Run("missing_url", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/fetch", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})

	t.Run("fetch_and_cache", func(t *testing.T) {
		url := "/fetch?url=" + origin.URL() + "/data"
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", url, nil)
			req.Header.Set("X-Cache-Policy", "hour")
			w := httptest.NewRecorder()
			handler(w, req)

			resp := w.Result()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("request %d: status %d", i, resp.StatusCode)
			}
			if string(body) != `{"cached": true}` {
				t.Errorf("request %d: body %q", i, body)
			}
		}

		if got := origin.GetRequestCount(); got != 1 {
			t.Errorf("origin saw %d requests, want 1", got)
		}
	})

	t.Run("upstream_error", func(t *testing.T) {
		origin.SetResponse("/broken", testutil.StubResponse{StatusCode: http.StatusNotFound})

		req := httptest.NewRequest("GET", "/fetch?url="+origin.URL()+"/broken", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		if w.Result().StatusCode != http.StatusBadGateway {
			t.Errorf("Expected status 502, got %d", w.Result().StatusCode)
		}
	})
}

func TestParseBucket(t *testing.T) {
	tests := []struct {
		input string
		want  policy.Bucket
	}{
		{"hour", policy.Hour},
		{"four-hours", policy.FourHours},
		{"day", policy.Day},
		{"week", policy.Week},
		{"month", policy.Month},
		{"until-space-needed", policy.UntilSpaceNeeded},
		{"none", policy.DoNotCache},
		{"do-not-cache", policy.DoNotCache},
		{"HOUR", policy.Hour},
		{"", policy.Day},
		{"bogus", policy.Day},
	}

	for _, tt := range tests {
		if got := parseBucket(tt.input); got != tt.want {
			t.Errorf("parseBucket(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("HELLFIRE_TEST_KEY", "set")
	if got := getEnv("HELLFIRE_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("getEnv = %q, want %q", got, "set")
	}
	if got := getEnv("HELLFIRE_TEST_KEY_ABSENT", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want %q", got, "fallback")
	}
}

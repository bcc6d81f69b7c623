// Command hellfire-proxy runs a small caching fetch proxy in front of the
// disk cache: GET /fetch?url=... returns the upstream body, served from disk
// whenever the selected policy bucket still holds a fresh copy.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ehellyer/Hellfire/pkg/client"
	"github.com/ehellyer/Hellfire/pkg/diskcache"
	"github.com/ehellyer/Hellfire/pkg/logging"
	"github.com/ehellyer/Hellfire/pkg/policy"
)

func main() {
	// Configuration from environment
	root := getEnv("CACHE_ROOT", defaultCacheRoot())
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "hellfire-proxy/0.1.0")
	locale := getEnv("LOCALE", "en-US")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "false") == "true",
		Output: os.Stderr,
	})

	cache := diskcache.New(diskcache.Options{Root: root})
	defer cache.Close()
	if cache.Disabled() {
		logger.Warn().
			Str("root", root).
			Msg("Disk cache disabled, every request will hit the network")
	}

	cfg := client.DefaultConfig(cache, userAgent)
	cfg.Locale = locale
	fetcher, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(cache))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/fetch", fetchHandler(fetcher))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("cache_root", root).
		Str("user_agent", userAgent).
		Str("locale", locale).
		Msg("Starting hellfire proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 while the cache is disabled. The proxy still
// works in that state, it just cannot serve from disk.
func readyHandler(cache *diskcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cache.Disabled() {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "cache disabled")
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

func fetchHandler(fetcher *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" || (!strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://")) {
			http.Error(w, "missing or invalid url parameter", http.StatusBadRequest)
			return
		}

		bucket := parseBucket(r.Header.Get("X-Cache-Policy"))

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		data, err := fetcher.Fetch(ctx, client.Request{URL: target, Bucket: bucket})
		if err != nil {
			http.Error(w, fmt.Sprintf("fetch failed: %v", err), http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			logger := logging.NewLogger("hellfire-proxy")
			logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// parseBucket maps the X-Cache-Policy header to a policy bucket. Unknown or
// absent values default to Day.
func parseBucket(name string) policy.Bucket {
	switch strings.ToLower(name) {
	case "hour":
		return policy.Hour
	case "four-hours":
		return policy.FourHours
	case "day":
		return policy.Day
	case "week":
		return policy.Week
	case "month":
		return policy.Month
	case "until-space-needed":
		return policy.UntilSpaceNeeded
	case "none", "do-not-cache":
		return policy.DoNotCache
	default:
		return policy.Day
	}
}

func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/hellfire"
	}
	return "./hellfire-cache"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package client provides the request-execution layer over the disk cache:
// a read-through, write-through HTTP fetcher with retry and error
// classification.
//
// Fetch consults the cache before touching the network, so a hit
// short-circuits the transfer entirely; a successful response is written
// back under the request's policy bucket on the way out. Any nil from the
// cache is treated purely as "not cached", never as "cache broken".
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ehellyer/Hellfire/pkg/diskcache"
	"github.com/ehellyer/Hellfire/pkg/policy"
)

// Prometheus metrics for fetch operations.
var (
	fetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hellfire_fetch_requests_total",
		Help: "Total fetches by outcome (cache_hit, status code, or error class)",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hellfire_fetch_duration_seconds",
		Help:    "Fetch duration in seconds by source",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"}) // "cache", "network"

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hellfire_fetch_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	fetchRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hellfire_fetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// Request describes one fetch through the cache.
type Request struct {
	// URL is the absolute request URL.
	URL string

	// Body is the serialized request body; nil sends a GET, anything else
	// a POST. Serialization happens before the cache ever sees a request.
	Body []byte

	// Bucket selects the expiry/size partition the response is cached
	// under. DoNotCache always goes to the network.
	Bucket policy.Bucket
}

// Config holds the client configuration.
type Config struct {
	// Cache is the disk cache consulted before and after each transfer.
	Cache *diskcache.Cache

	// UserAgent header sent with every request.
	UserAgent string

	// Locale participates in cache key derivation; requests from callers
	// with different locales never share entries.
	Locale string

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(cache *diskcache.Cache, userAgent string) Config {
	return Config{
		Cache:          cache,
		UserAgent:      userAgent,
		Locale:         "en-US",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
	}
}

// Client is the read-through fetcher.
type Client struct {
	httpClient *http.Client
	cache      *diskcache.Cache
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", "hellfire-client").Logger(),
	}, nil
}

// Fetch returns the response body for req, from cache when possible.
//
// The fast path never touches the network: a cached, unexpired entry is
// returned as-is. On a miss the request is executed with retry/backoff
// (server and network errors only), and a successful body is stored under
// req.Bucket before being returned.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	id := diskcache.RequestIdentity{
		URL:    req.URL,
		Body:   req.Body,
		Locale: c.config.Locale,
	}

	startTime := time.Now()
	if data := c.cache.Load(req.Bucket, id); data != nil {
		fetchRequestsTotal.WithLabelValues("cache_hit").Inc()
		fetchDuration.WithLabelValues("cache").Observe(time.Since(startTime).Seconds())
		c.logger.Debug().
			Str("url", req.URL).
			Str("bucket", req.Bucket.String()).
			Bool("cache_hit", true).
			Msg("Served from cache")
		return data, nil
	}

	defer func() {
		fetchDuration.WithLabelValues("network").Observe(time.Since(startTime).Seconds())
	}()

	var data []byte
	retryErr := retryWithBackoff(ctx, c.logger, retryConfig{
		maxAttempts:       c.config.MaxRetries,
		initialBackoff:    c.config.InitialBackoff,
		maxBackoff:        30 * time.Second,
		backoffMultiplier: 2.0,
	}, func() (ErrorClass, error) {
		var attemptErr error
		data, attemptErr = c.attempt(ctx, req)
		if attemptErr == nil {
			return "", nil
		}
		if statusErr, ok := attemptErr.(*StatusError); ok {
			fetchRequestsTotal.WithLabelValues(fmt.Sprintf("%d", statusErr.StatusCode)).Inc()
			return statusErr.Class, attemptErr
		}
		fetchRequestsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return ErrorClassNetwork, attemptErr
	})
	if retryErr != nil {
		c.logger.Warn().
			Err(retryErr).
			Str("url", req.URL).
			Msg("Fetch failed")
		return nil, retryErr
	}

	fetchRequestsTotal.WithLabelValues("200").Inc()
	c.cache.Store(data, req.Bucket, id)
	c.logger.Debug().
		Str("url", req.URL).
		Str("bucket", req.Bucket.String()).
		Bool("cache_hit", false).
		Int("bytes", len(data)).
		Msg("Fetched from network")

	return data, nil
}

// attempt executes one HTTP transfer for req.
func (c *Client) attempt(ctx context.Context, req Request) ([]byte, error) {
	method := http.MethodGet
	var body io.Reader
	if req.Body != nil {
		method = http.MethodPost
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept-Language", c.config.Locale)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			URL:        req.URL,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the underlying disk cache.
func (c *Client) Cache() *diskcache.Cache {
	return c.cache
}

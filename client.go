package rawi

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfadhilr/rawi/internal/backoff"
)

// Defaults applied by New.
const (
	DefaultMaxAttempts   = 3
	DefaultMaxConcurrent = 2
	DefaultCacheTTL      = 24 * time.Hour
)

// Client turns an unreliable, rate-limited remote source into a "fetch typed
// value by logical key" operation: cached reads are served without touching
// the network, concurrent misses for the same key coalesce into one transport
// call, outbound calls are bounded by a process-wide permit pool, and
// failures retry with backoff. It is safe for concurrent use; construct one
// per process and inject it into the content services.
type Client struct {
	transport Transport
	store     Store
	cacheTTL  time.Duration

	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	backoffStrategy   backoff.Strategy

	throttle *Throttle
	inflight *InFlightTracker

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	validationError error
}

// New constructs a Client from the provided functional options. Validation is
// best effort at construction; a configuration error is reported by IsValid
// and returned by the first Fetch.
func New(options ...Option) *Client {
	c := &Client{
		transport:         NewHTTPTransport(nil),
		store:             NewMemoryStore(),
		cacheTTL:          DefaultCacheTTL,
		maxAttempts:       DefaultMaxAttempts,
		initialBackoff:    time.Second,
		maxBackoff:        2 * time.Minute,
		backoffMultiplier: 2.0,
		jitter:            0,
		backoffStrategy:   backoff.Exponential{},
		throttle:          NewThrottle(DefaultMaxConcurrent),
		inflight:          NewInFlightTracker(),
		debug:             DefaultDebugConfig(),
	}

	for _, option := range options {
		option(c)
	}

	if err := c.ValidateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

// Fetch retrieves the typed value for req. With a CacheKey set and
// ForceRefresh false, a fresh cached payload is decoded and returned without
// any network, dedup or throttle involvement. Otherwise the fetch is
// coalesced with concurrent fetches of the same key, throttled, retried, then
// decoded with the two-stage strategy and cached for the configured TTL.
//
// It fails with an *Error of kind InvalidInput, Transport, RateLimited or
// Decoding; cache trouble never surfaces here.
func Fetch[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T

	raw, fromCache, requestID, err := c.fetchRaw(ctx, req)
	if err != nil {
		return zero, err
	}

	value, outcome, err := decodePayload[T](raw)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.RequestID = requestID
			e.URL = req.URL
		}
		if c.metrics != nil {
			c.metrics.RecordError(KindDecoding, endpointFromURL(req.URL))
		}
		return zero, err
	}

	if c.debugEnabled(c.debug.LogCache) {
		c.logger.Debug("payload decoded", "requestID", requestID, "stage", outcome.String(), "cached", fromCache)
	}

	if !fromCache && req.CacheKey != "" {
		if payload, err := json.Marshal(value); err == nil {
			c.store.Set(req.CacheKey, payload, c.ttlFor(req))
			if c.metrics != nil {
				c.metrics.RecordCacheSizeBytes("default", c.store.SizeBytes())
			}
		}
	}

	return value, nil
}

// fetchRaw returns the raw payload for req, from cache when possible.
func (c *Client) fetchRaw(ctx context.Context, req Request) (raw []byte, fromCache bool, requestID string, err error) {
	if c.validationError != nil {
		return nil, false, "", c.validationError
	}
	if c.debug != nil && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if err := validateRequest(req); err != nil {
		return nil, false, requestID, err
	}

	endpoint := endpointFromURL(req.URL)

	if req.CacheKey != "" && !req.ForceRefresh {
		if payload, ok := c.store.Get(req.CacheKey); ok {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(endpoint)
			}
			if c.debugEnabled(c.debug.LogCache) {
				c.logger.Debug("cache hit", "requestID", requestID, "cacheKey", req.CacheKey)
			}
			return payload, true, requestID, nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(endpoint)
		}
		if c.debugEnabled(c.debug.LogCache) {
			c.logger.Debug("cache miss", "requestID", requestID, "cacheKey", req.CacheKey)
		}
	}

	key := req.CacheKey
	if key == "" {
		key = req.URL
	}

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordFetchStart(endpoint)
	}

	raw, shared, err := c.inflight.Do(ctx, key, func(workCtx context.Context) ([]byte, error) {
		return c.fetchWithRetry(workCtx, req, requestID)
	})

	if c.metrics != nil {
		c.metrics.RecordFetchEnd(endpoint)
		statusCode := 0
		if err == nil {
			statusCode = 200
		}
		c.metrics.RecordFetch(endpoint, statusCode, time.Since(start))
		if shared {
			c.metrics.RecordDedupHit(endpoint)
		}
		if err != nil {
			var e *Error
			if errors.As(err, &e) {
				c.metrics.RecordError(e.Kind, endpoint)
			} else {
				c.metrics.RecordError(KindTransport, endpoint)
			}
		}
	}
	if shared && c.debugEnabled(c.debug.LogDedup) {
		c.logger.Debug("joined in-flight fetch", "requestID", requestID, "key", key)
	}

	return raw, false, requestID, err
}

// Prefetch warms the cache for every request concurrently and returns the
// first failure, if any. Warmed entries hold the raw response bytes; the
// two-stage decode accepts both raw enveloped and re-encoded payloads, so a
// later Fetch serves them straight from cache. Requests must carry a
// CacheKey.
func (c *Client) Prefetch(ctx context.Context, reqs ...Request) error {
	if c.validationError != nil {
		return c.validationError
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			if req.CacheKey == "" {
				return &Error{Kind: KindInvalidInput, Message: "prefetch requires a cache key", URL: req.URL}
			}
			if err := validateRequest(req); err != nil {
				return err
			}
			if !req.ForceRefresh {
				if _, ok := c.store.Get(req.CacheKey); ok {
					return nil
				}
			}

			var requestID string
			if c.debug != nil && c.debug.RequestIDGen != nil {
				requestID = c.debug.RequestIDGen()
			}
			raw, _, err := c.inflight.Do(ctx, req.CacheKey, func(workCtx context.Context) ([]byte, error) {
				return c.fetchWithRetry(workCtx, req, requestID)
			})
			if err != nil {
				return err
			}
			c.store.Set(req.CacheKey, raw, c.ttlFor(req))
			return nil
		})
	}
	return g.Wait()
}

// Invalidate removes a single cached entry. Best effort and synchronous.
func (c *Client) Invalidate(cacheKey string) {
	c.store.Delete(cacheKey)
}

// InvalidateAll drops every cached entry. Callers are responsible for
// invalidating when the meaning of a key's payload format changes; the cache
// cannot detect semantic versioning mismatches on its own.
func (c *Client) InvalidateAll() {
	c.store.Clear()
}

// CacheSizeBytes reports the total size of the cached entries.
func (c *Client) CacheSizeBytes() int64 {
	return c.store.SizeBytes()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) ttlFor(req Request) time.Duration {
	if req.TTL > 0 {
		return req.TTL
	}
	return c.cacheTTL
}

func (c *Client) debugEnabled(flag bool) bool {
	return c.debug != nil && c.debug.Enabled && flag && c.logger != nil
}

func (c *Client) newError(kind Kind, message string, cause error, requestID string, req Request, attempt int) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		Cause:       cause,
		RequestID:   requestID,
		URL:         req.URL,
		Attempt:     attempt,
		MaxAttempts: c.maxAttempts,
	}
}

func validateRequest(req Request) error {
	if req.URL == "" {
		return &Error{Kind: KindInvalidInput, Message: "request URL required"}
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return &Error{Kind: KindInvalidInput, Message: "malformed request URL", Cause: err, URL: req.URL}
	}
	if !u.IsAbs() || u.Host == "" {
		return &Error{Kind: KindInvalidInput, Message: "request URL must be absolute", URL: req.URL}
	}
	return nil
}

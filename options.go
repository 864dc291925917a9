package rawi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mfadhilr/rawi/internal/backoff"
)

// WithTransport sets the transport collaborator.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient uses client as the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.transport = NewHTTPTransport(client)
	}
}

// WithStore sets a custom cache store.
func WithStore(store Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithDiskCache backs the cache with a DiskStore under dir. A store
// construction failure is reported by IsValid / ValidationError.
func WithDiskCache(dir string, opts ...DiskOption) Option {
	return func(c *Client) {
		store, err := NewDiskStore(dir, opts...)
		if err != nil {
			c.validationError = err
			return
		}
		c.store = store
	}
}

// WithCacheTTL sets the default TTL applied to cached payloads.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithMaxAttempts sets the total number of transport attempts per fetch.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithMaxConcurrent bounds simultaneous outbound transport calls.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		c.throttle = NewThrottle(n)
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff caps retry delays.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffMultiplier sets the per-attempt delay growth factor.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitter sets the jitter factor for backoff, clamped to [0, 1].
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithBackoffStrategy swaps the delay calculation algorithm.
func WithBackoffStrategy(s backoff.Strategy) Option {
	return func(c *Client) {
		c.backoffStrategy = s
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with the default stderr logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the current configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets the request id generator used in logs and
// errors.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration checks the assembled configuration and returns an
// InvalidInput error describing every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateDebugConfig()...)

	if c.transport == nil {
		problems = append(problems, "transport cannot be nil")
	}
	if c.validationError != nil {
		problems = append(problems, c.validationError.Error())
	}

	if len(problems) > 0 {
		return &Error{
			Kind:    KindInvalidInput,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxAttempts <= 0 {
		problems = append(problems, "maxAttempts must be positive")
	}
	if c.initialBackoff <= 0 {
		problems = append(problems, "initialBackoff must be positive")
	}
	if c.maxBackoff < c.initialBackoff {
		problems = append(problems, "maxBackoff must be greater than or equal to initialBackoff")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.backoffStrategy == nil {
		problems = append(problems, "backoffStrategy cannot be nil")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.store == nil {
		problems = append(problems, "store cannot be nil")
	}
	if c.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive")
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

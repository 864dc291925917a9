package rawi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Request describes one logical fetch. The caller owns endpoint templating:
// URL must arrive fully formed. CacheKey identifies the cacheable unit and
// must be stable across process runs; two requests with the same CacheKey are
// interchangeable for caching and deduplication. When CacheKey is empty the
// response is never cached and deduplication falls back to the URL.
type Request struct {
	URL          string
	Header       http.Header
	CacheKey     string
	ForceRefresh bool

	// TTL overrides the client-wide cache TTL when positive.
	TTL time.Duration
}

// Response is the transport-level result of issuing a Request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues a single outbound call. Implementations own their
// wall-clock timeout; the client only reacts to the outcome. Errors reported
// by Transient are retried, everything else fails the fetch immediately.
type Transport interface {
	Issue(ctx context.Context, req Request) (*Response, error)
}

// Store is a key -> payload cache with TTL expiry. Implementations absorb
// their own I/O failures: a failed write behaves as if the value was never
// cached, and a failed or corrupt read is a miss. All methods must be safe
// for concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte, ttl time.Duration)
	Delete(key string)
	Clear()
	SizeBytes() int64
	Len() int
}

// Option configures the Client.
type Option func(*Client)

// DebugConfig controls per-concern debug logging. A Logger must also be set
// for any output to appear.
type DebugConfig struct {
	Enabled     bool
	LogRetries  bool
	LogCache    bool
	LogDedup    bool
	LogThrottle bool

	// RequestIDGen produces the id attached to log lines and errors for one
	// logical fetch.
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every concern flagged on,
// so WithDebug turns everything on at once.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRetries:   true,
		LogCache:     true,
		LogDedup:     true,
		LogThrottle:  true,
		RequestIDGen: uuid.NewString,
	}
}

// Package rawi turns an unreliable, rate-limited remote content source into a
// caller-facing "fetch typed value by logical key" operation:
//
//   - Persistent expiring cache with a size bound and LRU eviction (disk,
//     memory or Redis backed)
//   - Request coalescing: concurrent fetches of one key share a single
//     outbound call and its result
//   - A process-wide concurrency throttle with FIFO permit hand-off
//   - Bounded retry with exponential backoff, honoring server-supplied
//     Retry-After delays
//   - Two-stage decoding: enveloped responses first, raw payloads second
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Caching is an optimization, never a correctness dependency; local
//     storage failures are absorbed, logged and counted
//   - Safe concurrent use of a single *Client instance per process
//
// Typical usage:
//
//	client := rawi.New(
//	    rawi.WithDiskCache("/var/cache/content"),
//	    rawi.WithMaxConcurrent(2),
//	    rawi.WithMaxAttempts(3),
//	)
//	chapter, err := rawi.Fetch[Chapter](ctx, client, rawi.Request{
//	    URL:      "https://api.example.com/v1/chapter/2",
//	    CacheKey: "chapter_2",
//	})
//
// Payloads are opaque to the cache and dedup layers; the library neither
// constructs URLs nor understands the domain data it transports.
package rawi

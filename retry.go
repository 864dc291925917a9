package rawi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// fetchWithRetry drives one logical fetch: acquire a concurrency permit, call
// the transport, retry rate limiting and transient failures with backoff. The
// permit is held across attempts, including backoff sleeps, and released on
// every exit path.
func (c *Client) fetchWithRetry(ctx context.Context, req Request, requestID string) ([]byte, error) {
	endpoint := endpointFromURL(req.URL)

	waitStart := time.Now()
	if err := c.throttle.Acquire(ctx); err != nil {
		return nil, c.newError(KindTransport, "canceled while waiting for a transport permit", err, requestID, req, 0)
	}
	defer c.throttle.Release()
	if c.metrics != nil {
		c.metrics.RecordThrottleWait(time.Since(waitStart))
	}
	if c.debugEnabled(c.debug.LogThrottle) {
		c.logger.Debug("permit acquired", "requestID", requestID, "endpoint", endpoint, "waited", time.Since(waitStart))
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry(endpoint, attempt)
			}
			if c.debugEnabled(c.debug.LogRetries) {
				c.logger.Info("retry attempt", "requestID", requestID, "attempt", attempt, "maxAttempts", c.maxAttempts, "endpoint", endpoint)
			}
		}

		resp, err := c.transport.Issue(ctx, req)
		if err != nil {
			if !Transient(err) {
				return nil, c.newError(KindTransport, "transport call failed", err, requestID, req, attempt)
			}
			lastErr = err
			if attempt == c.maxAttempts-1 {
				break
			}
			if serr := c.sleep(ctx, c.backoffDelay(attempt)); serr != nil {
				return nil, c.newError(KindTransport, "canceled during retry backoff", serr, requestID, req, attempt)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			e := c.newError(KindRateLimited, "server throttled the request", nil, requestID, req, attempt)
			e.StatusCode = resp.StatusCode
			lastErr = e
			if attempt == c.maxAttempts-1 {
				break
			}
			delay := parseRetryAfter(resp.Header.Get("Retry-After"))
			if delay == 0 {
				delay = c.backoffDelay(attempt)
			}
			if c.debugEnabled(c.debug.LogRetries) {
				c.logger.Warn("rate limited", "requestID", requestID, "endpoint", endpoint, "delay", delay)
			}
			if serr := c.sleep(ctx, delay); serr != nil {
				return nil, c.newError(KindRateLimited, "canceled during rate-limit backoff", serr, requestID, req, attempt)
			}
			continue

		case resp.StatusCode >= 500:
			e := c.newError(KindTransport, "server error", nil, requestID, req, attempt)
			e.StatusCode = resp.StatusCode
			lastErr = e
			if attempt == c.maxAttempts-1 {
				break
			}
			if serr := c.sleep(ctx, c.backoffDelay(attempt)); serr != nil {
				return nil, c.newError(KindTransport, "canceled during retry backoff", serr, requestID, req, attempt)
			}
			continue

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil

		default:
			e := c.newError(KindTransport, "unexpected response status", nil, requestID, req, attempt)
			e.StatusCode = resp.StatusCode
			return nil, e
		}
	}

	var typed *Error
	if errors.As(lastErr, &typed) {
		typed.Attempt = c.maxAttempts - 1
		typed.MaxAttempts = c.maxAttempts
		return nil, typed
	}
	return nil, c.newError(KindTransport, "attempts exhausted", lastErr, requestID, req, c.maxAttempts-1)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	return c.backoffStrategy.Delay(attempt, c.initialBackoff, c.maxBackoff, c.backoffMultiplier, c.jitter)
}

// sleep waits for d or until ctx is done.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form. The result is capped at one hour; unparseable values yield
// zero so the caller falls back to computed backoff.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay <= 0 {
			return 0
		}
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	return 0
}

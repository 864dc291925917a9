package rawi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// maxResponseSize caps how much of a response body is read into memory.
const maxResponseSize = 10 * 1024 * 1024

// HTTPTransport adapts a *http.Client to the Transport interface. Request
// timeouts belong to the underlying http.Client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client; a nil client gets a 30 second timeout
// default.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

// Issue performs a single GET against req.URL and returns the status, headers
// and body. Network failures come back as-is for classification by Transient.
func (t *HTTPTransport) Issue(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Transient reports whether a transport error is worth retrying. Connectivity
// failures, timeouts and truncated reads qualify; everything else fails the
// fetch immediately.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.DeadlineExceeded)
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"tracker/internal/form"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx
// HTTP status.
var ErrUnexpectedStatus = errors.New("unexpected http status")

const maxResponseBytes = 1 << 20

// Client submits batches to a remote JSON-RPC endpoint. It implements
// form.BatchSender.
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Int64
	logger *slog.Logger
}

var _ form.BatchSender = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the overall request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client posting to url (e.g. http://host/finance/submit).
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:    url,
		http:   newPooledHTTPClient(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitEntries sends entries in a single call. Any failure to obtain a
// well-formed result (network, HTTP status, decoding, JSON-RPC error object)
// is returned as an error.
func (c *Client) SubmitEntries(ctx context.Context, entries []form.Entry) (form.Result, error) {
	req := NewRequest(c.nextID.Add(1), entries)
	body, err := json.Marshal(req)
	if err != nil {
		return form.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return form.Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return form.Result{}, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return form.Result{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var rpcResp Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rpcResp); err != nil {
		return form.Result{}, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return form.Result{}, rpcResp.Error
	}
	if rpcResp.Result == nil {
		return form.Result{}, errors.New("response has neither result nor error")
	}

	c.logger.DebugContext(ctx, "Batch submitted",
		"url", c.url,
		"count", len(entries),
		"status", rpcResp.Result.Status,
		"duration_ms", time.Since(start).Milliseconds())
	return *rpcResp.Result, nil
}

// newPooledHTTPClient returns a keep-alive client with bounded timeouts.
func newPooledHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

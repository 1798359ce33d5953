// Package httptp is the gateway's subgraph-facing HTTP transport: one pooled
// *http.Client per subgraph origin, deadline propagation, and retry for
// idempotent requests only. It keeps one long-lived *http.Client per origin
// rather than a checked-in/checked-out pool, since an *http.Client already
// multiplexes concurrent requests over its own pooled keep-alive
// connections — checking a single client in and out of a channel would only
// serialize unrelated subgraph calls for no benefit.
package httptp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	eventbus "github.com/fedgraph/gateway/internal/eventbus"
	events "github.com/fedgraph/gateway/internal/events"
)

// Transport dispatches partition documents to subgraphs over HTTP.
type Transport struct {
	opts *Options

	mu      sync.RWMutex
	clients map[string]*http.Client // key: scheme://host
	closed  atomic.Bool
}

// New builds a Transport. Without WithClient, one *http.Client is lazily
// created per distinct subgraph origin the first time it is dialed.
func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	return &Transport{opts: o, clients: make(map[string]*http.Client)}
}

// RetryPolicy mirrors schemaindex.RetryPolicy; kept independent so this
// package does not need to import schemaindex.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelayMS int
	MaxDelayMS  int
}

// Request is one subgraph document dispatch: a root operation document or an
// _entities(representations:...) document, with headers already resolved by
// the header-rule hook.
type Request struct {
	Subgraph      string
	URL           string
	Headers       http.Header
	Query         string
	Variables     map[string]any
	OperationName string
	// Idempotent gates retry: mutations are never retried (§4.5), queries and
	// entity fetches may be.
	Idempotent bool
	Retry      RetryPolicy
}

// Response is a subgraph's decoded GraphQL-over-HTTP response body.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []SubgraphError `json:"errors"`
}

// SubgraphError is one entry of a subgraph response's top-level errors
// array, still in the subgraph's own response-relative path shape; the
// executor reinterprets Path relative to the dispatching partition's root
// (§5 subgraph protocol) before writing it into the response store.
type SubgraphError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type wireRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Do dispatches req and returns its decoded response. Non-idempotent
// requests (mutations) are attempted exactly once regardless of Retry.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("httptp: transport closed")
	}

	body, err := json.Marshal(wireRequest{Query: req.Query, Variables: req.Variables, OperationName: req.OperationName})
	if err != nil {
		return nil, fmt.Errorf("httptp: encode subgraph request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && t.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RequestTimeout)
		defer cancel()
	}

	attempt := func() (*Response, error) {
		start := time.Now()
		eventbus.Publish(ctx, events.SubgraphRequestStart{Subgraph: req.Subgraph, URL: req.URL})
		resp, err := t.doOnce(ctx, req, body)
		eventbus.Publish(ctx, events.SubgraphRequestFinish{
			Subgraph: req.Subgraph,
			URL:      req.URL,
			Err:      err,
			Duration: time.Since(start),
		})
		return resp, err
	}

	if !req.Idempotent || req.Retry.MaxAttempts <= 1 {
		return attempt()
	}

	b := backoff.NewExponentialBackOff()
	if req.Retry.BaseDelayMS > 0 {
		b.InitialInterval = time.Duration(req.Retry.BaseDelayMS) * time.Millisecond
	}
	if req.Retry.MaxDelayMS > 0 {
		b.MaxInterval = time.Duration(req.Retry.MaxDelayMS) * time.Millisecond
	}

	return backoff.Retry(ctx, attempt, backoff.WithBackOff(b), backoff.WithMaxTries(uint(req.Retry.MaxAttempts)))
}

func (t *Transport) doOnce(ctx context.Context, req Request, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptp: build subgraph request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	client := t.clientFor(req.URL)
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httptp: subgraph %s request failed: %w", req.Subgraph, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("httptp: read subgraph %s response: %w", req.Subgraph, err)
	}
	if httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("httptp: subgraph %s returned status %d", req.Subgraph, httpResp.StatusCode)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("httptp: decode subgraph %s response: %w", req.Subgraph, err)
	}
	return &resp, nil
}

func (t *Transport) clientFor(rawURL string) *http.Client {
	if t.opts.Client != nil {
		return t.opts.Client
	}
	origin := originOf(rawURL)

	t.mu.RLock()
	c := t.clients[origin]
	t.mu.RUnlock()
	if c != nil {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.clients[origin]; c != nil {
		return c
	}
	c = &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     t.opts.MaxConnsPerHost,
			MaxIdleConnsPerHost: t.opts.MaxIdleConnsPerHost,
			IdleConnTimeout:     t.opts.IdleConnTimeout,
		},
	}
	t.clients[origin] = c
	return c
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// Close releases every pooled client's idle connections. Safe to call once;
// subsequent calls are no-ops.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.clients {
		c.CloseIdleConnections()
	}
	t.clients = map[string]*http.Client{}
	return nil
}

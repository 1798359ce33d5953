package httptp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	eventbus "github.com/fedgraph/gateway/internal/eventbus"
	events "github.com/fedgraph/gateway/internal/events"
)

// StreamItem is one emitted event of a subscription stream: exactly one of
// Response or Err is set. An Err does not close the stream by itself — the
// caller decides whether a decode failure on one event should end the
// subscription or simply be surfaced as that item's error.
type StreamItem struct {
	Response *Response
	Err      error
}

// DoStream dispatches a subscription root document to its subgraph over the
// GraphQL-over-SSE distributed subscription protocol: a normal POST carrying
// Accept: text/event-stream, answered with one "event: next" / "data: {...}"
// frame per emitted item and a terminal "event: complete" (the same framing
// serveSSE writes to gateway clients, read back in reverse here). The
// returned channel is closed when the subgraph sends "complete", the
// connection drops, or ctx is canceled; retry/Idempotent on req are ignored,
// since a subscription is never safe to transparently restart mid-stream.
func (t *Transport) DoStream(ctx context.Context, req Request) (<-chan StreamItem, error) {
	if t.closed.Load() {
		return nil, fmt.Errorf("httptp: transport closed")
	}

	body, err := json.Marshal(wireRequest{Query: req.Query, Variables: req.Variables, OperationName: req.OperationName})
	if err != nil {
		return nil, fmt.Errorf("httptp: encode subgraph request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptp: build subgraph request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	eventbus.Publish(ctx, events.SubgraphRequestStart{Subgraph: req.Subgraph, URL: req.URL})
	httpResp, err := t.clientFor(req.URL).Do(httpReq)
	if err != nil {
		eventbus.Publish(ctx, events.SubgraphRequestFinish{Subgraph: req.Subgraph, URL: req.URL, Err: err})
		return nil, fmt.Errorf("httptp: subgraph %s stream request failed: %w", req.Subgraph, err)
	}
	if httpResp.StatusCode >= 300 {
		httpResp.Body.Close()
		err := fmt.Errorf("httptp: subgraph %s returned status %d for a subscription dial", req.Subgraph, httpResp.StatusCode)
		eventbus.Publish(ctx, events.SubgraphRequestFinish{Subgraph: req.Subgraph, URL: req.URL, Err: err})
		return nil, err
	}

	out := make(chan StreamItem)
	go func() {
		defer close(out)
		defer httpResp.Body.Close()
		defer eventbus.Publish(ctx, events.SubgraphRequestFinish{Subgraph: req.Subgraph, URL: req.URL})
		scanSubgraphEvents(ctx, httpResp.Body, req.Subgraph, out)
	}()
	return out, nil
}

// scanSubgraphEvents reads SSE-framed "event:"/"data:" lines off body,
// decoding each accumulated data block as one subgraph Response, until an
// "event: complete" frame, EOF, or ctx cancellation.
func scanSubgraphEvents(ctx context.Context, body io.Reader, subgraph string, out chan<- StreamItem) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)

	var dataLines []string
	flush := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		raw := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]
		var resp Response
		item := StreamItem{Response: &resp}
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			item = StreamItem{Err: fmt.Errorf("httptp: decode subgraph %s stream event: %w", subgraph, err)}
		}
		select {
		case out <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			if strings.TrimSpace(strings.TrimPrefix(line, "event:")) == "complete" {
				return
			}
		}
	}
	flush()
}

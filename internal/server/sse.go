package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	planner "github.com/fedgraph/gateway/internal/planner"
)

// serveSSE answers a subscription as a text/event-stream (§6): one "next"
// event per item the executor emits, then a terminal "complete".
func (h *Handler) serveSSE(ctx context.Context, w http.ResponseWriter, req GraphQLRequest, op *boundop.Operation, plan *planner.Plan, headers http.Header, token hooks.AuthToken) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, errorResponse("streaming unsupported by this response writer"), h.opt.Pretty)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.runPlannedStream(ctx, req, op, plan, string(op.Kind), headers, token, func(result specResult) {
		writeSSEEvent(w, "next", result)
		flusher.Flush()
	})
	writeSSEEvent(w, "complete", nil)
	flusher.Flush()
}

func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data == nil {
		fmt.Fprint(w, "data: {}\n\n")
		return
	}
	enc, err := json.Marshal(data)
	if err != nil {
		fmt.Fprint(w, "data: {}\n\n")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", enc)
}

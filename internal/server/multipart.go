package server

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/textproto"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	planner "github.com/fedgraph/gateway/internal/planner"
)

// serveMultipart answers a subscription as a multipart/mixed incremental
// delivery stream (§6), one part per item the executor emits.
func (h *Handler) serveMultipart(ctx context.Context, w http.ResponseWriter, req GraphQLRequest, op *boundop.Operation, plan *planner.Plan, headers http.Header, token hooks.AuthToken) {
	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", `multipart/mixed; boundary="`+mw.Boundary()+`"`)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	h.runPlannedStream(ctx, req, op, plan, string(op.Kind), headers, token, func(result specResult) {
		enc, err := json.Marshal(result)
		if err == nil {
			part, perr := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=utf-8"}})
			if perr == nil {
				_, _ = part.Write(enc)
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
	})
	_ = mw.Close()
	if flusher != nil {
		flusher.Flush()
	}
}

package server

import (
	"context"
	"net/http"
	"strings"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	planner "github.com/fedgraph/gateway/internal/planner"
)

// serveStream answers a subscription operation received as a plain
// POST/GET over whichever streaming transport the client asked for (§6):
// text/event-stream or multipart/mixed. A graphql-transport-ws client
// never reaches this function: it upgrades before a query is even sent
// (see ServeHTTP), and each subscribe message is planned and run directly
// by ws.go's handleSubscribe.
//
// Each emits one outbound event per item the executor's subscription
// stream produces (executor.Executor.ExecuteSubscription), re-driving the
// rest of the plan DAG per item per §4.5; a subgraph dialed over a
// Transport that cannot stream (httptp.Transport.DoStream) falls back to
// exactly one item.
func (h *Handler) serveStream(ctx context.Context, w http.ResponseWriter, r *http.Request, req GraphQLRequest, op *boundop.Operation, plan *planner.Plan, headers http.Header, token hooks.AuthToken) {
	if wantsMultipart(r) {
		h.serveMultipart(ctx, w, req, op, plan, headers, token)
		return
	}
	h.serveSSE(ctx, w, req, op, plan, headers, token)
}

func websocketUpgradeRequested(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func wantsMultipart(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "multipart/mixed")
}

// Package server exposes the gateway over GraphQL-over-HTTP: a POST/GET
// JSON endpoint for queries and mutations, and SSE/multipart/mixed/
// graphql-transport-ws streams for subscriptions (§6). This is also where
// the four request-scoped hook points that authenticate/on_request/
// authorize_query/authorize_response none of the executor's own DAG
// scheduling needs are invoked, since they each need something only this
// layer has: the raw request, the bound operation's own selections, or the
// fully materialized response.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	eventbus "github.com/fedgraph/gateway/internal/eventbus"
	events "github.com/fedgraph/gateway/internal/events"
	executor "github.com/fedgraph/gateway/internal/executor"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	language "github.com/fedgraph/gateway/internal/language"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	planner "github.com/fedgraph/gateway/internal/planner"
	reqid "github.com/fedgraph/gateway/internal/reqid"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
)

// Handler is an http.Handler serving one schema's GraphQL endpoint.
type Handler struct {
	idx  *schemaindex.Index
	exec *executor.Executor
	opt  Options
}

// Options configures a Handler. Every hook field is optional; a nil hook
// means that extension point is simply skipped.
type Options struct {
	// Timeout bounds request execution if the incoming context has no
	// deadline of its own. 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the request body size. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. Disabled when AllowedOrigins is empty.
	CORS CORSOptions

	// GraphiQL serves the in-browser IDE on a bare GET.
	GraphiQL bool

	Authenticator      hooks.Authenticator
	RequestHook        hooks.RequestHook
	QueryAuthorizer    hooks.QueryAuthorizer
	ResponseAuthorizer hooks.ResponseAuthorizer
}

type CORSOptions struct {
	AllowedOrigins []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option   { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                   { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option      { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option      { return func(o *Options) { o.GraphiQL = enable } }
func WithCORS(origins ...string) Option    { return func(o *Options) { o.CORS.AllowedOrigins = origins } }
func WithAuthenticator(a hooks.Authenticator) Option {
	return func(o *Options) { o.Authenticator = a }
}
func WithRequestHook(h hooks.RequestHook) Option { return func(o *Options) { o.RequestHook = h } }
func WithQueryAuthorizer(a hooks.QueryAuthorizer) Option {
	return func(o *Options) { o.QueryAuthorizer = a }
}
func WithResponseAuthorizer(a hooks.ResponseAuthorizer) Option {
	return func(o *Options) { o.ResponseAuthorizer = a }
}

// New creates a GraphQL HTTP handler over idx, dispatching through exec.
func New(idx *schemaindex.Index, exec *executor.Executor, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{idx: idx, exec: exec, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.NewContext(ctx)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if websocketUpgradeRequested(r) {
		h.serveWebSocket(ctx, w, r)
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	headers := r.Header.Clone()
	headers.Set("graphql-request-id", rid)
	if h.opt.RequestHook != nil {
		hh, err := h.opt.RequestHook.OnRequest(ctx, headers)
		if err != nil {
			status = http.StatusForbidden
			writeJSON(w, status, errorResponse(err.Error()), h.opt.Pretty)
			return
		}
		headers = hh
	}

	var token hooks.AuthToken
	if h.opt.Authenticator != nil {
		t, err := h.opt.Authenticator.Authenticate(ctx, headers)
		if err != nil {
			status = http.StatusUnauthorized
			writeJSON(w, status, errorResponse(err.Error()), h.opt.Pretty)
			return
		}
		token = t
	}

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr == errBodyTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr.Error()), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]any, len(batch))
		for i := range batch {
			out[i] = h.runQuery(ctx, batch[i], headers, token)
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	op, plan, opType, perr := h.plan(req)
	if perr != nil {
		writeJSON(w, status, errorResponse(perr.Error()), h.opt.Pretty)
		return
	}

	if opType == string(language.Subscription) {
		h.serveStream(ctx, w, r, req, op, plan, headers, token)
		return
	}

	res := h.runPlanned(ctx, req, op, plan, opType, headers, token)
	writeJSON(w, status, res, h.opt.Pretty)
}

// plan binds, graphs, solves and finalizes req into a runnable Plan.
func (h *Handler) plan(req GraphQLRequest) (*boundop.Operation, *planner.Plan, string, error) {
	op, err := boundop.Bind(h.idx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		return nil, nil, "", err
	}
	g, err := opgraph.Build(h.idx, op)
	if err != nil {
		return nil, nil, "", err
	}
	solved, err := solver.Solve(h.idx, g)
	if err != nil {
		return nil, nil, "", err
	}
	p, err := planner.Finalize(h.idx, op, g, solved)
	if err != nil {
		return nil, nil, "", err
	}
	return op, p, string(op.Kind), nil
}

// runQuery plans and runs one request, rejecting a subscription outright:
// subscriptions never appear inside a JSON batch or as a plain POST/GET
// response, only through serveStream.
func (h *Handler) runQuery(ctx context.Context, req GraphQLRequest, headers http.Header, token hooks.AuthToken) specResult {
	op, plan, opType, err := h.plan(req)
	if err != nil {
		return errorResponse(err.Error())
	}
	if opType == string(language.Subscription) {
		return errorResponse("subscriptions are not supported in a batched request")
	}
	return h.runPlanned(ctx, req, op, plan, opType, headers, token)
}

// runPlanned authorizes and executes an already-finalized plan.
func (h *Handler) runPlanned(ctx context.Context, req GraphQLRequest, op *boundop.Operation, plan *planner.Plan, opType string, headers http.Header, token hooks.AuthToken) specResult {
	var queryState any
	if h.opt.QueryAuthorizer != nil {
		elements := queryElements(h.idx, op)
		decisions, state, err := h.opt.QueryAuthorizer.AuthorizeQuery(ctx, token, elements)
		if err != nil {
			return errorResponse(err.Error())
		}
		queryState = state
		if denied := deniedElements(decisions); len(denied) > 0 {
			return deniedResponse(denied)
		}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	result := h.exec.Execute(ctx, plan, headers)
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query: req.Query, OperationName: req.OperationName, OperationType: opType,
		Errors: errs, Duration: time.Since(start),
	})

	if h.opt.ResponseAuthorizer != nil {
		applyResponseAuthorization(ctx, h.opt.ResponseAuthorizer, queryState, result)
	}
	return toSpecResult(result)
}

// runPlannedStream authorizes the query once, then re-drives the executor's
// per-item subscription stream (§4.5), applying response authorization and
// emitting one specResult per item via emit. emit is called synchronously
// from this goroutine, in item order, until the executor's stream closes.
func (h *Handler) runPlannedStream(ctx context.Context, req GraphQLRequest, op *boundop.Operation, plan *planner.Plan, opType string, headers http.Header, token hooks.AuthToken, emit func(specResult)) {
	var queryState any
	if h.opt.QueryAuthorizer != nil {
		elements := queryElements(h.idx, op)
		decisions, state, err := h.opt.QueryAuthorizer.AuthorizeQuery(ctx, token, elements)
		if err != nil {
			emit(errorResponse(err.Error()))
			return
		}
		queryState = state
		if denied := deniedElements(decisions); len(denied) > 0 {
			emit(deniedResponse(denied))
			return
		}
	}

	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	start := time.Now()
	items := h.exec.ExecuteSubscription(ctx, plan, headers)
	for result := range items {
		errs := make([]error, len(result.Errors))
		for i := range result.Errors {
			errs[i] = result.Errors[i]
		}
		eventbus.Publish(ctx, events.GraphQLFinish{
			Query: req.Query, OperationName: req.OperationName, OperationType: opType,
			Errors: errs, Duration: time.Since(start),
		})
		if h.opt.ResponseAuthorizer != nil {
			applyResponseAuthorization(ctx, h.opt.ResponseAuthorizer, queryState, result)
		}
		emit(toSpecResult(result))
	}
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

var errBodyTooLarge = &requestError{"body too large"}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, &requestError{"missing 'query'"}
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, &requestError{"invalid 'variables' JSON"}
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct == "" || ct == "application/json" || strings.HasPrefix(ct, "application/json;") {
		reader := io.Reader(r.Body)
		if maxBody > 0 {
			reader = io.LimitReader(r.Body, maxBody+1)
		}
		body, err := io.ReadAll(reader)
		if err != nil {
			return GraphQLRequest{}, nil, &requestError{"failed to read body"}
		}
		defer r.Body.Close()
		if maxBody > 0 && int64(len(body)) > maxBody {
			return GraphQLRequest{}, nil, errBodyTooLarge
		}

		if len(body) > 0 && body[0] == '[' {
			var arr []GraphQLRequest
			if err := json.Unmarshal(body, &arr); err != nil {
				return GraphQLRequest{}, nil, &requestError{"invalid JSON"}
			}
			if len(arr) == 0 {
				return GraphQLRequest{}, nil, &requestError{"empty batch"}
			}
			return GraphQLRequest{}, arr, nil
		}

		var req GraphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return GraphQLRequest{}, nil, &requestError{"invalid JSON"}
		}
		if req.Query == "" {
			return GraphQLRequest{}, nil, &requestError{"missing 'query'"}
		}
		if req.Variables == nil {
			req.Variables = map[string]any{}
		}
		return req, nil, nil
	}

	return GraphQLRequest{}, nil, &requestError{"unsupported Content-Type"}
}

// ------------------ Response formatting ------------------

type specError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(message string) specResult {
	return specResult{Errors: []specError{{Message: message}}}
}

func toSpecResult(res *executor.ExecutionResult) specResult {
	out := specResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]specError, len(res.Errors))
	for i, e := range res.Errors {
		se := specError{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				if pe.IsIndex {
					se.Path[j] = pe.Index
				} else {
					se.Path[j] = pe.Key
				}
			}
		}
		out.Errors[i] = se
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	wildcard := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
			allowed = true
			break
		}
		if o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	if accept == "" {
		return false
	}
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}

// Package hooks defines the gateway's extension points (§6) and a small set
// of concrete adapters for them: header-rule evaluation, an entity cache
// backed by gocloud.dev/blob, and a gRPC sidecar for query/response
// authorization.
package hooks

import (
	"context"
	"net/http"
	"time"
)

// AuthToken is the opaque state authenticate produces; it threads through
// on_request, authorize_query and, via the state authorize_query returns, to
// authorize_response.
type AuthToken struct {
	Subject string
	Claims  map[string]any
}

// Authenticator implements authenticate(headers) -> token | error-response.
type Authenticator interface {
	Authenticate(ctx context.Context, headers http.Header) (AuthToken, error)
}

// RequestHook implements on_request(headers, ctx) -> headers | short-circuit
// response. Returning an error short-circuits the request with that error.
type RequestHook interface {
	OnRequest(ctx context.Context, headers http.Header) (http.Header, error)
}

// QueryElement is one selection authorize_query is asked to decide on: a
// field occurrence identified by its parent type and field name.
type QueryElement struct {
	Path      []string
	TypeName  string
	FieldName string
}

// Decision is one query element's authorization outcome.
type Decision struct {
	Element QueryElement
	Allow   bool
	Reason  string
}

// QueryAuthorizer implements authorize_query(token, query-elements) ->
// decisions + state. The returned state is opaque to the gateway and passed
// back verbatim to AuthorizeResponse.
type QueryAuthorizer interface {
	AuthorizeQuery(ctx context.Context, token AuthToken, elements []QueryElement) (decisions []Decision, state any, err error)
}

// ResponseElement is one already-written response object authorize_response
// is asked to grant or deny (§4.6 response modifiers).
type ResponseElement struct {
	Path     []string
	TypeName string
	Fields   map[string]any
}

// ResponseDecision is authorize_response's per-object verdict. A denied
// object's field is written null with Reason attached, then propagated per
// §4.6's standard nullability cascade.
type ResponseDecision struct {
	Path   []string
	Denied bool
	Reason string
}

// ResponseAuthorizer implements authorize_response(state, response-elements)
// -> decisions.
type ResponseAuthorizer interface {
	AuthorizeResponse(ctx context.Context, state any, elements []ResponseElement) ([]ResponseDecision, error)
}

// SubgraphRequestHook implements on_subgraph_request(subgraph, method, url,
// headers) -> headers | error, run immediately before a subgraph dispatch.
type SubgraphRequestHook interface {
	OnSubgraphRequest(ctx context.Context, subgraph, method, url string, headers http.Header) (http.Header, error)
}

// SubgraphResponseHook implements on_subgraph_response(subgraph, status,
// duration) -> (), run immediately after a subgraph round trip completes.
type SubgraphResponseHook interface {
	OnSubgraphResponse(ctx context.Context, subgraph string, status int, duration time.Duration)
}

// EntityCache implements entity_cache.get/put, consulted before an entity
// fetch and populated after a successful one, gated per subgraph by
// schemaindex.EntityCachePolicy.
type EntityCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

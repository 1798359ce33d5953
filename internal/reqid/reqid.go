// Package reqid attaches a per-request identifier to a context, visible to
// every event published during that request's lifetime. The HTTP server
// also sets it as the "graphql-request-id" header of the client header set;
// a subgraph call carries it only when a header rule forwards that header.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// key is the context key for the request ID.
type key struct{}

// NewContext returns a copy of parent carrying a freshly generated request
// ID, along with the ID itself.
func NewContext(parent context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx, if one was attached.
func FromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(key{})
	id, ok := v.(string)
	return id, ok
}

package executor

import respstore "github.com/fedgraph/gateway/internal/respstore"

// ExecutionResult is the GraphQL-over-HTTP response body the server layer
// marshals. Data is already a plain Go value tree (map[string]any/[]any/
// scalars), the output of respstore.Store.Materialize; Errors are already
// shaped per the GraphQL-over-HTTP response spec.
type ExecutionResult struct {
	Data   any               `json:"data"`
	Errors []respstore.Error `json:"errors,omitempty"`
}

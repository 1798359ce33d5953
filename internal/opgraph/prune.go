package opgraph

import (
	"fmt"

	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// prune removes resolver nodes whose Requires/KeyField targets can never be
// covered, and the Provides edges those removed resolvers contributed,
// iterating to a fixpoint (§4.2). A field node ends up "removed" only when
// every one of its Provides edges came from a removed resolver.
func (g *Graph) prune() {
	for {
		changed := false

		for id := 1; id < len(g.nodes); id++ {
			nid := NodeID(id)
			if g.nodes[id].Kind != FieldNode || g.removedField[nid] {
				continue
			}
			if len(g.Providers(nid)) == 0 && hasAnyProvidesEdge(g, nid) {
				g.removedField[nid] = true
				changed = true
			}
		}

		for id := 1; id < len(g.nodes); id++ {
			nid := NodeID(id)
			if g.nodes[id].Kind != ResolverNode || g.removedResolver[nid] {
				continue
			}
			for _, e := range g.OutEdges(nid) {
				if (e.Kind == Requires || e.Kind == KeyField) && g.removedField[e.To] {
					g.removedResolver[nid] = true
					changed = true
					break
				}
			}
		}

		if !changed {
			return
		}
	}
}

func hasAnyProvidesEdge(g *Graph, field NodeID) bool {
	for _, e := range g.InEdges(field) {
		if e.Kind == Provides {
			return true
		}
	}
	return false
}

// UnsatisfiableFieldError reports a client-selected field that, after
// pruning, has no surviving resolver able to provide it.
type UnsatisfiableFieldError struct {
	Parent      schemaindex.TypeID
	ResponseKey string
}

func (e *UnsatisfiableFieldError) Error() string {
	return fmt.Sprintf("opgraph: field %q has no resolver able to provide it after pruning", e.ResponseKey)
}

// checkSatisfiable verifies every field node that came from the client's
// own selection (Operation != 0, i.e. not a synthetic @requires/@key extra)
// still has a surviving provider. A synthetic extra losing all its
// providers already forced the removal of whatever resolver needed it in
// prune(), so it carries no separate fatal condition of its own.
func (g *Graph) checkSatisfiable() error {
	var bad []error
	for id := 1; id < len(g.nodes); id++ {
		n := &g.nodes[id]
		if n.Kind != FieldNode || n.Synthetic || n.Derived || !n.Definition.Valid() {
			continue
		}
		nid := NodeID(id)
		if g.removedField[nid] || len(g.Providers(nid)) == 0 {
			bad = append(bad, &UnsatisfiableFieldError{Parent: n.Parent, ResponseKey: n.ResponseKey})
		}
	}
	if len(bad) > 0 {
		return bad[0]
	}
	return nil
}

package solver

import (
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// cost implements the §4.3/§9 open-question cost model: a unit cost of 1
// per distinct entity-resolver instance the solution uses, 0 for
// introspection and for a root-field resolver (the one, unavoidable first
// hop of the operation, not an additional entity jump between subgraphs).
// Any monotone cost consistent with the §4.2 tie-breaks is correctness-
// preserving per §9(iii); this is the one chosen and documented here.
func cost(idx *schemaindex.Index, r schemaindex.ResolverID) int {
	switch idx.Resolver(r).Kind {
	case schemaindex.ResolverGraphqlFederationEntity:
		return 1
	default:
		return 0
	}
}

// totalCost sums cost() over the distinct resolver nodes actually used by a
// solution, each counted once regardless of how many fields it serves.
func totalCost(idx *schemaindex.Index, g *opgraph.Graph, used map[opgraph.NodeID]bool) int {
	total := 0
	for rn := range used {
		total += cost(idx, g.Node(rn).Resolver)
	}
	return total
}

package opgraph

import (
	"sort"

	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// sortProviders orders candidates into the deterministic preference order
// the solver will fall back to on a cost tie (§4.2):
//
//  1. a resolver already instantiated elsewhere in the graph (an ambient
//     continuation of an ancestor field, or reuse from another branch of the
//     selection): it costs nothing marginal, so it always beats a resolver
//     that would need a fresh instance, independent of subgraph identity,
//  2. a resolver whose subgraph already has a resolver node at this parent
//     type (it already serves a sibling field, so reusing it avoids an
//     extra subgraph round trip),
//  3. the subgraph serving the most of the current selection set's sibling
//     fields directly (a proxy for "@provides overlap": the source's
//     overlap count is itself a heuristic over which fields a subgraph can
//     answer without a further hop, which sibling-coverage approximates
//     directly here since full @provides-applies-to-selection tracking
//     isn't retained past schemaindex build),
//  4. lexicographically smaller subgraph name.
func (g *Graph) sortProviders(parent schemaindex.TypeID, siblings []schemaindex.FieldID, candidates []schemaindex.ResolverID) {
	if len(candidates) < 2 {
		return
	}
	usedAtParent := g.subgraphsUsedAt(parent)

	overlap := make(map[schemaindex.SubgraphID]int, len(candidates))
	for _, r := range candidates {
		sg := g.idx.Resolver(r).Subgraph
		n := 0
		for _, sib := range siblings {
			if servesField(g.idx.Field(sib), sg) {
				n++
			}
		}
		overlap[sg] = n
	}

	instantiated := func(r schemaindex.ResolverID) bool {
		_, ok := g.resolverNodes[r]
		return ok
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i], candidates[j]
		if ii, ij := instantiated(ri), instantiated(rj); ii != ij {
			return ii
		}
		rdi, rdj := g.idx.Resolver(ri), g.idx.Resolver(rj)
		if ui, uj := usedAtParent[rdi.Subgraph], usedAtParent[rdj.Subgraph]; ui != uj {
			return ui
		}
		if oi, oj := overlap[rdi.Subgraph], overlap[rdj.Subgraph]; oi != oj {
			return oi > oj
		}
		return g.idx.Subgraph(rdi.Subgraph).Name < g.idx.Subgraph(rdj.Subgraph).Name
	})
}

func (g *Graph) subgraphsUsedAt(parent schemaindex.TypeID) map[schemaindex.SubgraphID]bool {
	out := make(map[schemaindex.SubgraphID]bool)
	for rn, parents := range g.resolverParents {
		if !parents[parent] {
			continue
		}
		out[g.idx.Resolver(g.Node(rn).Resolver).Subgraph] = true
	}
	return out
}

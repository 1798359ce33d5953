package opgraph

import (
	boundop "github.com/fedgraph/gateway/internal/boundop"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// NodeKind is the variant tag for a Node (§3.3).
type NodeKind uint8

const (
	FieldNode NodeKind = iota
	ResolverNode
)

// Node is either a field occurrence or a candidate resolver. Which fields
// are meaningful depends on Kind.
type Node struct {
	Kind NodeKind

	// FieldNode fields. Parent is the type the occurrence resolves against
	// (the type in scope at this point in the traversal: the enclosing
	// field's named type or a fragment's type condition, which can be an
	// interface or union; no per-concrete-type alternatives are created).
	// Operation is the bound-operation field
	// occurrence this node came from, or 0 for a synthetic "extra" field
	// added only to satisfy a @requires/@key closure (§4.2: "these are
	// 'extra' fields not part of the client selection"). ResponseKey is
	// empty for synthetic extras.
	Parent      schemaindex.TypeID
	Operation   boundop.FieldID
	Definition  schemaindex.FieldID
	ResponseKey string
	Synthetic   bool
	// Derived marks a field declared @derive: the executor synthesizes its
	// value from sibling data (§9), so it carries no resolver candidates at
	// all and is exempt from the usual "every client field needs a surviving
	// provider" satisfiability check.
	Derived bool

	// ResolverNode fields. One node per distinct Resolver (§4.2 "reuse an
	// existing one at the same parent", generalized here to "reuse the same
	// resolver instance anywhere it can continue serving inline" — see
	// build.go's ambient-candidate threading): a single resolver instance
	// may legitimately provide fields across several nested parent types in
	// one subgraph response walk (e.g. a root field continuing straight
	// into its return type's own fields, or an entity fetch continuing into
	// a nested object both placed on the same subgraph), so Parent here is
	// only the resolver's own declared entity (schemaindex.Resolver.Entity),
	// not every parent type it ends up serving.
	Resolver schemaindex.ResolverID
}

// EdgeKind is the variant tag for an Edge (§3.3).
type EdgeKind uint8

const (
	// Provides: Resolver -> Field, "this resolver can produce this field".
	Provides EdgeKind = iota
	// Requires: Field -> Field, "this field's resolution needs that field
	// already present on the same response object" (from @requires).
	Requires
	// KeyField: Resolver -> Field, "this resolver needs this field as one
	// of its lookup key's inputs" (from @key).
	KeyField
	// TypenameMarker: Resolver -> Field, attached to the synthetic
	// __typename field node of a parent type: any resolver that can
	// resolve the parent type can trivially answer __typename, so every
	// resolver node at that parent gets one, distinct from Provides because
	// it never gates pruning.
	TypenameMarker
)

// Edge is one directed edge of the operation graph.
type Edge struct {
	From, To NodeID
	Kind     EdgeKind
}

// Graph is the bipartite operation graph produced by Build. Nodes and edges
// are arena-addressed, append-only, id 0 reserved.
type Graph struct {
	idx *schemaindex.Index
	op  *boundop.Operation

	nodes []Node
	edges []Edge

	// Root lists the field nodes bound directly under the operation's root
	// selection set (the client's top-level fields).
	Root []NodeID

	out map[NodeID][]int // edge indices, Provides/Requires/KeyField/TypenameMarker outgoing from key
	in  map[NodeID][]int // edge indices incoming to key

	resolverNodes map[schemaindex.ResolverID]NodeID
	extraFields   map[fieldKey]NodeID
	typenameAt    map[schemaindex.TypeID]NodeID

	// resolverParents records every parent type a resolver node has been
	// offered as a candidate for, across the whole build: a resolver
	// reused inline across several nested types (see build.go) ends up
	// with several entries here. Drives wireTypenameMarkers and the §4.2
	// tie-break's "already used at this parent" rule.
	resolverParents map[NodeID]map[schemaindex.TypeID]bool

	removedResolver map[NodeID]bool
	removedField    map[NodeID]bool
}

type fieldKey struct {
	parent schemaindex.TypeID
	field  schemaindex.FieldID
}

func newGraph(idx *schemaindex.Index, op *boundop.Operation) *Graph {
	return &Graph{
		idx:             idx,
		op:              op,
		nodes:           make([]Node, 1),
		edges:           make([]Edge, 0, 64),
		out:             make(map[NodeID][]int),
		in:              make(map[NodeID][]int),
		resolverNodes:   make(map[schemaindex.ResolverID]NodeID),
		extraFields:     make(map[fieldKey]NodeID),
		typenameAt:      make(map[schemaindex.TypeID]NodeID),
		resolverParents: make(map[NodeID]map[schemaindex.TypeID]bool),
		removedResolver: make(map[NodeID]bool),
		removedField:    make(map[NodeID]bool),
	}
}

func (g *Graph) addNode(n Node) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, n)
	return id
}

func (g *Graph) addEdge(e Edge) {
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], idx)
	g.in[e.To] = append(g.in[e.To], idx)
}

// Node returns the record for id.
func (g *Graph) Node(id NodeID) *Node { return &g.nodes[id] }

// Edges returns every edge, in insertion order.
func (g *Graph) Edges() []Edge { return g.edges }

// NumNodes returns the number of allocated nodes, including the unused id 0.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// OutEdges returns the edges leaving id, in insertion order.
func (g *Graph) OutEdges(id NodeID) []Edge {
	idxs := g.out[id]
	out := make([]Edge, len(idxs))
	for i, e := range idxs {
		out[i] = g.edges[e]
	}
	return out
}

// InEdges returns the edges arriving at id, in insertion order.
func (g *Graph) InEdges(id NodeID) []Edge {
	idxs := g.in[id]
	out := make([]Edge, len(idxs))
	for i, e := range idxs {
		out[i] = g.edges[e]
	}
	return out
}

// Providers returns the resolver nodes with an active (non-pruned) Provides
// edge into field node id, in tie-break order (§4.2).
func (g *Graph) Providers(id NodeID) []NodeID {
	var out []NodeID
	for _, e := range g.InEdges(id) {
		if e.Kind == Provides && !g.removedResolver[e.From] {
			out = append(out, e.From)
		}
	}
	return out
}

// IsFieldRemoved reports whether pruning removed field node id for lacking
// any surviving provider.
func (g *Graph) IsFieldRemoved(id NodeID) bool { return g.removedField[id] }

// IsResolverRemoved reports whether pruning removed resolver node id for
// having an unsatisfiable requirement.
func (g *Graph) IsResolverRemoved(id NodeID) bool { return g.removedResolver[id] }

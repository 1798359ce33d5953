package opgraph

import (
	boundop "github.com/fedgraph/gateway/internal/boundop"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// Build converts a bound operation into an operation graph (§4.2): traverse
// the operation's selection sets in order, create a field node per
// occurrence, attach a resolver node for every schema resolver able to serve
// it (either a fresh fetch at this parent type, or an already-in-scope
// "ambient" resolver continuing inline from an ancestor field — see
// candidateResolvers), wire @requires/@key closures, then prune.
func Build(idx *schemaindex.Index, op *boundop.Operation) (*Graph, error) {
	g := newGraph(idx, op)

	root := op.SelectionSet(op.RootSelection)
	siblings := siblingDefinitions(op, root)
	for _, item := range root.Items {
		id, err := g.bindItem(op.Root, item, siblings, nil)
		if err != nil {
			return nil, err
		}
		if id.Valid() {
			g.Root = append(g.Root, id)
		}
	}

	g.wireTypenameMarkers()
	g.prune()

	if err := g.checkSatisfiable(); err != nil {
		return nil, err
	}
	return g, nil
}

// bindItem lowers one selection item under parent (the enclosing field's
// named type or a fragment's type condition), adding
// whatever nodes/edges it implies. ambient lists the resolvers already
// established at parent by the enclosing field (empty at the operation
// root): a resolver in ambient may continue serving a nested field inline,
// without a fresh fetch, if its subgraph places that field too. It returns
// the field node id for a SelField item, or 0 for items that don't
// themselves create one (typename markers are recorded separately;
// fragments recurse in place).
func (g *Graph) bindItem(parent schemaindex.TypeID, item boundop.SelectionItem, siblings []schemaindex.FieldID, ambient []schemaindex.ResolverID) (NodeID, error) {
	switch item.Kind {
	case boundop.SelField:
		return g.bindField(parent, item.Field, siblings, ambient)

	case boundop.SelTypename:
		g.ensureTypenameNode(parent)
		return noID, nil

	case boundop.SelInlineFragment:
		sub := g.op.SelectionSet(item.Inline)
		subSiblings := siblingDefinitions(g.op, sub)
		for _, inner := range sub.Items {
			if _, err := g.bindItem(item.TypeCondition, inner, subSiblings, ambient); err != nil {
				return noID, err
			}
		}
		return noID, nil

	case boundop.SelFragmentSpread:
		frag := g.op.Fragment(item.Fragment)
		sub := g.op.SelectionSet(frag.Selection)
		subSiblings := siblingDefinitions(g.op, sub)
		for _, inner := range sub.Items {
			if _, err := g.bindItem(frag.TypeCondition, inner, subSiblings, ambient); err != nil {
				return noID, err
			}
		}
		return noID, nil
	}
	return noID, nil
}

// bindField creates the field node for a real client occurrence, attaches
// its candidate resolvers, wires @requires, and recurses into its
// sub-selection against the field's own named type, passing this field's
// own resolved candidates down as the children's ambient set.
func (g *Graph) bindField(parent schemaindex.TypeID, opField boundop.FieldID, siblings []schemaindex.FieldID, ambient []schemaindex.ResolverID) (NodeID, error) {
	bf := g.op.Field(opField)
	fd := g.idx.Field(bf.Definition)
	id := g.addNode(Node{
		Kind:        FieldNode,
		Parent:      parent,
		Operation:   opField,
		Definition:  bf.Definition,
		ResponseKey: bf.ResponseKey,
		Derived:     fd.Derive != nil,
	})
	if fd.Derive != nil {
		// A derived field's value is synthesized directly by the executor
		// from sibling data already in scope (§9, planner's DeriveStep); it
		// needs no resolver of its own, and its sub-selection is never
		// dispatched to a subgraph either, so neither is wired into the
		// graph at all. Its key's sibling source fields do need forcing into
		// the fetch, though, exactly like an ordinary @requires extra, in
		// case the client never selected them itself.
		for _, m := range fd.Derive.Fields {
			extra, err := g.requireField(parent, m.Source, 0, ambient, 0)
			if err != nil {
				return noID, err
			}
			// A derived field itself is never passed to solveField (it has
			// no resolver of its own to choose), so this Requires edge is
			// not walked by the usual "solve this field, then its requires
			// closure" recursion — it exists so solver.Solve's main loop can
			// still find and solve the source field directly for a Derived
			// node (solveRequiresOf).
			g.addEdge(Edge{From: id, To: extra, Kind: Requires})
		}
		return id, nil
	}

	candidates, err := g.attachProvidersAndRequires(id, parent, bf.Definition, siblings, ambient, 0)
	if err != nil {
		return noID, err
	}

	if bf.Selection.Valid() {
		fd := g.idx.Field(bf.Definition)
		named := fd.Type.NamedType()
		sub := g.op.SelectionSet(bf.Selection)
		subSiblings := siblingDefinitions(g.op, sub)
		for _, inner := range sub.Items {
			if _, err := g.bindItem(named, inner, subSiblings, candidates); err != nil {
				return noID, err
			}
		}
	}
	return id, nil
}

// requireField gets or creates the synthetic "extra" field node for
// (parent, fieldDef) — a field not in the client selection but needed to
// satisfy a @requires or @key closure — and recurses into its own
// sub-selection (for composite @requires/@key fields) and its own
// @requires (transitively). ambient is the resolver set already in scope at
// parent (see bindField), so a key/requires field can itself be answered by
// continuation instead of always forcing a fresh fetch. exclude, when
// valid, is a resolver that must never be offered as a candidate for this
// closure even via a fresh ResolversForEntity lookup — used when wiring a
// resolver's own @key: the resolver cannot supply its own lookup input, no
// matter that it is technically one of the entity's registered resolvers.
func (g *Graph) requireField(parent schemaindex.TypeID, fieldDef schemaindex.FieldID, subSel schemaindex.FieldSetID, ambient []schemaindex.ResolverID, exclude schemaindex.ResolverID) (NodeID, error) {
	key := fieldKey{parent, fieldDef}
	if id, ok := g.extraFields[key]; ok {
		return id, nil
	}
	fd := g.idx.Field(fieldDef)
	id := g.addNode(Node{
		Kind:       FieldNode,
		Parent:     parent,
		Definition: fieldDef,
		Synthetic:  true,
	})
	g.extraFields[key] = id
	candidates, err := g.attachProvidersAndRequires(id, parent, fieldDef, nil, ambient, exclude)
	if err != nil {
		return noID, err
	}
	if subSel.Valid() {
		named := fd.Type.NamedType()
		for _, sub := range g.idx.FieldSet(subSel).Items {
			if _, err := g.requireField(named, sub.Field, sub.SubSelection, candidates, exclude); err != nil {
				return noID, err
			}
		}
	}
	return id, nil
}

// attachProvidersAndRequires wires the Provides edges from every candidate
// resolver into fieldNode, and the Requires edges from fieldNode to the
// extra field nodes implied by its schema definition's @requires set. It
// returns the sorted candidate list, used by the caller as the ambient set
// for fieldNode's own children. exclude is forwarded to candidateResolvers
// and to any @requires extras (see requireField); it is the zero ResolverID
// (none) everywhere except while wiring a resolver's own @key.
func (g *Graph) attachProvidersAndRequires(fieldNode NodeID, parent schemaindex.TypeID, fieldDef schemaindex.FieldID, siblings []schemaindex.FieldID, ambient []schemaindex.ResolverID, exclude schemaindex.ResolverID) ([]schemaindex.ResolverID, error) {
	candidates := g.candidateResolvers(parent, fieldDef, ambient, exclude)
	g.sortProviders(parent, siblings, candidates)
	for _, r := range candidates {
		rn := g.resolverNode(r, ambient)
		g.addEdge(Edge{From: rn, To: fieldNode, Kind: Provides})
		g.markResolverParent(rn, parent)
	}

	fd := g.idx.Field(fieldDef)
	if fd.Requires.Valid() {
		for _, item := range g.idx.FieldSet(fd.Requires).Items {
			extra, err := g.requireField(parent, item.Field, item.SubSelection, ambient, exclude)
			if err != nil {
				return nil, err
			}
			g.addEdge(Edge{From: fieldNode, To: extra, Kind: Requires})
		}
	}
	return candidates, nil
}

// resolverNode returns r's node, creating it on first use. A resolver is
// instantiated once globally (§4.3 "same-resolver-instance field nodes"):
// the same node is reused whether r continues inline into several nested
// parent types or answers a single root field, so partitioning later
// contracts every field it serves into one subgraph call. On first
// creation, if r is a federation entity resolver, its @key field set is
// required too — using ambient (the resolvers already in scope where r was
// first offered as a candidate, minus r itself, which can never supply its
// own key) so the key can be satisfied by continuation instead of another
// fetch of the same entity.
func (g *Graph) resolverNode(r schemaindex.ResolverID, ambient []schemaindex.ResolverID) NodeID {
	if id, ok := g.resolverNodes[r]; ok {
		return id
	}
	rd := g.idx.Resolver(r)
	id := g.addNode(Node{Kind: ResolverNode, Parent: rd.Entity, Resolver: r})
	g.resolverNodes[r] = id

	if rd.Kind == schemaindex.ResolverGraphqlFederationEntity && rd.Key.Valid() {
		keyAmbient := without(ambient, r)
		for _, item := range g.idx.FieldSet(rd.Key).Items {
			extra, err := g.requireField(rd.Entity, item.Field, item.SubSelection, keyAmbient, r)
			if err != nil {
				// A malformed @key (referencing a field absent from this
				// type) cannot happen post schemaindex build; if it did,
				// drop the key requirement rather than panic mid-build.
				continue
			}
			g.addEdge(Edge{From: id, To: extra, Kind: KeyField})
		}
	}
	return id
}

func without(resolvers []schemaindex.ResolverID, exclude schemaindex.ResolverID) []schemaindex.ResolverID {
	out := make([]schemaindex.ResolverID, 0, len(resolvers))
	for _, r := range resolvers {
		if r != exclude {
			out = append(out, r)
		}
	}
	return out
}

func (g *Graph) markResolverParent(rn NodeID, parent schemaindex.TypeID) {
	parents, ok := g.resolverParents[rn]
	if !ok {
		parents = make(map[schemaindex.TypeID]bool)
		g.resolverParents[rn] = parents
	}
	parents[parent] = true
}

// candidateResolvers lists every resolver able to serve fieldDef at parent:
// every resolver freshly reachable at parent (schemaindex.Index.
// ResolversForEntity — a new fetch), plus every ambient resolver already in
// scope whose subgraph also places fieldDef (a free continuation of the
// enclosing field's own response, no extra subgraph round trip). A field
// with no explicit @join__field placement is implicitly available on every
// subgraph owning the parent type (schemaindex leaves Subgraphs empty in
// that case; see buildjoin.go), including any ambient continuation.
// exclude, when valid, is dropped from both sources: a resolver can never
// be a candidate for its own @key field, even though ResolversForEntity(its
// own entity) trivially lists it as one of the entity's resolvers.
func (g *Graph) candidateResolvers(parent schemaindex.TypeID, fieldDef schemaindex.FieldID, ambient []schemaindex.ResolverID, exclude schemaindex.ResolverID) []schemaindex.ResolverID {
	fd := g.idx.Field(fieldDef)
	seen := make(map[schemaindex.ResolverID]bool)
	var out []schemaindex.ResolverID
	add := func(r schemaindex.ResolverID) {
		if seen[r] || r == exclude {
			return
		}
		if !fieldServedBy(fd, g.idx.Resolver(r).Subgraph) {
			return
		}
		seen[r] = true
		out = append(out, r)
	}
	for _, r := range g.idx.ResolversForEntity(parent) {
		add(r)
	}
	for _, r := range ambient {
		add(r)
	}
	return out
}

func fieldServedBy(fd *schemaindex.Field, sg schemaindex.SubgraphID) bool {
	if len(fd.Subgraphs) == 0 {
		return true
	}
	return servesField(fd, sg)
}

func servesField(fd *schemaindex.Field, sg schemaindex.SubgraphID) bool {
	for _, s := range fd.Subgraphs {
		if s == sg {
			return !fd.External[sg]
		}
	}
	return false
}

// wireTypenameMarkers attaches a TypenameMarker edge from every resolver
// node to every type's synthetic __typename field node it was offered as a
// candidate for, once traversal is complete and every (resolver, parent
// type) pairing is known.
func (g *Graph) wireTypenameMarkers() {
	for rn, parents := range g.resolverParents {
		for parent := range parents {
			if tn, ok := g.typenameAt[parent]; ok {
				g.addEdge(Edge{From: rn, To: tn, Kind: TypenameMarker})
			}
		}
	}
}

func (g *Graph) ensureTypenameNode(parent schemaindex.TypeID) NodeID {
	if id, ok := g.typenameAt[parent]; ok {
		return id
	}
	id := g.addNode(Node{Kind: FieldNode, Parent: parent, ResponseKey: "__typename"})
	g.typenameAt[parent] = id
	return id
}

// siblingDefinitions collects the schema field definitions of the direct
// SelField items of sel, for the provides-overlap tie-break (§4.2). Nested
// fragments are not expanded; "sibling" means lexically adjacent in the
// same selection set, matching how the tie-break reads in the source.
func siblingDefinitions(op *boundop.Operation, sel *boundop.SelectionSet) []schemaindex.FieldID {
	var out []schemaindex.FieldID
	for _, item := range sel.Items {
		if item.Kind == boundop.SelField {
			out = append(out, op.Field(item.Field).Definition)
		}
	}
	return out
}

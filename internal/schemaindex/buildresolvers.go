package schemaindex

// buildResolvers derives the candidate Resolver set for every entity (§3.1):
//
//   - ResolverGraphqlRootField, one per subgraph that places at least one
//     field on a root operation type (Query/Mutation/Subscription) — the
//     Solver treats the three root types as ordinary entities reachable
//     without a key.
//   - ResolverGraphqlFederationEntity, one per (subgraph, entity) pair where
//     the entity declares a `@join__type(key: ...)` for that subgraph — Key
//     is the field set the subgraph's `_entities` resolver requires.
//   - A single ResolverIntrospection on the query root, satisfying
//     `__schema`/`__type` without dispatching to any subgraph.
//
// Must run after buildRoots, so root type ids are known.
func (b *builder) buildResolvers() error {
	b.idx.resolversByEntity = make(map[TypeID][]ResolverID)

	roots := []TypeID{b.idx.QueryType, b.idx.MutationType, b.idx.SubscriptionType}
	isRoot := make(map[TypeID]bool, len(roots))
	for _, r := range roots {
		if r.Valid() {
			isRoot[r] = true
		}
	}

	for i := 1; i < len(b.idx.types); i++ {
		tid := TypeID(i)
		t := b.idx.Type(tid)
		if t.Kind != KindObject {
			continue
		}

		placed := make(map[SubgraphID]bool)
		for _, fid := range t.Fields {
			for _, sg := range b.idx.Field(fid).Subgraphs {
				placed[sg] = true
			}
		}
		// Fields without an explicit @join__field placement (common on a
		// type contributed by exactly one subgraph) implicitly belong to
		// every subgraph that declared a @join__type for this entity.
		for sg := range t.Keys {
			placed[sg] = true
		}

		if isRoot[tid] {
			for i := 1; i < len(b.idx.subgraphs); i++ {
				sg := SubgraphID(i)
				if !placed[sg] {
					continue
				}
				b.idx.addResolverForEntity(tid, Resolver{
					Kind:     ResolverGraphqlRootField,
					Subgraph: sg,
					Entity:   tid,
				})
			}
			continue
		}

		for i := 1; i < len(b.idx.subgraphs); i++ {
			sg := SubgraphID(i)
			key, ok := t.Keys[sg]
			if !ok {
				continue
			}
			b.idx.addResolverForEntity(tid, Resolver{
				Kind:     ResolverGraphqlFederationEntity,
				Subgraph: sg,
				Entity:   tid,
				Key:      key,
			})
		}
	}

	if b.idx.QueryType.Valid() {
		b.idx.addResolverForEntity(b.idx.QueryType, Resolver{
			Kind:   ResolverIntrospection,
			Entity: b.idx.QueryType,
		})
	}
	return nil
}

func (ix *Index) addResolverForEntity(entity TypeID, r Resolver) ResolverID {
	id := ix.addResolver(r)
	ix.resolversByEntity[entity] = append(ix.resolversByEntity[entity], id)
	return id
}

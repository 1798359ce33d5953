package schemaindex

// Walkers are cheap (pointer + id) traversal handles over an Index, as
// required by §4.1: "Walkers must be cheap (pointer+id) and impose no
// allocation." Each accessor returns another walker, so callers can chain
// e.g. `field.Parent().Key(subgraph)` without touching raw ids directly.
//
// Go generics cannot give a single generic type per-instantiation methods
// (there is no template specialization), so each id kind gets its own small
// walker struct instead of one `Walker[T]`.

type TypeWalker struct {
	idx *Index
	ID  TypeID
}

func WalkType(idx *Index, id TypeID) TypeWalker { return TypeWalker{idx: idx, ID: id} }

func (w TypeWalker) Def() *Type    { return w.idx.Type(w.ID) }
func (w TypeWalker) Name() string  { return w.Def().Name }
func (w TypeWalker) Kind() TypeKind { return w.Def().Kind }

func (w TypeWalker) Fields() []FieldWalker {
	fids := w.Def().Fields
	out := make([]FieldWalker, len(fids))
	for i, fid := range fids {
		out[i] = WalkField(w.idx, fid)
	}
	return out
}

func (w TypeWalker) FieldNamed(name string) (FieldWalker, bool) {
	fid, ok := w.idx.FieldByName(w.ID, name)
	if !ok {
		return FieldWalker{}, false
	}
	return WalkField(w.idx, fid), true
}

func (w TypeWalker) Key(subgraph SubgraphID) (FieldSetWalker, bool) {
	fsid, ok := w.Def().Keys[subgraph]
	if !ok || fsid == 0 {
		return FieldSetWalker{}, false
	}
	return WalkFieldSet(w.idx, fsid), true
}

func (w TypeWalker) Resolvers() []ResolverWalker {
	rids := w.idx.ResolversForEntity(w.ID)
	out := make([]ResolverWalker, len(rids))
	for i, rid := range rids {
		out[i] = WalkResolver(w.idx, rid)
	}
	return out
}

func (w TypeWalker) PossibleTypes() []TypeWalker {
	pts := w.Def().PossibleTypes
	out := make([]TypeWalker, len(pts))
	for i, t := range pts {
		out[i] = WalkType(w.idx, t)
	}
	return out
}

type FieldWalker struct {
	idx *Index
	ID  FieldID
}

func WalkField(idx *Index, id FieldID) FieldWalker { return FieldWalker{idx: idx, ID: id} }

func (w FieldWalker) Def() *Field       { return w.idx.Field(w.ID) }
func (w FieldWalker) Name() string      { return w.Def().Name }
func (w FieldWalker) Parent() TypeWalker { return WalkType(w.idx, w.Def().Parent) }
func (w FieldWalker) Type() TypeRef     { return w.Def().Type }

func (w FieldWalker) NamedType() TypeWalker {
	return WalkType(w.idx, w.Def().Type.NamedType())
}

func (w FieldWalker) Requires() (FieldSetWalker, bool) {
	fsid := w.Def().Requires
	if fsid == 0 {
		return FieldSetWalker{}, false
	}
	return WalkFieldSet(w.idx, fsid), true
}

func (w FieldWalker) Provides() (FieldSetWalker, bool) {
	fsid := w.Def().Provides
	if fsid == 0 {
		return FieldSetWalker{}, false
	}
	return WalkFieldSet(w.idx, fsid), true
}

func (w FieldWalker) Subgraphs() []SubgraphID { return w.Def().Subgraphs }

func (w FieldWalker) IsExternalOn(sg SubgraphID) bool {
	return w.Def().External != nil && w.Def().External[sg]
}

type ResolverWalker struct {
	idx *Index
	ID  ResolverID
}

func WalkResolver(idx *Index, id ResolverID) ResolverWalker { return ResolverWalker{idx: idx, ID: id} }

func (w ResolverWalker) Def() *Resolver           { return w.idx.Resolver(w.ID) }
func (w ResolverWalker) Entity() TypeWalker        { return WalkType(w.idx, w.Def().Entity) }
func (w ResolverWalker) Subgraph() SubgraphWalker   { return WalkSubgraph(w.idx, w.Def().Subgraph) }

func (w ResolverWalker) Key() (FieldSetWalker, bool) {
	fsid := w.Def().Key
	if fsid == 0 {
		return FieldSetWalker{}, false
	}
	return WalkFieldSet(w.idx, fsid), true
}

type FieldSetWalker struct {
	idx *Index
	ID  FieldSetID
}

func WalkFieldSet(idx *Index, id FieldSetID) FieldSetWalker { return FieldSetWalker{idx: idx, ID: id} }

func (w FieldSetWalker) Def() *FieldSet       { return w.idx.FieldSet(w.ID) }
func (w FieldSetWalker) Items() []FieldSetItem { return w.Def().Items }
func (w FieldSetWalker) Empty() bool           { return w.ID == 0 || len(w.Def().Items) == 0 }

type SubgraphWalker struct {
	idx *Index
	ID  SubgraphID
}

func WalkSubgraph(idx *Index, id SubgraphID) SubgraphWalker { return SubgraphWalker{idx: idx, ID: id} }

func (w SubgraphWalker) Def() *Subgraph { return w.idx.Subgraph(w.ID) }
func (w SubgraphWalker) Name() string   { return w.Def().Name }
func (w SubgraphWalker) URL() string    { return w.Def().URL }

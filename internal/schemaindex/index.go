// Package schemaindex implements the Schema Index (§3.1/§4.1): a read-only,
// index-addressed representation of a composed federation supergraph.
package schemaindex

// Index is the immutable, arena-backed supergraph representation built by
// Build. It is cheap to share by pointer: nothing in Index is mutated after
// Build returns.
type Index struct {
	QueryType        TypeID
	MutationType     TypeID
	SubscriptionType TypeID
	Description      string

	types       []Type
	fields      []Field
	inputValues []InputValue
	resolvers   []Resolver
	fieldSets   []FieldSet
	subgraphs   []Subgraph
	directives  []Directive
	enumValues  []EnumValue
	strings     []string

	typeByName map[string]TypeID

	// Lookup tables (§4.1), built once during Build.
	resolversByEntity map[TypeID][]ResolverID
	subgraphByName    map[string]SubgraphID
}

func newIndex() *Index {
	return &Index{
		// index 0 is reserved (noID sentinel) in every arena.
		types:       make([]Type, 1),
		fields:      make([]Field, 1),
		inputValues: make([]InputValue, 1),
		resolvers:   make([]Resolver, 1),
		fieldSets:   make([]FieldSet, 1),
		subgraphs:   make([]Subgraph, 1),
		directives:  make([]Directive, 1),
		enumValues:  make([]EnumValue, 1),
		typeByName:  make(map[string]TypeID),
	}
}

func (ix *Index) addType(t Type) TypeID {
	id := TypeID(len(ix.types))
	ix.types = append(ix.types, t)
	ix.typeByName[t.Name] = id
	return id
}

func (ix *Index) addField(f Field) FieldID {
	id := FieldID(len(ix.fields))
	ix.fields = append(ix.fields, f)
	return id
}

func (ix *Index) addInputValue(v InputValue) InputValueID {
	id := InputValueID(len(ix.inputValues))
	ix.inputValues = append(ix.inputValues, v)
	return id
}

func (ix *Index) addResolver(r Resolver) ResolverID {
	id := ResolverID(len(ix.resolvers))
	ix.resolvers = append(ix.resolvers, r)
	return id
}

func (ix *Index) addFieldSet(fs FieldSet) FieldSetID {
	id := FieldSetID(len(ix.fieldSets))
	ix.fieldSets = append(ix.fieldSets, fs)
	return id
}

func (ix *Index) addSubgraph(s Subgraph) SubgraphID {
	id := SubgraphID(len(ix.subgraphs))
	ix.subgraphs = append(ix.subgraphs, s)
	return id
}

func (ix *Index) addDirective(d Directive) DirectiveID {
	id := DirectiveID(len(ix.directives))
	ix.directives = append(ix.directives, d)
	return id
}

func (ix *Index) addEnumValue(v EnumValue) EnumValueID {
	id := EnumValueID(len(ix.enumValues))
	ix.enumValues = append(ix.enumValues, v)
	return id
}

// Accessors. Callers normally go through Walk/Walker instead of these, but
// the raw accessors are exposed for packages (opgraph, solver, planner)
// that need bulk iteration without per-call walker overhead.

func (ix *Index) Type(id TypeID) *Type             { return &ix.types[id] }
func (ix *Index) Field(id FieldID) *Field           { return &ix.fields[id] }
func (ix *Index) InputValue(id InputValueID) *InputValue { return &ix.inputValues[id] }
func (ix *Index) Resolver(id ResolverID) *Resolver   { return &ix.resolvers[id] }
func (ix *Index) FieldSet(id FieldSetID) *FieldSet   { return &ix.fieldSets[id] }
func (ix *Index) Subgraph(id SubgraphID) *Subgraph   { return &ix.subgraphs[id] }
func (ix *Index) Directive(id DirectiveID) *Directive { return &ix.directives[id] }
func (ix *Index) EnumValue(id EnumValueID) *EnumValue { return &ix.enumValues[id] }

// TypeByName looks up a type id by name; returns (0, false) if absent.
func (ix *Index) TypeByName(name string) (TypeID, bool) {
	id, ok := ix.typeByName[name]
	return id, ok
}

// SubgraphByName looks up a subgraph id by name; returns (0, false) if absent.
func (ix *Index) SubgraphByName(name string) (SubgraphID, bool) {
	id, ok := ix.subgraphByName[name]
	return id, ok
}

// ResolversForEntity returns the resolver ids able to resolve the given
// entity type, in subgraph declaration order (the query root's introspection
// resolver last).
func (ix *Index) ResolversForEntity(entity TypeID) []ResolverID {
	return ix.resolversByEntity[entity]
}

// FieldByName finds a field id by (parent type, field name); returns
// (0, false) if not found. Linear scan: field counts per type are small
// (tens, not thousands), so this is cheap and avoids carrying a second index
// for every type.
func (ix *Index) FieldByName(parent TypeID, name string) (FieldID, bool) {
	for _, fid := range ix.Type(parent).Fields {
		if ix.Field(fid).Name == name {
			return fid, true
		}
	}
	return 0, false
}

// NumSubgraphs reports how many subgraphs are registered (excluding the
// reserved zero id).
func (ix *Index) NumSubgraphs() int { return len(ix.subgraphs) - 1 }

// AllSubgraphs returns every registered subgraph id in declaration order.
func (ix *Index) AllSubgraphs() []SubgraphID {
	out := make([]SubgraphID, 0, ix.NumSubgraphs())
	for i := 1; i < len(ix.subgraphs); i++ {
		out = append(out, SubgraphID(i))
	}
	return out
}

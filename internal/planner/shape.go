package planner

import (
	"sort"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// shapeBuilder builds the response shape tree (§4.4 step 1) straight off the
// bound operation and the schema index, deliberately without consulting
// opgraph/solver: the shape is purely presentational — what the response
// looks like and which slots null-propagate on error — and every selection
// it needs is already fully resolved by boundop (fragments inlined by type
// condition, @skip/@include already dropped at bind time by bind.go's
// shouldInclude, per DESIGN.md).
type shapeBuilder struct {
	idx    *schemaindex.Index
	op     *boundop.Operation
	shapes []FieldShape
}

// BuildShapeTree builds the response shape tree for op's root selection and
// returns the per-field records plus the ids of its top-level shapes, in
// query order.
func BuildShapeTree(idx *schemaindex.Index, op *boundop.Operation) ([]FieldShape, []ShapeID) {
	b := &shapeBuilder{idx: idx, op: op, shapes: make([]FieldShape, 1)}
	root := b.buildChildren(op.Root, op.RootSelection)
	return b.shapes, root
}

func (b *shapeBuilder) alloc(s FieldShape) ShapeID {
	id := ShapeID(len(b.shapes))
	b.shapes = append(b.shapes, s)
	return id
}

// collected accumulates the first occurrence of each response key seen while
// walking one concrete type's merged selection, mirroring the teacher's
// collectFieldsImpl grouping (executor/fields.go) minus the dynamic
// @skip/@include check it also does, which boundop already resolved.
type collectedItem struct {
	responseKey string
	typename    bool
	field       boundop.FieldID
}

type collected struct {
	order []collectedItem
	seen  map[string]bool
}

func newCollected() *collected { return &collected{seen: make(map[string]bool)} }

func (c *collected) addField(key string, f boundop.FieldID) {
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.order = append(c.order, collectedItem{responseKey: key, field: f})
}

func (c *collected) addTypename(key string) {
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.order = append(c.order, collectedItem{responseKey: key, typename: true})
}

// typeConditionApplies reports whether a selection item carrying cond (0 =
// unconditional) applies to concrete. Mirrors fields.go's
// "sel.TypeCondition != "" && sel.TypeCondition != objectType.Name" check,
// generalized to interface/union type conditions via PossibleTypes.
func typeConditionApplies(idx *schemaindex.Index, cond, concrete schemaindex.TypeID) bool {
	if !cond.Valid() || cond == concrete {
		return true
	}
	ct := idx.Type(cond)
	if ct.Kind != schemaindex.KindInterface && ct.Kind != schemaindex.KindUnion {
		return false
	}
	for _, pt := range ct.PossibleTypes {
		if pt == concrete {
			return true
		}
	}
	return false
}

func (b *shapeBuilder) collect(sel boundop.SelectionSetID, concrete schemaindex.TypeID, out *collected) {
	if !sel.Valid() {
		return
	}
	for _, item := range b.op.SelectionSet(sel).Items {
		switch item.Kind {
		case boundop.SelField:
			f := b.op.Field(item.Field)
			out.addField(f.ResponseKey, item.Field)
		case boundop.SelTypename:
			out.addTypename(item.ResponseKey)
		case boundop.SelInlineFragment:
			if typeConditionApplies(b.idx, item.TypeCondition, concrete) {
				b.collect(item.Inline, concrete, out)
			}
		case boundop.SelFragmentSpread:
			frag := b.op.Fragment(item.Fragment)
			if typeConditionApplies(b.idx, frag.TypeCondition, concrete) {
				b.collect(frag.Selection, concrete, out)
			}
		}
	}
}

// concreteTypes returns the concrete object types a value of t could
// actually take: t itself for an OBJECT, or every possible type for an
// INTERFACE/UNION (§4.4 "type conditions per branch").
func (b *shapeBuilder) concreteTypes(t schemaindex.TypeID) []schemaindex.TypeID {
	typ := b.idx.Type(t)
	if typ.Kind == schemaindex.KindInterface || typ.Kind == schemaindex.KindUnion {
		return typ.PossibleTypes
	}
	return []schemaindex.TypeID{t}
}

// buildChildren builds one TypeBranch per concrete type of parentType and
// returns the ids of the merged child shapes for the FIRST branch only when
// parentType is a plain object (the common case); for polymorphic parents
// the branches themselves, not a flat child list, carry the per-type
// selections — see buildFieldShape, which is what actually stores branches.
// This helper is only used at the very root of the tree (the operation's
// root type is always an OBJECT: Query/Mutation/Subscription), so a single
// branch's children is exactly the top-level shape list.
func (b *shapeBuilder) buildChildren(parentType schemaindex.TypeID, sel boundop.SelectionSetID) []ShapeID {
	branches := b.buildBranches(parentType, sel)
	if len(branches) == 0 {
		return nil
	}
	return branches[0].Children
}

func (b *shapeBuilder) buildBranches(parentType schemaindex.TypeID, sel boundop.SelectionSetID) []TypeBranch {
	concretes := b.concreteTypes(parentType)
	branches := make([]TypeBranch, 0, len(concretes))
	for _, ct := range concretes {
		out := newCollected()
		b.collect(sel, ct, out)
		children := make([]ShapeID, 0, len(out.order))
		for _, item := range out.order {
			children = append(children, b.buildFieldShape(item))
		}
		branches = append(branches, TypeBranch{Type: ct, Children: children})
	}
	return branches
}

func (b *shapeBuilder) buildFieldShape(item collectedItem) ShapeID {
	if item.typename {
		return b.alloc(FieldShape{ResponseKey: item.responseKey, NonNull: true})
	}
	f := b.op.Field(item.field)
	fd := b.idx.Field(f.Definition)
	shape := FieldShape{
		ResponseKey: item.responseKey,
		Definition:  f.Definition,
		NonNull:     fd.Type.IsNonNull(),
		IsList:      fd.Type.IsList(),
	}
	if shape.IsList {
		shape.ListItemNonNull = listItemNonNull(fd.Type)
	}
	if f.Selection.Valid() {
		shape.Branches = b.buildBranches(fd.Type.NamedType(), f.Selection)
	}
	return b.alloc(shape)
}

// listItemNonNull reports whether a list-typed reference's element type is
// itself non-null, per the bit-packed wrap convention in
// schemaindex/types.go (outermost modifier at the low bits).
func listItemNonNull(t schemaindex.TypeRef) bool {
	if t.IsNonNull() {
		t = t.Unwrap()
	}
	return t.Unwrap().IsNonNull()
}

// sortedKeys is a small helper shared by document.go for deterministic
// argument/object-value printing over Go maps.
func sortedKeys(m map[string]boundop.ValueID) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

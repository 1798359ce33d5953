package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	language "github.com/fedgraph/gateway/internal/language"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
)

// docBuilder synthesizes one PartitionDocument per partition per distinct
// "entry point" (§4.4 step 2). It walks the bound operation tree directly
// rather than the operation graph, because opgraph carries no parent->child
// field edge (nesting is implied only by the boundop tree/Node.Parent type;
// see opgraph/build.go) — the planner is the one place that needs that
// nesting reconstructed, so it rebuilds it itself in one pass instead of
// teaching opgraph a concern it never otherwise needs.
type docBuilder struct {
	idx    *schemaindex.Index
	op     *boundop.Operation
	g      *opgraph.Graph
	solved *solver.Solved

	fieldNodeOf map[boundop.FieldID]opgraph.NodeID
}

// BuildDocuments synthesizes every partition's subgraph document(s).
func BuildDocuments(idx *schemaindex.Index, op *boundop.Operation, g *opgraph.Graph, solved *solver.Solved) []PartitionDocument {
	b := &docBuilder{idx: idx, op: op, g: g, solved: solved, fieldNodeOf: make(map[boundop.FieldID]opgraph.NodeID)}
	for id := 1; id < g.NumNodes(); id++ {
		n := g.Node(opgraph.NodeID(id))
		if n.Kind == opgraph.FieldNode && n.Operation.Valid() {
			b.fieldNodeOf[n.Operation] = opgraph.NodeID(id)
		}
	}

	var docs []PartitionDocument
	for i := range solved.Partitions {
		pid := solver.PartitionID(i + 1)
		p := solved.Partition(pid)
		if p.Entity == op.Root {
			docs = append(docs, b.buildRootDocument(pid, p))
			continue
		}
		docs = append(docs, b.buildEntityDocuments(pid, p)...)
	}
	return docs
}

// buildRootDocument handles a partition rooted directly at the operation's
// root type: its document is just the client's own top-level selection,
// filtered down to the fields this partition was assigned, with no
// representations variable needed.
func (b *docBuilder) buildRootDocument(pid solver.PartitionID, p *solver.Partition) PartitionDocument {
	sel := b.printSelection(p.ResolverNode, p.Entity, b.op.RootSelection)
	opDef := &language.OperationDefinition{
		Operation:    rootOperationKind(b.op),
		SelectionSet: sel,
	}
	return PartitionDocument{Partition: pid, Resolver: p.Resolver, Text: printDocument(opDef), Keys: responseKeysOf(sel)}
}

func rootOperationKind(op *boundop.Operation) language.Operation {
	return op.Kind
}

// entryPoint is one place in the client's selection where a different
// partition hands off to p: the response object the hand-off field produces
// is what p's representations are built from.
type entryPoint struct {
	path         []string
	concreteType schemaindex.TypeID     // the object type the representation is built from
	sel          boundop.SelectionSetID // that object's own selection set
}

// buildEntityDocuments finds every entry point for an entity partition and
// emits one _entities document per distinct entry (content can legitimately
// differ between entries when the
// client selected different sub-fields at each occurrence of the entity
// type, so documents are not shared across entries in general).
func (b *docBuilder) buildEntityDocuments(pid solver.PartitionID, p *solver.Partition) []PartitionDocument {
	entries := b.findEntryPoints(p.ResolverNode)
	docs := make([]PartitionDocument, 0, len(entries))
	entityName := b.idx.Type(p.Entity).Name

	for i, e := range entries {
		content := b.printSelection(p.ResolverNode, e.concreteType, e.sel)
		entitiesSel := language.SelectionSet{
			&language.Field{Name: "__typename"},
			&language.InlineFragment{TypeCondition: entityName, SelectionSet: content},
		}
		opDef := &language.OperationDefinition{
			Operation: language.Query,
			VariableDefinitions: []*language.VariableDefinition{
				{Variable: "representations", Type: &language.Type{Elem: &language.Type{NamedType: "_Any", NonNull: true}, NonNull: true}},
			},
			SelectionSet: language.SelectionSet{
				&language.Field{
					Name: "_entities",
					Arguments: language.ArgumentList{
						{Name: "representations", Value: &language.Value{Kind: language.Variable, Raw: "representations"}},
					},
					SelectionSet: entitiesSel,
				},
			},
		}

		view := &ResponseView{
			VarName:    fmt.Sprintf("representations_%d_%d", pid, i),
			Path:       e.path,
			EntityType: p.Entity,
			KeyFields:  b.keyFields(p),
		}
		docs = append(docs, PartitionDocument{Partition: pid, Resolver: p.Resolver, Text: printDocument(opDef), View: view, Keys: responseKeysOf(content)})
	}
	return docs
}

// keyFields lists the resolver's declared @key field set, in field-set
// order: nested/composite keys are not supported (DESIGN.md).
func (b *docBuilder) keyFields(p *solver.Partition) []schemaindex.FieldID {
	rd := b.idx.Resolver(p.Resolver)
	if !rd.Key.Valid() {
		return nil
	}
	items := b.idx.FieldSet(rd.Key).Items
	out := make([]schemaindex.FieldID, 0, len(items))
	for _, it := range items {
		out = append(out, it.Field)
	}
	return out
}

// findEntryPoints walks the whole bound operation tree once, looking for
// every field occurrence assigned to target whose immediate boundop parent
// occurrence was assigned to a DIFFERENT resolver (or is the operation
// root): those are exactly the places a different partition hands off to
// target (grounded on the n9te9-go-graphql-federation-gateway planner's
// boundary-field detection, generalized from "owned by a different
// subgraph" to "solved by a different resolver node").
func (b *docBuilder) findEntryPoints(target opgraph.NodeID) []entryPoint {
	w := &entryWalker{b: b, target: target}
	w.walk(b.op.RootSelection, b.op.Root, nil, 0)
	return w.entries
}

type entryWalker struct {
	b       *docBuilder
	target  opgraph.NodeID
	entries []entryPoint
}

// walk descends the bound operation tree tracking, at every point, the
// concrete object type and response path the current selection set belongs
// to and which resolver (owner) already produced that object. The moment a
// field in the current selection set turns out to be served by target while
// owner is someone else, the CURRENT object (not the field's own value) is
// what target needs a representation of — so one entry is recorded per
// selection set, not per qualifying field, the first time that happens.
func (w *entryWalker) walk(sel boundop.SelectionSetID, concreteType schemaindex.TypeID, path []string, owner opgraph.NodeID) {
	if !sel.Valid() {
		return
	}
	entryRecorded := false
	for _, item := range w.b.op.SelectionSet(sel).Items {
		switch item.Kind {
		case boundop.SelField:
			node, ok := w.b.fieldNodeOf[item.Field]
			if !ok {
				continue
			}
			resolver := w.b.solved.ResolverOf[node]
			bf := w.b.op.Field(item.Field)
			if resolver == w.target && owner != w.target && !entryRecorded {
				w.entries = append(w.entries, entryPoint{path: path, concreteType: concreteType, sel: sel})
				entryRecorded = true
			}
			if bf.Selection.Valid() {
				childPath := append(append([]string{}, path...), bf.ResponseKey)
				fd := w.b.idx.Field(bf.Definition)
				w.walk(bf.Selection, fd.Type.NamedType(), childPath, resolver)
			}
		case boundop.SelInlineFragment:
			w.walk(item.Inline, concreteType, path, owner)
		case boundop.SelFragmentSpread:
			frag := w.b.op.Fragment(item.Fragment)
			w.walk(frag.Selection, concreteType, path, owner)
		}
	}
}

// printSelection prints every field of sel that partition resolverNode owns
// while "inside" a composite value of concreteType, recursing into fields
// this same partition continues to serve inline and cutting (down to a bare
// __typename) at fields a different partition must supply. Also appends any
// synthetic @requires/@key extra fields this partition must emit at this
// exact occurrence of concreteType (see extrasAt).
func (b *docBuilder) printSelection(resolverNode opgraph.NodeID, concreteType schemaindex.TypeID, sel boundop.SelectionSetID) language.SelectionSet {
	out := newCollected()
	b.collectForPrint(sel, concreteType, out)

	var result language.SelectionSet
	hasTypename := false
	anyCut := false
	for _, item := range out.order {
		if item.typename {
			hasTypename = true
			result = append(result, &language.Field{Name: "__typename", Alias: aliasOrEmpty(item.responseKey, "__typename")})
			continue
		}
		node := b.fieldNodeOf[item.field]
		if b.solved.ResolverOf[node] != resolverNode {
			anyCut = true
			continue
		}
		bf := b.op.Field(item.field)
		fd := b.idx.Field(bf.Definition)
		f := &language.Field{
			Name:      fd.Name,
			Alias:     aliasOrEmpty(bf.ResponseKey, fd.Name),
			Arguments: b.printArguments(bf.Arguments),
		}
		if bf.Selection.Valid() {
			f.SelectionSet = b.printSelection(resolverNode, fd.Type.NamedType(), bf.Selection)
		}
		result = append(result, f)
	}

	for _, extra := range b.extrasAt(resolverNode, concreteType) {
		result = append(result, extra)
	}
	if anyCut && !hasTypename {
		result = append(language.SelectionSet{&language.Field{Name: "__typename"}}, result...)
	}
	return result
}

// collectForPrint mirrors shape.go's collect but also needs the plain field
// id (not just response key) to look up each occurrence's resolver
// assignment, so it cannot reuse shapeBuilder.collect directly.
func (b *docBuilder) collectForPrint(sel boundop.SelectionSetID, concrete schemaindex.TypeID, out *collected) {
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
				b.collectForPrint(item.Inline, concrete, out)
			}
		case boundop.SelFragmentSpread:
			frag := b.op.Fragment(item.Fragment)
			if typeConditionApplies(b.idx, frag.TypeCondition, concrete) {
				b.collectForPrint(frag.Selection, concrete, out)
			}
		}
	}
}

// extrasAt returns, in deterministic order, the synthetic @requires/@key
// field nodes this partition must supply while producing an object of
// concreteType at this exact occurrence — every time, not deduplicated
// across occurrences, since each occurrence is a distinct response object
// that independently needs the value.
func (b *docBuilder) extrasAt(resolverNode opgraph.NodeID, concreteType schemaindex.TypeID) []*language.Field {
	p := b.solved.Partition(b.partitionIDOf(resolverNode))
	var out []*language.Field
	for _, node := range p.Fields {
		n := b.g.Node(node)
		if !n.Synthetic || n.Parent != concreteType {
			continue
		}
		fd := b.idx.Field(n.Definition)
		out = append(out, &language.Field{Name: fd.Name, Alias: ExtraAlias(n.Definition)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (b *docBuilder) partitionIDOf(resolverNode opgraph.NodeID) solver.PartitionID {
	for i := range b.solved.Partitions {
		if b.solved.Partitions[i].ResolverNode == resolverNode {
			return solver.PartitionID(i + 1)
		}
	}
	return 0
}

// ExtraAlias is the deterministic, collision-free response alias every
// synthetic @requires/@key extra field is printed (and read back) under,
// regardless of whether the client also separately selected the same field
// under some other alias at that position. Exported so the executor can
// read these fields back off subgraph responses without reparsing print
// text to recover them.
func ExtraAlias(field schemaindex.FieldID) string {
	return fmt.Sprintf("_extra_%d", field)
}

// responseKeysOf lists the client-visible top-level response keys of sel: the
// real fields a client asked for at this level, skipping synthetic
// @requires/@key extras (their alias always has the "_extra_" prefix
// ExtraAlias produces). Used to know exactly which keys to nullify when the
// subgraph call that owns sel fails outright.
func responseKeysOf(sel language.SelectionSet) []string {
	var keys []string
	for _, item := range sel {
		f, ok := item.(*language.Field)
		if !ok {
			continue
		}
		if strings.HasPrefix(f.Alias, "_extra_") {
			continue
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		keys = append(keys, key)
	}
	return keys
}

func aliasOrEmpty(responseKey, defName string) string {
	if responseKey == defName {
		return ""
	}
	return responseKey
}

func (b *docBuilder) printArguments(args map[string]boundop.ValueID) language.ArgumentList {
	if len(args) == 0 {
		return nil
	}
	var out language.ArgumentList
	for _, name := range sortedKeys(args) {
		out = append(out, &language.Argument{Name: name, Value: b.valueToAST(args[name])})
	}
	return out
}

// valueToAST converts an already-coerced boundop.Value into an AST literal.
// Every argument value ends up inlined as a literal rather than forwarded by
// variable name: coercion in boundop/coerce.go discards the originating
// variable's identity, and since every subgraph call is itself a fresh
// document synthesized at plan time, inlining the concrete value is both
// simpler and sufficient to satisfy the §4.4 invariant that every
// placeholder is a client variable, a literal, or a view reference — here it
// is always a literal (see DESIGN.md).
func (b *docBuilder) valueToAST(id boundop.ValueID) *language.Value {
	if !id.Valid() {
		return &language.Value{Kind: language.NullValue}
	}
	v := b.op.Value(id)
	switch v.Kind {
	case boundop.ValueNull:
		return &language.Value{Kind: language.NullValue}
	case boundop.ValueBool:
		return &language.Value{Kind: language.BooleanValue, Raw: strconv.FormatBool(v.Bool)}
	case boundop.ValueInt:
		return &language.Value{Kind: language.IntValue, Raw: strconv.FormatInt(v.Int, 10)}
	case boundop.ValueFloat:
		return &language.Value{Kind: language.FloatValue, Raw: strconv.FormatFloat(v.Float, 'g', -1, 64)}
	case boundop.ValueString:
		return &language.Value{Kind: language.StringValue, Raw: v.String}
	case boundop.ValueEnum:
		return &language.Value{Kind: language.EnumValue, Raw: v.String}
	case boundop.ValueList:
		children := make(language.ChildValueList, len(v.List))
		for i, e := range v.List {
			children[i] = &language.ChildValue{Value: b.valueToAST(e)}
		}
		return &language.Value{Kind: language.ListValue, Children: children}
	case boundop.ValueObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		children := make(language.ChildValueList, 0, len(keys))
		for _, k := range keys {
			children = append(children, &language.ChildValue{Name: k, Value: b.valueToAST(v.Object[k])})
		}
		return &language.Value{Kind: language.ObjectValue, Children: children}
	default:
		return &language.Value{Kind: language.NullValue}
	}
}

package boundop

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/fedgraph/gateway/internal/language"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// Bind parses source (the designated external collaborator, gqlparser, does
// the tokenizing/parsing — §1), selects operationName (or the sole operation
// if the document has exactly one), coerces rawVariables against the
// operation's declared variable types, and lowers the result into a bound
// Operation (§3.2). Bind performs no planning; it exists so the server and
// tests have a runnable Operation to hand the Operation Graph Builder.
func Bind(idx *schemaindex.Index, source string, operationName string, rawVariables map[string]any) (*Operation, error) {
	doc, err := language.ParseQuery(source)
	if err != nil {
		return nil, fmt.Errorf("boundop: parse: %w", err)
	}

	astOp, err := selectOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	root, err := rootType(idx, astOp.Operation)
	if err != nil {
		return nil, err
	}

	b := &binder{
		idx:       idx,
		doc:       doc,
		op:        newOperation(),
		varsGo:    make(map[string]any),
		fragments: make(map[string]FragmentID),
	}
	b.op.Kind = astOp.Operation
	b.op.Name = astOp.Name
	b.op.Root = root

	if err := b.bindVariables(astOp.VariableDefinitions, rawVariables); err != nil {
		return nil, err
	}

	rootSel, err := b.bindSelectionSet(root, astOp.SelectionSet)
	if err != nil {
		return nil, err
	}
	b.op.RootSelection = rootSel

	return b.op, nil
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name != "" {
		op := doc.Operations.ForName(name)
		if op == nil {
			return nil, fmt.Errorf("boundop: no operation named %q", name)
		}
		return op, nil
	}
	if len(doc.Operations) == 1 {
		return doc.Operations[0], nil
	}
	return nil, fmt.Errorf("boundop: document has %d operations, an operation name is required", len(doc.Operations))
}

func rootType(idx *schemaindex.Index, kind language.Operation) (schemaindex.TypeID, error) {
	var id schemaindex.TypeID
	switch kind {
	case language.Query:
		id = idx.QueryType
	case language.Mutation:
		id = idx.MutationType
	case language.Subscription:
		id = idx.SubscriptionType
	}
	if !id.Valid() {
		return 0, fmt.Errorf("boundop: schema has no root type for operation kind %v", kind)
	}
	return id, nil
}

// binder holds the mutable state of one Bind call: the Operation being
// built, the resolved (already-coerced) Go-native variable values used for
// substitution into argument/default literals, and fragment deduplication.
type binder struct {
	idx       *schemaindex.Index
	doc       *language.QueryDocument
	op        *Operation
	varsGo    map[string]any
	fragments map[string]FragmentID
}

func (b *binder) bindVariables(defs ast.VariableDefinitionList, raw map[string]any) error {
	b.op.Variables = make(map[string]Variable, len(defs))
	for _, vd := range defs {
		name := vd.Variable
		t, err := schemaindex.TypeRefFromAST(b.idx, vd.Type)
		if err != nil {
			return fmt.Errorf("boundop: variable $%s: %w", name, err)
		}

		var defaultID, providedID ValueID
		providedVal, isProvided := raw[name]

		switch {
		case isProvided:
			if providedVal == nil {
				if t.IsNonNull() {
					return fmt.Errorf("boundop: variable $%s of non-null type cannot be null", name)
				}
				b.varsGo[name] = nil
				break
			}
			id, err := b.op.coerceValue(b.idx, providedVal, t)
			if err != nil {
				return fmt.Errorf("boundop: variable $%s: %w", name, err)
			}
			providedID = id
			b.varsGo[name] = providedVal
		case vd.DefaultValue != nil:
			goVal := astValueToGo(vd.DefaultValue, nil)
			id, err := b.op.coerceValue(b.idx, goVal, t)
			if err != nil {
				return fmt.Errorf("boundop: variable $%s default: %w", name, err)
			}
			defaultID = id
			b.varsGo[name] = goVal
		case t.IsNonNull():
			return fmt.Errorf("boundop: variable $%s of required type was not provided", name)
		default:
			b.varsGo[name] = nil
		}

		b.op.Variables[name] = Variable{Name: name, Type: t, Default: defaultID, Provided: providedID}
	}
	return nil
}

func (b *binder) shouldInclude(dirs language.DirectiveList) (bool, error) {
	if skip := dirs.ForName("skip"); skip != nil {
		v, err := b.directiveBool(skip, "if")
		if err != nil {
			return false, err
		}
		if v {
			return false, nil
		}
	}
	if include := dirs.ForName("include"); include != nil {
		v, err := b.directiveBool(include, "if")
		if err != nil {
			return false, err
		}
		if !v {
			return false, nil
		}
	}
	return true, nil
}

func (b *binder) directiveBool(dir *language.Directive, arg string) (bool, error) {
	a := dir.Arguments.ForName(arg)
	if a == nil {
		return false, fmt.Errorf("boundop: @%s missing argument %q", dir.Name, arg)
	}
	v := astValueToGo(a.Value, b.varsGo)
	bv, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("boundop: @%s.%s must be a Boolean", dir.Name, arg)
	}
	return bv, nil
}

// bindSelectionSet lowers a parsed selection set under parent into the
// bound model, inlining fragment spreads by name (deduplicated) and
// recursing into inline fragments and sub-selections.
func (b *binder) bindSelectionSet(parent schemaindex.TypeID, sel language.SelectionSet) (SelectionSetID, error) {
	items := make([]SelectionItem, 0, len(sel))
	for _, s := range sel {
		switch v := s.(type) {
		case *language.Field:
			ok, err := b.shouldInclude(v.Directives)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			item, err := b.bindField(parent, v)
			if err != nil {
				return 0, err
			}
			items = append(items, item)

		case *language.InlineFragment:
			ok, err := b.shouldInclude(v.Directives)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			cond := parent
			if v.TypeCondition != "" {
				tid, ok := b.idx.TypeByName(v.TypeCondition)
				if !ok {
					return 0, fmt.Errorf("boundop: unknown type condition %q", v.TypeCondition)
				}
				cond = tid
			}
			sub, err := b.bindSelectionSet(cond, v.SelectionSet)
			if err != nil {
				return 0, err
			}
			items = append(items, SelectionItem{Kind: SelInlineFragment, TypeCondition: cond, Inline: sub})

		case *language.FragmentSpread:
			ok, err := b.shouldInclude(v.Directives)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			fid, cond, err := b.bindFragment(v.Name)
			if err != nil {
				return 0, err
			}
			items = append(items, SelectionItem{Kind: SelFragmentSpread, TypeCondition: cond, Fragment: fid})
		}
	}
	return b.op.addSelectionSet(SelectionSet{Items: items}), nil
}

func (b *binder) bindField(parent schemaindex.TypeID, v *language.Field) (SelectionItem, error) {
	responseKey := v.Alias
	if responseKey == "" {
		responseKey = v.Name
	}

	if v.Name == "__typename" {
		return SelectionItem{Kind: SelTypename, TypeCondition: parent, ResponseKey: responseKey}, nil
	}

	fid, ok := b.idx.FieldByName(parent, v.Name)
	if !ok {
		return SelectionItem{}, fmt.Errorf("boundop: unknown field %s.%s", b.idx.Type(parent).Name, v.Name)
	}
	fieldDef := b.idx.Field(fid)

	args, err := b.bindArguments(fieldDef, v.Arguments)
	if err != nil {
		return SelectionItem{}, fmt.Errorf("boundop: field %s.%s: %w", b.idx.Type(parent).Name, v.Name, err)
	}

	var sub SelectionSetID
	if len(v.SelectionSet) > 0 {
		sub, err = b.bindSelectionSet(fieldDef.Type.NamedType(), v.SelectionSet)
		if err != nil {
			return SelectionItem{}, err
		}
	}

	bfid := b.op.addField(Field{
		ResponseKey: responseKey,
		Definition:  fid,
		Arguments:   args,
		Selection:   sub,
	})
	return SelectionItem{Kind: SelField, Field: bfid}, nil
}

func (b *binder) bindFragment(name string) (FragmentID, schemaindex.TypeID, error) {
	if fid, ok := b.fragments[name]; ok {
		return fid, b.op.Fragment(fid).TypeCondition, nil
	}
	def := b.doc.Fragments.ForName(name)
	if def == nil {
		return 0, 0, fmt.Errorf("boundop: unknown fragment %q", name)
	}
	cond, ok := b.idx.TypeByName(def.TypeCondition)
	if !ok {
		return 0, 0, fmt.Errorf("boundop: fragment %q: unknown type condition %q", name, def.TypeCondition)
	}
	// Reserve the id before recursing so a (self-)recursive fragment spread
	// sees it already registered instead of infinitely re-binding.
	placeholder := b.op.addFragment(Fragment{TypeCondition: cond})
	b.fragments[name] = placeholder

	sub, err := b.bindSelectionSet(cond, def.SelectionSet)
	if err != nil {
		return 0, 0, err
	}
	b.op.Fragment(placeholder).Selection = sub
	return placeholder, cond, nil
}

func (b *binder) bindArguments(fieldDef *schemaindex.Field, args language.ArgumentList) (map[string]ValueID, error) {
	if len(fieldDef.Arguments) == 0 {
		return nil, nil
	}
	out := make(map[string]ValueID, len(fieldDef.Arguments))
	for _, argID := range fieldDef.Arguments {
		argDef := b.idx.InputValue(argID)
		astArg := args.ForName(argDef.Name)

		switch {
		case astArg != nil:
			goVal := astValueToGo(astArg.Value, b.varsGo)
			if goVal == nil {
				if argDef.Type.IsNonNull() {
					return nil, fmt.Errorf("argument %q of non-null type cannot be null", argDef.Name)
				}
				continue
			}
			id, err := b.op.coerceValue(b.idx, goVal, argDef.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", argDef.Name, err)
			}
			out[argDef.Name] = id
		case argDef.Default != nil:
			goVal := astValueToGo(argDef.Default, nil)
			id, err := b.op.coerceValue(b.idx, goVal, argDef.Type)
			if err != nil {
				return nil, fmt.Errorf("argument %q default: %w", argDef.Name, err)
			}
			out[argDef.Name] = id
		case argDef.Type.IsNonNull():
			return nil, fmt.Errorf("argument %q of required type was not provided", argDef.Name)
		}
	}
	return out, nil
}

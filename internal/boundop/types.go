package boundop

import (
	language "github.com/fedgraph/gateway/internal/language"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// ValueKind is the variant tag for a coerced runtime value (§3.2 "argument-
// value ids" / variable default/provided values).
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueEnum
	ValueList
	ValueObject
)

// Value is a coerced, type-checked literal: an argument value, a variable's
// default or provided value, or an element of one of those. Lists and
// objects hold child ids rather than nested Go values, matching the
// arena-addressed convention used across the core.
type Value struct {
	Kind ValueKind

	Bool   bool
	Int    int64
	Float  float64
	String string // also holds ValueEnum's symbol

	List   []ValueID
	Object map[string]ValueID
}

// SelectionKind is the variant tag for one item of a Selection Set (§3.2).
type SelectionKind uint8

const (
	SelField SelectionKind = iota
	SelTypename
	SelInlineFragment
	SelFragmentSpread
)

// SelectionItem is one entry of an ordered Selection Set; every item
// carries the type condition it applies under (0 = the parent's own type,
// i.e. unconditional).
type SelectionItem struct {
	Kind          SelectionKind
	TypeCondition schemaindex.TypeID

	ResponseKey string         // SelTypename only (alias or "__typename")
	Field       FieldID        // SelField only
	Inline      SelectionSetID // SelInlineFragment only
	Fragment    FragmentID     // SelFragmentSpread only
}

// SelectionSet is an ordered list of selection items (§3.2).
type SelectionSet struct {
	Items []SelectionItem
}

// Field is one field occurrence in the bound operation (§3.2). The same
// schema field definition id may appear as several distinct Field records
// under different parents/aliases.
type Field struct {
	ResponseKey string // alias, or Definition's name if unaliased
	Definition  schemaindex.FieldID
	Arguments   map[string]ValueID
	Selection   SelectionSetID // 0 for scalar/enum leaf fields
}

// Fragment is a named fragment definition, inlined once per distinct name
// referenced by the operation and shared across every spread of it (§3.2).
type Fragment struct {
	TypeCondition schemaindex.TypeID
	Selection     SelectionSetID
}

// Variable is a declared operation variable with its value pre-coerced to
// the declared type (§3.2 invariant); Provided is 0 if the caller left it
// unspecified and Default is also 0 (nullable variable, defaults to null).
type Variable struct {
	Name     string
	Type     schemaindex.TypeRef
	Default  ValueID
	Provided ValueID
}

// Operation is the bound operation handed to the Operation Graph Builder.
type Operation struct {
	Kind language.Operation
	Name string

	Root          schemaindex.TypeID
	RootSelection SelectionSetID

	Variables map[string]Variable

	fields        []Field
	selectionSets []SelectionSet
	fragments     []Fragment
	values        []Value
}

func newOperation() *Operation {
	return &Operation{
		fields:        make([]Field, 1),
		selectionSets: make([]SelectionSet, 1),
		fragments:     make([]Fragment, 1),
		values:        make([]Value, 1),
	}
}

func (op *Operation) addField(f Field) FieldID {
	id := FieldID(len(op.fields))
	op.fields = append(op.fields, f)
	return id
}

func (op *Operation) addSelectionSet(s SelectionSet) SelectionSetID {
	id := SelectionSetID(len(op.selectionSets))
	op.selectionSets = append(op.selectionSets, s)
	return id
}

func (op *Operation) addFragment(f Fragment) FragmentID {
	id := FragmentID(len(op.fragments))
	op.fragments = append(op.fragments, f)
	return id
}

func (op *Operation) addValue(v Value) ValueID {
	id := ValueID(len(op.values))
	op.values = append(op.values, v)
	return id
}

func (op *Operation) Field(id FieldID) *Field               { return &op.fields[id] }
func (op *Operation) SelectionSet(id SelectionSetID) *SelectionSet { return &op.selectionSets[id] }
func (op *Operation) Fragment(id FragmentID) *Fragment       { return &op.fragments[id] }
func (op *Operation) Value(id ValueID) *Value                { return &op.values[id] }

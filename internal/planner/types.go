package planner

import (
	boundop "github.com/fedgraph/gateway/internal/boundop"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
)

// FieldShape is one node of the response shape tree (§4.4 step 1): what the
// response is expected to look like at one field position, independent of
// which partition(s) end up supplying its value. NonNull is the on_error
// policy itself — respstore.Nullify already walks the Parent/NonNull chain
// it is handed at allocation time, so the shape tree only needs to carry the
// nullability bit the executor passes through to NewObjectValue/
// NewListValue/NewListItem; it does not need a separate policy enum.
type FieldShape struct {
	ResponseKey string
	// Definition is the schema field this occurrence selects, or 0 for a
	// synthetic __typename shape (ResponseKey is the alias, "__typename" if
	// unaliased).
	Definition schemaindex.FieldID

	NonNull         bool
	IsList          bool
	ListItemNonNull bool // meaningful only when IsList

	// Branches holds one entry per concrete type this field's value could
	// actually take at runtime: exactly one, naming the field's own named
	// type, when that type is an OBJECT; one per possible type when it is an
	// INTERFACE or UNION (§4.4 "type conditions per branch"). Empty for
	// scalar/enum leaves and for __typename.
	Branches []TypeBranch
}

// TypeBranch is one concrete-type arm of a (possibly polymorphic) object
// shape: the fields the client selected against that concrete type, merged
// across every inline fragment/fragment spread whose type condition the
// concrete type satisfies, in first-occurrence query order.
type TypeBranch struct {
	Type     schemaindex.TypeID
	Children []ShapeID
}

// ResponseView is how an entity-fetch document's representations variable is
// computed from already-written response data (§4.4 step 3): walk to the
// response object at Path from the operation root (iterating every element
// if a list sits along the way — left to the executor, which alone knows
// the actual list lengths at run time), read KeyFields back off of it
// alongside __typename, and build one representation per object found.
// Grounded on the n9te9-go-graphql-federation-gateway planner's InsertionPath
// field, generalized from a single shared document to one view per distinct
// entry occurrence (see document.go).
type ResponseView struct {
	VarName    string
	Path       []string
	EntityType schemaindex.TypeID
	// KeyFields are the schema fields making up the resolver's declared @key,
	// in field-set order. The executor reads each one back from the target
	// object under ExtraAlias(field) and writes it into the representation
	// under its real schema name. Composite (nested) @key fields are not
	// supported; see DESIGN.md.
	KeyFields []schemaindex.FieldID
}

// PartitionDocument is one subgraph request synthesized from a partition
// (§4.4 step 2): either a root-field query/mutation document needing no
// view, or an _entities(representations:...) document paired with the
// ResponseView that computes its representations argument at run time.
type PartitionDocument struct {
	Partition solver.PartitionID
	// Resolver is the resolver this document's partition was solved to,
	// carried here (rather than left for the executor to look up in Solved,
	// which Plan does not retain past Finalize) so the executor can find the
	// target subgraph/headers/retry policy straight off the document.
	Resolver schemaindex.ResolverID
	Text     string
	View     *ResponseView
	// Keys are the top-level response keys this document writes into its
	// target object (the operation root for a root document, or the
	// continuation object named by View.Path for an entity document),
	// client-requested fields only (no synthetic @key/@requires extras, no
	// synthesized __typename used only for cut detection). The executor
	// nullifies exactly these keys when a subgraph call fails outright,
	// without disturbing sibling partitions writing into the same object.
	Keys []string
}

// NodeKind is the variant tag for a PlanNode (§4.4 step 4).
type NodeKind uint8

const (
	NodeResolverStep NodeKind = iota
	NodeFinalize
	// NodeDerive is a response modifier (§9): it materializes an @derive
	// field's value from sibling data already written elsewhere in the
	// response tree, without dispatching anything to a subgraph.
	NodeDerive
)

// DeriveStep is one @derive response-modifier node's work: synthesize the
// value at ResponseKey on the object found at Path, reading Key.Fields'
// Source fields off that same object and writing them back under their
// Target field's name into a representation of Key.Entity.
type DeriveStep struct {
	// Path is the response path, from the operation root, to the object
	// that carries both the sibling source fields and the ResponseKey slot
	// this step fills in.
	Path        []string
	ResponseKey string
	// Shape is the @derive field's own shape, so the executor can tell
	// which of Key.Entity's fields the client actually selected.
	Shape ShapeID
	Key   *schemaindex.DeriveKey
}

// PlanNode is one unit of the executable schedule: a subgraph call (one
// PartitionDocument), a response-modifier step (one DeriveStep), or the
// terminal finalize step every other node feeds into, so the executor knows
// when the whole operation is done and the response can be materialized/
// emitted.
type PlanNode struct {
	Kind     NodeKind
	Document *PartitionDocument // set only for NodeResolverStep
	Derive   *DeriveStep        // set only for NodeDerive

	ParentCount int
	Children    []NodeID
}

// Plan is the output of Finalize: the response shape tree plus the
// executable schedule of subgraph documents and their dependency DAG.
type Plan struct {
	idx    *schemaindex.Index
	op     *boundop.Operation
	shapes []FieldShape
	Root   []ShapeID

	Nodes []PlanNode
}

// Shape returns the record for id.
func (p *Plan) Shape(id ShapeID) *FieldShape { return &p.shapes[id] }

// Node returns the record for id.
func (p *Plan) Node(id NodeID) *PlanNode { return &p.Nodes[id] }

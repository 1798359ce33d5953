package schemaindex

// Ids are dense, zero-based indices into the arena slices held by Index.
// They are stable for the lifetime of a built Index and are never negative;
// the zero value is reserved and never assigned to a real record so that a
// zero id can double as "absent" in optional fields.

type TypeID uint32
type FieldID uint32
type InputValueID uint32
type ResolverID uint32
type FieldSetID uint32
type SubgraphID uint32
type DirectiveID uint32
type EnumValueID uint32
type StringID uint32

const noID = 0

// Valid reports whether the id refers to an allocated record.
func (id TypeID) Valid() bool        { return id != noID }
func (id FieldID) Valid() bool       { return id != noID }
func (id InputValueID) Valid() bool  { return id != noID }
func (id ResolverID) Valid() bool    { return id != noID }
func (id FieldSetID) Valid() bool    { return id != noID }
func (id SubgraphID) Valid() bool    { return id != noID }
func (id DirectiveID) Valid() bool   { return id != noID }
func (id EnumValueID) Valid() bool   { return id != noID }

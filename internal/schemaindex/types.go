package schemaindex

import "github.com/vektah/gqlparser/v2/ast"

// astValue aliases the gqlparser literal AST node used to carry default
// values; schemaindex does not evaluate it, only stores it for boundop.
type astValue = ast.Value

// TypeKind is the variant tag for a Type record (§3.1).
type TypeKind uint8

const (
	KindScalar TypeKind = iota
	KindEnum
	KindObject
	KindInterface
	KindUnion
	KindInputObject
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "SCALAR"
	case KindEnum:
		return "ENUM"
	case KindObject:
		return "OBJECT"
	case KindInterface:
		return "INTERFACE"
	case KindUnion:
		return "UNION"
	case KindInputObject:
		return "INPUT_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// Type is a named entity in the supergraph (§3.1).
type Type struct {
	Name          string
	Description   string
	Kind          TypeKind
	Fields        []FieldID    // OBJECT, INTERFACE
	Interfaces    []TypeID     // OBJECT, INTERFACE
	PossibleTypes []TypeID     // INTERFACE, UNION
	EnumValues    []EnumValueID
	InputFields   []InputValueID
	Directives    []DirectiveID
	// Keys holds one FieldSetID per subgraph that declares @join__type(key: ...)
	// on this entity, keyed by subgraph id.
	Keys map[SubgraphID]FieldSetID
}

type EnumValue struct {
	Name        string
	Description string
	Directives  []DirectiveID
}

// wrap modifier codes, 2 bits each, packed outermost-first starting at the
// low bits of TypeRef.Wrap; the top byte holds the modifier count. This is
// the "bit-packed list/non-null chain plus base id" invariant from §3.1.
const (
	modList    uint32 = 1
	modNonNull uint32 = 2
)

// TypeRef is a reference to a Type with list/non-null wrapping compactly
// packed alongside the base type id (§3.1 invariant).
type TypeRef struct {
	Base TypeID
	Wrap uint32
}

// NamedRef builds an unwrapped reference to base.
func NamedRef(base TypeID) TypeRef { return TypeRef{Base: base} }

func (t TypeRef) depth() int      { return int(t.Wrap >> 24) }
func (t TypeRef) mods() uint32    { return t.Wrap & 0x00FFFFFF }
func withMods(base TypeID, m uint32, depth int) TypeRef {
	return TypeRef{Base: base, Wrap: (uint32(depth) << 24) | (m & 0x00FFFFFF)}
}

func wrapOuter(t TypeRef, mod uint32) TypeRef {
	d := t.depth()
	if d >= 12 {
		panic("schemaindex: type wrapping depth exceeds 12 levels")
	}
	m := (t.mods() << 2) | mod
	return withMods(t.Base, m, d+1)
}

// NonNullOf wraps t in Non-Null.
func NonNullOf(t TypeRef) TypeRef { return wrapOuter(t, modNonNull) }

// ListOf wraps t in a List.
func ListOf(t TypeRef) TypeRef { return wrapOuter(t, modList) }

// IsNonNull reports whether t's outermost wrapper is Non-Null.
func (t TypeRef) IsNonNull() bool {
	return t.depth() > 0 && (t.mods()&0x3) == modNonNull
}

// IsList reports whether t is a list, or a non-null-wrapped list.
func (t TypeRef) IsList() bool {
	d := t.depth()
	if d == 0 {
		return false
	}
	m := t.mods()
	outer := m & 0x3
	if outer == modList {
		return true
	}
	if outer == modNonNull && d > 1 {
		return (m>>2)&0x3 == modList
	}
	return false
}

// Unwrap removes one layer of wrapping (List or Non-Null) and returns the
// inner reference. Unwrapping a named (depth 0) reference is a no-op.
func (t TypeRef) Unwrap() TypeRef {
	d := t.depth()
	if d == 0 {
		return t
	}
	return withMods(t.Base, t.mods()>>2, d-1)
}

// NamedType returns the innermost named type id.
func (t TypeRef) NamedType() TypeID { return t.Base }

// Field is a field definition on an Object or Interface (§3.1).
type Field struct {
	Name       string
	Description string
	Parent     TypeID
	Type       TypeRef
	Arguments  []InputValueID
	Directives []DirectiveID
	IsDeprecated bool
	DeprecationReason string

	// Federation metadata (§3.1, §6 join__field).
	Requires FieldSetID // 0 if none
	Provides FieldSetID // 0 if none
	Override *OverrideInfo
	// Subgraphs lists every subgraph that places this field, in the order
	// @join__field(graph:) directives appeared.
	Subgraphs []SubgraphID
	// External marks the field as declared-but-not-resolvable on a given
	// subgraph (join__field(external: true)); keyed by subgraph.
	External map[SubgraphID]bool
	// Derive is set for a field declared @derive(key: "..."): the gateway
	// materializes this field's value itself, from sibling data already on
	// the parent object, rather than ever dispatching it to a subgraph
	// (§9 Response Modifier). nil for an ordinary field.
	Derive *DeriveKey
}

// DeriveKey is one field's @derive(key: "...") directive: the entity type
// this field's value takes, plus the sibling-to-key field mapping used to
// synthesize that entity's representation.
type DeriveKey struct {
	Entity TypeID
	Fields []DeriveFieldMapping
}

// DeriveFieldMapping pairs one of Entity's own key fields (Target) with the
// sibling field on the @derive field's parent type (Source) that already
// carries its value — the field-set alias syntax "target: source" names
// the pair ("target" bare when source and target share a name).
type DeriveFieldMapping struct {
	Target FieldID
	Source FieldID
}

type OverrideInfo struct {
	FromSubgraph SubgraphID
	Label        string
}

// InputValue is an argument or input-object field definition.
type InputValue struct {
	Name        string
	Description string
	Type        TypeRef
	// Default is the declared default value's AST literal, or nil if the
	// argument/input field has none. boundop materializes it into a coerced
	// runtime value when an argument/variable is left unspecified.
	Default    *astValue
	Directives []DirectiveID
}

// ResolverKind is the variant tag for a Resolver record (§3.1).
type ResolverKind uint8

const (
	ResolverIntrospection ResolverKind = iota
	ResolverGraphqlRootField
	ResolverGraphqlFederationEntity
)

// Resolver is a candidate way to fetch some subset of fields on an entity
// (§3.1). For ResolverGraphqlFederationEntity, Key is the required field set
// from the parent.
type Resolver struct {
	Kind     ResolverKind
	Subgraph SubgraphID
	Entity   TypeID
	Key      FieldSetID // valid only for ResolverGraphqlFederationEntity
}

// FieldSetItem is one element of an ordered, deduplicated field set (§3.1).
type FieldSetItem struct {
	Field FieldID
	// SubSelection is a nested field set, for composite-typed selections
	// inside @key/@requires/@provides (e.g. `@key(fields: "id nested { a b }")`).
	SubSelection FieldSetID // 0 if none
}

// FieldSet is an ordered, sorted, deduplicated set of (field, sub-selection)
// pairs (§3.1), used for @key/@requires/@provides.
type FieldSet struct {
	Items []FieldSetItem
}

// HeaderRuleKind enumerates the supported header forwarding behaviors (§6).
type HeaderRuleKind uint8

const (
	HeaderForward HeaderRuleKind = iota
	HeaderInsert
	HeaderRename
	HeaderDefault
)

// HeaderRule is one per-subgraph request-header transformation rule.
type HeaderRule struct {
	Kind  HeaderRuleKind
	Name  string // source header name (Forward/Rename) or header to set (Insert/Default)
	Rename string // destination name, HeaderRename only
	Value string // static value, HeaderInsert/HeaderDefault only
}

// RetryPolicy configures subgraph call retries (§4.5, §7).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelayMS int
	MaxDelayMS  int
}

// EntityCachePolicy configures the per-subgraph entity cache (§6, supplemented
// from original_source/crates/gateway-config/src/entity_caching.rs).
type EntityCachePolicy struct {
	Enabled bool
	TTLSeconds int
}

// Subgraph is one backend GraphQL service contributing to the supergraph.
type Subgraph struct {
	Name         string
	URL          string
	HeaderRules  []HeaderRule
	Retry        RetryPolicy
	EntityCache  EntityCachePolicy
}

// Directive is a named directive attached to a definition by id list.
type Directive struct {
	Name      string
	Arguments map[string]*astValue
}

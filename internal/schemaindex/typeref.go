package schemaindex

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// TypeRefFromAST resolves an operation-side AST type (e.g. a variable
// declaration's type) against an already-built Index. Unlike the builder's
// internal resolveTypeRef, it never auto-registers unknown names: every
// type an operation references must already exist in the supergraph.
func TypeRefFromAST(idx *Index, t *ast.Type) (TypeRef, error) {
	if t == nil {
		return TypeRef{}, fmt.Errorf("schemaindex: nil type reference")
	}
	if t.Elem != nil {
		inner, err := TypeRefFromAST(idx, t.Elem)
		if err != nil {
			return TypeRef{}, err
		}
		ref := ListOf(inner)
		if t.NonNull {
			ref = NonNullOf(ref)
		}
		return ref, nil
	}
	base, ok := idx.TypeByName(t.NamedType)
	if !ok {
		return TypeRef{}, fmt.Errorf("schemaindex: unknown type %q", t.NamedType)
	}
	ref := NamedRef(base)
	if t.NonNull {
		ref = NonNullOf(ref)
	}
	return ref, nil
}

package schemaindex

import (
	"github.com/vektah/gqlparser/v2/ast"
)

var builtinScalars = map[string]bool{
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
}

// buildTypesAndFields is the first structural pass: every named type and its
// fields/arguments/enum-values/input-fields, with TypeRef wrapping resolved.
// Federation metadata (requires/provides/keys/resolvers) is filled in by
// later passes once every type and field id is known.
func (b *builder) buildTypesAndFields() error {
	// Pass 1: allocate a Type record (without Fields/EnumValues/etc. bodies)
	// for every definition, so cross-references resolve regardless of
	// declaration order.
	for _, d := range b.doc.Definitions {
		if isMetaType(d.Name) || d.BuiltIn {
			continue
		}
		kind, ok := typeKindOf(d.Kind)
		if !ok {
			continue
		}
		b.idx.addType(Type{Name: d.Name, Description: d.Description, Kind: kind})
	}

	// Pass 2: fill bodies now that every TypeID exists.
	for _, d := range b.doc.Definitions {
		if isMetaType(d.Name) || d.BuiltIn {
			continue
		}
		tid, ok := b.idx.TypeByName(d.Name)
		if !ok {
			continue
		}
		t := b.idx.Type(tid)

		switch d.Kind {
		case ast.Object, ast.Interface:
			for _, iface := range d.Interfaces {
				if iid, ok := b.idx.TypeByName(iface); ok {
					t.Interfaces = append(t.Interfaces, iid)
				}
			}
			for _, fd := range d.Fields {
				fid := b.buildField(tid, fd)
				t.Fields = append(t.Fields, fid)
			}
		case ast.Union:
			for _, member := range d.Types {
				if mid, ok := b.idx.TypeByName(member); ok {
					t.PossibleTypes = append(t.PossibleTypes, mid)
				}
			}
		case ast.Enum:
			for _, ev := range d.EnumValues {
				evid := b.idx.addEnumValue(EnumValue{Name: ev.Name, Description: ev.Description})
				t.EnumValues = append(t.EnumValues, evid)
			}
		case ast.InputObject:
			for _, fd := range d.Fields {
				t.InputFields = append(t.InputFields, b.buildInputValueFromField(tid, fd))
			}
		}
	}

	// Pass 3: interfaces' PossibleTypes = objects that implement them.
	for i := 1; i < len(b.idx.types); i++ {
		obj := &b.idx.types[i]
		if obj.Kind != KindObject {
			continue
		}
		for _, iid := range obj.Interfaces {
			iface := b.idx.Type(iid)
			iface.PossibleTypes = append(iface.PossibleTypes, TypeID(i))
		}
	}
	return nil
}

func typeKindOf(k ast.DefinitionKind) (TypeKind, bool) {
	switch k {
	case ast.Scalar:
		return KindScalar, true
	case ast.Enum:
		return KindEnum, true
	case ast.Object:
		return KindObject, true
	case ast.Interface:
		return KindInterface, true
	case ast.Union:
		return KindUnion, true
	case ast.InputObject:
		return KindInputObject, true
	}
	return 0, false
}

func (b *builder) buildField(parent TypeID, fd *ast.FieldDefinition) FieldID {
	f := Field{
		Name:        fd.Name,
		Description: fd.Description,
		Parent:      parent,
		Type:        b.resolveTypeRef(fd.Type),
	}
	if dep := fd.Directives.ForName("deprecated"); dep != nil {
		f.IsDeprecated = true
		if reason, ok := stringArg(dep, "reason"); ok {
			f.DeprecationReason = reason
		}
	}
	for _, ad := range fd.Arguments {
		f.Arguments = append(f.Arguments, b.buildArgument(ad))
	}
	return b.idx.addField(f)
}

func (b *builder) buildArgument(ad *ast.ArgumentDefinition) InputValueID {
	iv := InputValue{
		Name:        ad.Name,
		Description: ad.Description,
		Type:        b.resolveTypeRef(ad.Type),
		Default:     ad.DefaultValue,
	}
	return b.idx.addInputValue(iv)
}

func (b *builder) buildInputValueFromField(parent TypeID, fd *ast.FieldDefinition) InputValueID {
	iv := InputValue{
		Name:        fd.Name,
		Description: fd.Description,
		Type:        b.resolveTypeRef(fd.Type),
		Default:     fd.DefaultValue,
	}
	return b.idx.addInputValue(iv)
}

// resolveTypeRef converts a gqlparser AST type into a TypeRef, bit-packing
// the list/non-null wrapper chain (§3.1) and auto-registering built-in
// scalars encountered only as a reference (never declared in the SDL).
func (b *builder) resolveTypeRef(t *ast.Type) TypeRef {
	if t == nil {
		return TypeRef{}
	}
	if t.Elem != nil {
		inner := b.resolveTypeRef(t.Elem)
		ref := ListOf(inner)
		if t.NonNull {
			ref = NonNullOf(ref)
		}
		return ref
	}
	base := b.ensureNamedType(t.NamedType)
	ref := NamedRef(base)
	if t.NonNull {
		ref = NonNullOf(ref)
	}
	return ref
}

func (b *builder) ensureNamedType(name string) TypeID {
	if id, ok := b.idx.TypeByName(name); ok {
		return id
	}
	kind := KindScalar
	if !builtinScalars[name] {
		// Referenced-but-undeclared type: treat as an opaque scalar rather
		// than failing the build; Solver/Executor will surface a planning
		// error if a client ever selects into it.
		kind = KindScalar
	}
	return b.idx.addType(Type{Name: name, Kind: kind})
}

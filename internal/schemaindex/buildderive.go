package schemaindex

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/fedgraph/gateway/internal/language"
)

// buildDerive processes `@derive(key: "...")` (§9 Response Modifier): a
// field whose value the gateway synthesizes itself from sibling data already
// present on the parent object, instead of ever dispatching it to a
// subgraph. Runs after buildJoinMetadata, once every Type/Field id exists.
func (b *builder) buildDerive() error {
	for i := 1; i < len(b.idx.types); i++ {
		tid := TypeID(i)
		d := b.defByName[b.idx.Type(tid).Name]
		if d == nil {
			continue
		}
		for _, fd := range d.Fields {
			fid, ok := b.idx.FieldByName(tid, fd.Name)
			if !ok {
				continue
			}
			for _, dir := range fd.Directives {
				if dir.Name != "derive" {
					continue
				}
				keyStr, ok := stringArg(dir, "key")
				if !ok || keyStr == "" {
					continue
				}
				dk, err := b.parseDeriveKey(tid, fid, keyStr)
				if err != nil {
					return fmt.Errorf("schemaindex: field %s.%s @derive: %w", b.idx.Type(tid).Name, fd.Name, err)
				}
				b.idx.Field(fid).Derive = dk
			}
		}
	}
	return nil
}

// parseDeriveKey parses a @derive key string as a field set, the same
// external-collaborator trick parseFieldSet uses: wrap it in braces and
// reuse gqlparser's query parser (§1). Each selection's Name resolves
// against parent (the sibling field whose value already sits on the object
// the @derive field is attached to) and its alias — defaulting to Name when
// absent, the same convention boundop uses for response keys — resolves
// against the derived field's own named type, identifying which of that
// entity's fields the sibling value fills in.
func (b *builder) parseDeriveKey(parent TypeID, fid FieldID, raw string) (*DeriveKey, error) {
	target := b.idx.Field(fid).Type.NamedType()

	doc, err := language.ParseQuery("{" + raw + "}")
	if err != nil {
		return nil, fmt.Errorf("invalid derive key %q: %w", raw, err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("invalid derive key %q", raw)
	}

	sel := doc.Operations[0].SelectionSet
	mappings := make([]DeriveFieldMapping, 0, len(sel))
	for _, s := range sel {
		af, ok := s.(*ast.Field)
		if !ok {
			continue
		}
		sourceField, ok := b.idx.FieldByName(parent, af.Name)
		if !ok {
			return nil, fmt.Errorf("derive key references unknown sibling field %s on %s", af.Name, b.idx.Type(parent).Name)
		}
		responseKey := af.Alias
		if responseKey == "" {
			responseKey = af.Name
		}
		targetField, ok := b.idx.FieldByName(target, responseKey)
		if !ok {
			return nil, fmt.Errorf("derive key references unknown field %s on %s", responseKey, b.idx.Type(target).Name)
		}
		mappings = append(mappings, DeriveFieldMapping{Target: targetField, Source: sourceField})
	}
	if len(mappings) == 0 {
		return nil, fmt.Errorf("derive key %q names no fields", raw)
	}
	return &DeriveKey{Entity: target, Fields: mappings}, nil
}

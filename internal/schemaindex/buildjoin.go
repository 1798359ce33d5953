package schemaindex

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/fedgraph/gateway/internal/language"
)

// buildJoinMetadata processes `@join__type` (entity membership + keys) and
// `@join__field` (field placement + requires/provides/override/external)
// directives (§6), now that every Type/Field id exists.
func (b *builder) buildJoinMetadata() error {
	for i := 1; i < len(b.idx.types); i++ {
		tid := TypeID(i)
		t := &b.idx.types[tid]
		d := b.defByName[t.Name]
		if d == nil {
			continue
		}
		if err := b.applyJoinType(tid, d.Directives); err != nil {
			return err
		}
		for _, fd := range d.Fields {
			fid, ok := b.idx.FieldByName(tid, fd.Name)
			if !ok {
				continue
			}
			if err := b.applyJoinField(tid, fid, fd.Directives); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) applyJoinType(tid TypeID, dirs ast.DirectiveList) error {
	t := b.idx.Type(tid)
	for _, dir := range dirs {
		if dir.Name != "join__type" {
			continue
		}
		graphName, ok := enumArg(dir, "graph")
		if !ok {
			continue
		}
		sg, err := b.subgraphByDirectiveValue(graphName)
		if err != nil {
			return fmt.Errorf("schemaindex: type %s: %w", t.Name, err)
		}
		keyStr, hasKey := stringArg(dir, "key")
		if !hasKey || keyStr == "" {
			continue
		}
		fsid, err := b.parseFieldSet(tid, keyStr)
		if err != nil {
			return fmt.Errorf("schemaindex: type %s @key on %s: %w", t.Name, graphName, err)
		}
		if t.Keys == nil {
			t.Keys = make(map[SubgraphID]FieldSetID)
		}
		t.Keys[sg] = fsid
	}
	return nil
}

func (b *builder) applyJoinField(parent TypeID, fid FieldID, dirs ast.DirectiveList) error {
	f := b.idx.Field(fid)
	for _, dir := range dirs {
		if dir.Name != "join__field" {
			continue
		}
		if graphName, ok := enumArg(dir, "graph"); ok {
			sg, err := b.subgraphByDirectiveValue(graphName)
			if err != nil {
				return fmt.Errorf("schemaindex: field %s.%s: %w", b.idx.Type(parent).Name, f.Name, err)
			}
			f.Subgraphs = append(f.Subgraphs, sg)
			if boolArg(dir, "external") {
				if f.External == nil {
					f.External = make(map[SubgraphID]bool)
				}
				f.External[sg] = true
			}
			if label, ok := stringArg(dir, "overrideLabel"); ok {
				f.Override = &OverrideInfo{FromSubgraph: sg, Label: label}
			} else if _, ok := stringArg(dir, "override"); ok {
				f.Override = &OverrideInfo{FromSubgraph: sg}
			}
		}
		if requiresStr, ok := stringArg(dir, "requires"); ok && requiresStr != "" && f.Requires == 0 {
			fsid, err := b.parseFieldSet(parent, requiresStr)
			if err != nil {
				return fmt.Errorf("schemaindex: field %s.%s @requires: %w", b.idx.Type(parent).Name, f.Name, err)
			}
			f.Requires = fsid
		}
		if providesStr, ok := stringArg(dir, "provides"); ok && providesStr != "" && f.Provides == 0 {
			namedRet := f.Type.NamedType()
			fsid, err := b.parseFieldSet(namedRet, providesStr)
			if err != nil {
				return fmt.Errorf("schemaindex: field %s.%s @provides: %w", b.idx.Type(parent).Name, f.Name, err)
			}
			f.Provides = fsid
		}
	}
	// A field with no explicit @join__field at all is implicitly placed on
	// every subgraph that owns the parent type (composition already
	// resolved ambiguity); leave Subgraphs empty here and let the resolver
	// pass fall back to "every subgraph with a resolver for this entity".
	return nil
}

// parseFieldSet parses a federation field-set string (e.g. "id nested { a }")
// against parentType, producing a sorted/deduplicated FieldSetID (§3.1).
// Field-set strings use GraphQL selection-set grammar without the braces;
// gqlparser's query parser is reused as the external collaborator for
// tokenizing/parsing (§1), wrapping the string in braces first.
func (b *builder) parseFieldSet(parentType TypeID, raw string) (FieldSetID, error) {
	doc, err := language.ParseQuery("{" + raw + "}")
	if err != nil {
		return 0, err
	}
	if len(doc.Operations) != 1 {
		return 0, fmt.Errorf("invalid field set %q", raw)
	}
	return b.fieldSetFromSelection(parentType, doc.Operations[0].SelectionSet)
}

func (b *builder) fieldSetFromSelection(parentType TypeID, sel ast.SelectionSet) (FieldSetID, error) {
	items := make([]FieldSetItem, 0, len(sel))
	for _, s := range sel {
		af, ok := s.(*ast.Field)
		if !ok {
			continue // typename markers/fragments are not meaningful in a key/requires/provides set
		}
		fid, ok := b.idx.FieldByName(parentType, af.Name)
		if !ok {
			return 0, fmt.Errorf("unknown field %s on %s", af.Name, b.idx.Type(parentType).Name)
		}
		var sub FieldSetID
		if len(af.SelectionSet) > 0 {
			named := b.idx.Field(fid).Type.NamedType()
			var err error
			sub, err = b.fieldSetFromSelection(named, af.SelectionSet)
			if err != nil {
				return 0, err
			}
		}
		items = append(items, FieldSetItem{Field: fid, SubSelection: sub})
	}
	return b.newFieldSet(items), nil
}

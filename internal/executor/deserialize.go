package executor

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	planner "github.com/fedgraph/gateway/internal/planner"
	respstore "github.com/fedgraph/gateway/internal/respstore"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// shapeIndex builds a lookup from response key to shape id for one flat
// slice of shapes (either plan.Root or a TypeBranch's Children), shared by
// writeTopLevel's single-pass commit.
func (r *run) shapeIndex(shapes []planner.ShapeID) map[string]planner.ShapeID {
	out := make(map[string]planner.ShapeID, len(shapes))
	for _, sid := range shapes {
		out[r.plan.Shape(sid).ResponseKey] = sid
	}
	return out
}

// writeTopLevel commits exactly doc's own keys from data into the object at
// objVal (§4.5 step 3). A key present in keys but absent from data —
// including every key, when data is nil, the total-dispatch-failure case —
// is a subgraph contract violation and null-propagates via Nullify. Keys
// belonging to a sibling partition writing into the same object are never
// touched, since they are simply not in keys.
func (r *run) writeTopLevel(shapes []planner.ShapeID, keys []string, objVal respstore.ValueID, data map[string]any) {
	if len(shapes) == 0 {
		return
	}
	byKey := r.shapeIndex(shapes)
	objID := r.store.Value(objVal).Object
	for _, key := range keys {
		sid, ok := byKey[key]
		if !ok {
			continue
		}
		shape := r.plan.Shape(sid)
		raw, present := data[key]
		if !present {
			id := r.store.NewValue(objVal, respstore.KeyElem(key), shape.NonNull)
			r.store.SetField(objID, key, id)
			r.store.Nullify(id, fmt.Sprintf("subgraph response missing field %q", shape.ResponseKey), map[string]any{"code": "INVALID_SUBGRAPH_RESPONSE"})
			continue
		}
		child := r.writeValue(shape, objVal, respstore.KeyElem(key), raw)
		r.store.SetField(objID, key, child)
	}
}

// nullifyFetchFailure nullifies every one of doc's own keys on objVal with a
// SUBGRAPH_ERROR code, used when the subgraph round trip itself failed
// (network error, timeout, non-2xx status) rather than when it succeeded but
// returned malformed or incomplete data (§7 distinguishes the two;
// writeTopLevel's own missing-field branch covers the latter with
// INVALID_SUBGRAPH_RESPONSE).
func (r *run) nullifyFetchFailure(shapes []planner.ShapeID, keys []string, objVal respstore.ValueID, fetchErr error) {
	if len(shapes) == 0 {
		return
	}
	byKey := r.shapeIndex(shapes)
	objID := r.store.Value(objVal).Object
	for _, key := range keys {
		sid, ok := byKey[key]
		if !ok {
			continue
		}
		shape := r.plan.Shape(sid)
		id := r.store.NewValue(objVal, respstore.KeyElem(key), shape.NonNull)
		r.store.SetField(objID, key, id)
		r.store.Nullify(id, fmt.Sprintf("subgraph request failed: %v", fetchErr), map[string]any{"code": "SUBGRAPH_ERROR"})
	}
}

// writeFields commits every shape whose response key is present in data,
// silently skipping shapes that are absent: below the top level, a missing
// key is indistinguishable from a legitimate hand-off cut point to another
// partition (document.go's printSelection cuts fields entirely rather than
// replacing them with a placeholder), so it is never raised as an error.
func (r *run) writeFields(shapes []planner.ShapeID, objVal respstore.ValueID, data map[string]any) {
	objID := r.store.Value(objVal).Object
	for _, sid := range shapes {
		shape := r.plan.Shape(sid)
		raw, present := data[shape.ResponseKey]
		if !present {
			continue
		}
		child := r.writeValue(shape, objVal, respstore.KeyElem(shape.ResponseKey), raw)
		r.store.SetField(objID, shape.ResponseKey, child)
	}
}

// writeValue allocates a fresh slot at (parent, key) and fills it from raw,
// dispatching on shape's own kind (list takes priority over branches, which
// take priority over a scalar/enum leaf — the same ordering buildFieldShape
// uses to populate FieldShape in the first place).
func (r *run) writeValue(shape *planner.FieldShape, parent respstore.ValueID, key respstore.PathElement, raw any) respstore.ValueID {
	if raw == nil {
		id := r.store.NewValue(parent, key, shape.NonNull)
		r.fillNull(shape, id)
		return id
	}
	switch {
	case shape.IsList:
		return r.writeList(shape, parent, key, raw)
	case len(shape.Branches) > 0:
		id := r.store.NewObjectValue(parent, key, shape.NonNull)
		r.fillObject(shape, id, raw)
		return id
	default:
		id := r.store.NewValue(parent, key, shape.NonNull)
		r.fillScalar(shape, id, raw)
		return id
	}
}

func (r *run) fillNull(shape *planner.FieldShape, id respstore.ValueID) {
	if shape.NonNull {
		r.store.Nullify(id, fmt.Sprintf("cannot return null for non-nullable field %q", shape.ResponseKey), nil)
		return
	}
	r.store.SetNull(id)
}

// writeList allocates a list value and fills each item. Only a single level
// of list nesting is supported: FieldShape.IsList carries no nesting depth
// of its own (see shape.go), a pre-existing limitation this package does
// not attempt to lift (DESIGN.md). An item that is itself a JSON array is not
// walked: under an object shape it is nulled as a type mismatch, and under a
// scalar shape fillScalar stores its JSON text, as for a custom scalar.
func (r *run) writeList(shape *planner.FieldShape, parent respstore.ValueID, key respstore.PathElement, raw any) respstore.ValueID {
	items, ok := raw.([]any)
	if !ok {
		id := r.store.NewValue(parent, key, shape.NonNull)
		r.store.Nullify(id, fmt.Sprintf("expected a list for field %q", shape.ResponseKey), nil)
		return id
	}
	list := r.store.NewListValue(parent, key, shape.NonNull)
	for i, item := range items {
		id := r.store.NewListItem(list, i, shape.ListItemNonNull)
		r.fillListItem(shape, id, item)
	}
	return list
}

// fillListItem fills an already-allocated list element slot (NewListItem
// leaves it bare, KindUnset, since its concrete kind is whatever the JSON
// payload turns out to hold).
func (r *run) fillListItem(shape *planner.FieldShape, id respstore.ValueID, raw any) {
	if raw == nil {
		r.fillNull(shape, id)
		return
	}
	if len(shape.Branches) > 0 {
		r.store.MakeObject(id)
		r.fillObject(shape, id, raw)
		return
	}
	r.fillScalar(shape, id, raw)
}

// fillObject picks the concrete type's branch by __typename, remembers it in
// branchOf for any later continuation targeting this same object, and
// writes its fields.
func (r *run) fillObject(shape *planner.FieldShape, id respstore.ValueID, raw any) {
	data, ok := raw.(map[string]any)
	if !ok {
		r.store.Nullify(id, fmt.Sprintf("expected an object for field %q", shape.ResponseKey), nil)
		return
	}
	children := selectBranch(r.idx, shape.Branches, data)
	r.branchOf[id] = children
	r.writeFields(children, id, data)
	r.recordExtras(id, data)
}

// selectBranch picks the TypeBranch matching data's own __typename,
// defaulting to the sole branch when the field is not actually polymorphic
// (the common OBJECT-typed case, where there is exactly one).
func selectBranch(idx *schemaindex.Index, branches []planner.TypeBranch, data map[string]any) []planner.ShapeID {
	if len(branches) == 0 {
		return nil
	}
	if len(branches) == 1 {
		return branches[0].Children
	}
	typename, _ := data["__typename"].(string)
	for _, b := range branches {
		if idx.Type(b.Type).Name == typename {
			return b.Children
		}
	}
	return branches[0].Children
}

// fillScalar writes a leaf value: __typename (Definition unset) is always a
// bare string, an enum-kinded field is written via SetEnum, everything else
// dispatches on the field's own named scalar type.
func (r *run) fillScalar(shape *planner.FieldShape, id respstore.ValueID, raw any) {
	if !shape.Definition.Valid() {
		if s, ok := raw.(string); ok {
			r.store.SetString(id, s)
			return
		}
		r.store.Nullify(id, "expected a string for __typename", nil)
		return
	}

	fd := r.idx.Field(shape.Definition)
	named := r.idx.Type(fd.Type.NamedType())
	if named.Kind == schemaindex.KindEnum {
		if s, ok := raw.(string); ok {
			r.store.SetEnum(id, s)
			return
		}
		r.store.Nullify(id, fmt.Sprintf("expected an enum value for field %q", shape.ResponseKey), nil)
		return
	}

	switch v := raw.(type) {
	case bool:
		r.store.SetBool(id, v)
	case string:
		r.store.SetString(id, v)
	case int64:
		// Already a typed store int (e.g. read back via readScalar from a
		// sibling field the client selected directly), not raw JSON.
		r.store.SetInt(id, v)
	case float64:
		if named.Name == "Int" {
			r.store.SetInt(id, int64(v))
		} else {
			r.store.SetFloat(id, v)
		}
	default:
		// A custom scalar whose JSON shape is itself an object/array: re-encode
		// verbatim. respstore has no "raw JSON" value kind (§3.6 scalars are
		// opaque strings/numbers/bools to the core), so it is carried as its
		// JSON text rather than attempting to model it structurally.
		enc, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
		if err != nil {
			r.store.Nullify(id, fmt.Sprintf("cannot serialize value for field %q", shape.ResponseKey), nil)
			return
		}
		r.store.SetString(id, string(enc))
	}
}

// recordExtras pulls every synthetic @key/@requires alias out of data (see
// document.go's ExtraAlias) into this run's side table, leaving respstore
// itself untouched: these values only ever feed a later representations
// variable, never the client response.
func (r *run) recordExtras(objVal respstore.ValueID, data map[string]any) {
	for key, raw := range data {
		if !strings.HasPrefix(key, "_extra_") {
			continue
		}
		m := r.extrasOf[objVal]
		if m == nil {
			m = make(map[string]any)
			r.extrasOf[objVal] = m
		}
		m[key] = raw
	}
}

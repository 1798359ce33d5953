package executor

import (
	planner "github.com/fedgraph/gateway/internal/planner"
	respstore "github.com/fedgraph/gateway/internal/respstore"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// runDerive materializes one @derive field's value in place (§9 Response
// Modifier): for every object found at step.Path, build a fresh
// representation of step.Key.Entity under step.ResponseKey by reading
// step.Key.Fields' Source values back off that same object — no subgraph
// call. Scope is deliberately narrow: only the client's own key-field
// sub-selection (plus __typename) is filled in; any other requested field of
// the derived entity would need a further subgraph fetch this response
// modifier never makes, so it is nulled instead (DESIGN.md).
func (r *run) runDerive(step *planner.DeriveStep) {
	r.mu.Lock()
	defer r.mu.Unlock()

	shape := r.plan.Shape(step.Shape)
	children := deriveBranchChildren(shape, step.Key.Entity)

	for _, parent := range r.collectPathTargets(step.Path) {
		val := r.store.Value(parent)
		if val.Kind != respstore.KindObject {
			continue
		}
		obj := r.store.Object(val.Object)
		if _, exists := obj.Value(step.ResponseKey); exists {
			continue
		}
		r.writeDerivedObject(parent, val.Object, step, shape, children)
	}
}

// deriveBranchChildren picks the requested children for the derived field's
// own (possibly polymorphic) shape: the branch matching entity, or the sole
// branch of a non-polymorphic field.
func deriveBranchChildren(shape *planner.FieldShape, entity schemaindex.TypeID) []planner.ShapeID {
	for _, b := range shape.Branches {
		if b.Type == entity {
			return b.Children
		}
	}
	if len(shape.Branches) > 0 {
		return shape.Branches[0].Children
	}
	return nil
}

// writeDerivedObject allocates the object value for step.ResponseKey on
// parentObj and fills in every requested child: __typename, each key field
// with a matching sibling source value, and null for anything else.
func (r *run) writeDerivedObject(parentVal respstore.ValueID, parentObj respstore.ObjectID, step *planner.DeriveStep, shape *planner.FieldShape, children []planner.ShapeID) {
	id := r.store.NewObjectValue(parentVal, respstore.KeyElem(step.ResponseKey), shape.NonNull)
	r.store.SetField(parentObj, step.ResponseKey, id)
	childObj := r.store.Value(id).Object

	srcObj := r.store.Object(parentObj)
	entityName := r.idx.Type(step.Key.Entity).Name

	for _, cid := range children {
		cs := r.plan.Shape(cid)
		if cs.ResponseKey == "__typename" && !cs.Definition.Valid() {
			leaf := r.store.NewValue(id, respstore.KeyElem(cs.ResponseKey), true)
			r.store.SetString(leaf, entityName)
			r.store.SetField(childObj, cs.ResponseKey, leaf)
			continue
		}

		mapping, ok := findDeriveMapping(step.Key, cs.Definition)
		if !ok {
			r.writeDeriveUnavailable(id, childObj, cs)
			continue
		}
		raw, ok := r.deriveSourceValue(parentVal, srcObj, mapping.Source)
		if !ok {
			r.writeDeriveUnavailable(id, childObj, cs)
			continue
		}
		leaf := r.store.NewValue(id, respstore.KeyElem(cs.ResponseKey), cs.NonNull)
		r.fillScalar(cs, leaf, raw)
		r.store.SetField(childObj, cs.ResponseKey, leaf)
	}
}

// deriveSourceValue reads a @derive key's sibling source field's value off
// the parent object, preferring the synthetic _extra_ alias requireField
// forced into the fetch (when the client never selected the sibling field
// itself) and falling back to the field as actually written into the
// response, the same dual lookup buildRepresentations uses for @key fields.
func (r *run) deriveSourceValue(parentVal respstore.ValueID, srcObj *respstore.Object, source schemaindex.FieldID) (any, bool) {
	if val, ok := r.extrasOf[parentVal][planner.ExtraAlias(source)]; ok {
		return val, true
	}
	srcChild, ok := srcObj.Value(r.idx.Field(source).Name)
	if !ok || r.store.IsNulled(srcChild) {
		return nil, false
	}
	return r.readScalar(srcChild)
}

// writeDeriveUnavailable fills a requested child of a derived field that
// this response modifier cannot supply: a plain null for a nullable slot, or
// a propagated null-propagation error for a non-null one, matching the rest
// of the executor's null-propagation discipline (respstore.Nullify).
func (r *run) writeDeriveUnavailable(parent respstore.ValueID, obj respstore.ObjectID, cs *planner.FieldShape) {
	leaf := r.store.NewValue(parent, respstore.KeyElem(cs.ResponseKey), cs.NonNull)
	r.store.SetField(obj, cs.ResponseKey, leaf)
	if cs.NonNull {
		r.store.Nullify(leaf, "derive: field is not part of the derived key and was not fetched", map[string]any{"code": "DERIVE_FIELD_UNAVAILABLE"})
		return
	}
	r.store.SetNull(leaf)
}

func findDeriveMapping(key *schemaindex.DeriveKey, target schemaindex.FieldID) (schemaindex.DeriveFieldMapping, bool) {
	for _, m := range key.Fields {
		if m.Target == target {
			return m, true
		}
	}
	return schemaindex.DeriveFieldMapping{}, false
}

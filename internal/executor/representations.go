package executor

import (
	planner "github.com/fedgraph/gateway/internal/planner"
	respstore "github.com/fedgraph/gateway/internal/respstore"
)

// collectViewTargets walks view.Path from the operation root through
// already-written response data, flattening transparently through any list
// found along the way (ResponseView's own doc comment: "iterating every
// element if a list sits along the way"), and returns every object found at
// the end of the path, in arrival order.
func (r *run) collectViewTargets(view *planner.ResponseView) []respstore.ValueID {
	return r.collectPathTargets(view.Path)
}

// collectPathTargets is collectViewTargets generalized to a bare response
// path, also used by a DeriveStep to find its parent object(s) (§9).
func (r *run) collectPathTargets(path []string) []respstore.ValueID {
	cur := []respstore.ValueID{r.store.Root()}
	for _, seg := range path {
		var next []respstore.ValueID
		for _, v := range cur {
			next = append(next, r.stepInto(v, seg)...)
		}
		cur = next
	}
	return cur
}

// stepInto reads key off v, recursing through v itself when v is a list
// rather than the object the key applies to. A missing or already-nulled
// slot contributes no targets: whatever continuation would have needed a
// representation there was already discarded by an earlier null
// propagation, so there is nothing left to fetch.
func (r *run) stepInto(v respstore.ValueID, key string) []respstore.ValueID {
	val := r.store.Value(v)
	switch val.Kind {
	case respstore.KindList:
		var out []respstore.ValueID
		for _, item := range val.List {
			out = append(out, r.stepInto(item, key)...)
		}
		return out
	case respstore.KindObject:
		child, ok := r.store.Object(val.Object).Value(key)
		if !ok || r.store.IsNulled(child) {
			return nil
		}
		return []respstore.ValueID{child}
	default:
		return nil
	}
}

// buildRepresentations computes the `representations` variable for view:
// one entry per target object found by collectViewTargets, each carrying
// __typename plus every declared @key field read back under its real schema
// name. A target missing a key value (its own subtree already nulled, or
// the subgraph never actually supplied it) is dropped rather than sent with
// a hole in its key.
func (r *run) buildRepresentations(view *planner.ResponseView) ([]respstore.ValueID, []map[string]any) {
	targets := r.collectViewTargets(view)
	entityName := r.idx.Type(view.EntityType).Name

	kept := make([]respstore.ValueID, 0, len(targets))
	reps := make([]map[string]any, 0, len(targets))
	for _, t := range targets {
		rep := map[string]any{"__typename": entityName}
		complete := true
		for _, fid := range view.KeyFields {
			fieldName := r.idx.Field(fid).Name
			val, ok := r.extrasOf[t][planner.ExtraAlias(fid)]
			if !ok {
				val, ok = r.fieldValue(t, fieldName)
			}
			if !ok {
				complete = false
				break
			}
			rep[fieldName] = val
		}
		if !complete {
			continue
		}
		kept = append(kept, t)
		reps = append(reps, rep)
	}
	return kept, reps
}

// fieldValue reads an already-written scalar field back off an object value,
// for building a representation from a @key field the client itself also
// selected (so no _extra_ alias for it exists).
func (r *run) fieldValue(t respstore.ValueID, fieldName string) (any, bool) {
	val := r.store.Value(t)
	if val.Kind != respstore.KindObject {
		return nil, false
	}
	child, ok := r.store.Object(val.Object).Value(fieldName)
	if !ok {
		return nil, false
	}
	return r.readScalar(child)
}

func (r *run) readScalar(id respstore.ValueID) (any, bool) {
	v := r.store.Value(id)
	switch v.Kind {
	case respstore.KindBool:
		return v.Bool, true
	case respstore.KindInt:
		return v.Int, true
	case respstore.KindFloat:
		return v.Float, true
	case respstore.KindString, respstore.KindEnum:
		return v.String, true
	default:
		return nil, false
	}
}

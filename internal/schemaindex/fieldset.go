package schemaindex

import "sort"

// sortFieldSet sorts items by field id so that field-set equality and
// union are linear, per the §3.1/§4.1 invariant ("field sets are stored
// sorted and deduplicated"). Ties (same field id, e.g. a field selected both
// plainly and with a sub-selection) are merged by the caller before sorting.
func sortFieldSet(items []FieldSetItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Field < items[j].Field })
}

// newFieldSet builds (and registers) a FieldSet from items, sorting and
// deduplicating as it goes. Duplicate field ids have their sub-selections
// unioned recursively.
func (b *builder) newFieldSet(items []FieldSetItem) FieldSetID {
	if len(items) == 0 {
		return 0
	}
	byField := make(map[FieldID]FieldSetID, len(items))
	order := make([]FieldID, 0, len(items))
	for _, it := range items {
		if existing, ok := byField[it.Field]; ok {
			byField[it.Field] = b.unionFieldSets(existing, it.SubSelection)
			continue
		}
		byField[it.Field] = it.SubSelection
		order = append(order, it.Field)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]FieldSetItem, len(order))
	for i, fid := range order {
		out[i] = FieldSetItem{Field: fid, SubSelection: byField[fid]}
	}
	return b.idx.addFieldSet(FieldSet{Items: out})
}

// Union merges two sorted field sets into a new sorted, deduplicated set in
// one linear pass (§4.1). Ties on field id merge sub-selections recursively.
func Union(idx *Index, a, b FieldSetID) FieldSetID {
	bd := &builder{idx: idx}
	return bd.unionFieldSets(a, b)
}

func (b *builder) unionFieldSets(a, c FieldSetID) FieldSetID {
	if a == 0 {
		return c
	}
	if c == 0 {
		return a
	}
	ai := b.idx.FieldSet(a).Items
	ci := b.idx.FieldSet(c).Items
	out := make([]FieldSetItem, 0, len(ai)+len(ci))
	i, j := 0, 0
	for i < len(ai) && j < len(ci) {
		switch {
		case ai[i].Field < ci[j].Field:
			out = append(out, ai[i])
			i++
		case ai[i].Field > ci[j].Field:
			out = append(out, ci[j])
			j++
		default:
			merged := b.unionFieldSets(ai[i].SubSelection, ci[j].SubSelection)
			out = append(out, FieldSetItem{Field: ai[i].Field, SubSelection: merged})
			i++
			j++
		}
	}
	out = append(out, ai[i:]...)
	out = append(out, ci[j:]...)
	return b.idx.addFieldSet(FieldSet{Items: out})
}

// Contains reports whether every item of need is present (recursively) in have.
func Contains(idx *Index, have, need FieldSetID) bool {
	if need == 0 {
		return true
	}
	if have == 0 {
		return false
	}
	haveItems := idx.FieldSet(have).Items
	haveByField := make(map[FieldID]FieldSetID, len(haveItems))
	for _, it := range haveItems {
		haveByField[it.Field] = it.SubSelection
	}
	for _, it := range idx.FieldSet(need).Items {
		sub, ok := haveByField[it.Field]
		if !ok {
			return false
		}
		if !Contains(idx, sub, it.SubSelection) {
			return false
		}
	}
	return true
}

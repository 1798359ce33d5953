package server

import (
	"context"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	executor "github.com/fedgraph/gateway/internal/executor"
	hooks "github.com/fedgraph/gateway/internal/hooks"
	respstore "github.com/fedgraph/gateway/internal/respstore"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// queryElements flattens a bound operation's selections into the flat list
// authorize_query evaluates (§6), one entry per field occurrence, alias
// collisions included.
func queryElements(idx *schemaindex.Index, op *boundop.Operation) []hooks.QueryElement {
	var out []hooks.QueryElement
	walkSelectionSet(idx, op, op.RootSelection, op.Root, nil, &out)
	return out
}

func walkSelectionSet(idx *schemaindex.Index, op *boundop.Operation, setID boundop.SelectionSetID, parentType schemaindex.TypeID, path []string, out *[]hooks.QueryElement) {
	set := op.SelectionSet(setID)
	for _, item := range set.Items {
		switch item.Kind {
		case boundop.SelField:
			f := op.Field(item.Field)
			fieldPath := append(append([]string{}, path...), f.ResponseKey)
			fd := idx.Field(f.Definition)
			*out = append(*out, hooks.QueryElement{
				Path:      fieldPath,
				TypeName:  idx.Type(parentType).Name,
				FieldName: fd.Name,
			})
			if f.Selection != 0 {
				walkSelectionSet(idx, op, f.Selection, fd.Type.NamedType(), fieldPath, out)
			}
		case boundop.SelInlineFragment:
			cond := item.TypeCondition
			if cond == 0 {
				cond = parentType
			}
			walkSelectionSet(idx, op, item.Inline, cond, path, out)
		case boundop.SelFragmentSpread:
			frag := op.Fragment(item.Fragment)
			walkSelectionSet(idx, op, frag.Selection, frag.TypeCondition, path, out)
		case boundop.SelTypename:
			// __typename carries no authorization weight of its own.
		}
	}
}

func deniedElements(decisions []hooks.Decision) []hooks.Decision {
	var out []hooks.Decision
	for _, d := range decisions {
		if !d.Allow {
			out = append(out, d)
		}
	}
	return out
}

func deniedResponse(denied []hooks.Decision) specResult {
	errs := make([]specError, len(denied))
	for i, d := range denied {
		reason := d.Reason
		if reason == "" {
			reason = "not authorized"
		}
		errs[i] = specError{
			Message:    "field " + d.Element.FieldName + ": " + reason,
			Path:       stringsToAny(d.Element.Path),
			Extensions: map[string]any{"code": "PERMISSION_DENIED"},
		}
	}
	return specResult{Errors: errs}
}

func stringsToAny(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// applyResponseAuthorization walks result's already-materialized data tree,
// asks authorizer to decide on every object it finds, and nulls out denied
// objects in place. It operates on the plain Go value tree executor.Execute
// already produced (not respstore), since by this point response-modifier
// evaluation (§4.6) has nothing left to propagate through but parent/child
// map and slice references.
func applyResponseAuthorization(ctx context.Context, authorizer hooks.ResponseAuthorizer, state any, result *executor.ExecutionResult) {
	elements := collectResponseElements(result.Data, nil)
	if len(elements) == 0 {
		return
	}
	decisions, err := authorizer.AuthorizeResponse(ctx, state, elements)
	if err != nil {
		result.Errors = append(result.Errors, respstore.Error{Message: "authorize_response: " + err.Error()})
		return
	}
	for _, d := range decisions {
		if !d.Denied {
			continue
		}
		nullifyPath(result.Data, d.Path)
		reason := d.Reason
		if reason == "" {
			reason = "not authorized"
		}
		result.Errors = append(result.Errors, respstore.Error{
			Message:    reason,
			Path:       stringPathToRespstore(d.Path),
			Extensions: map[string]any{"code": "PERMISSION_DENIED"},
		})
	}
}

func stringPathToRespstore(path []string) []respstore.PathElement {
	if len(path) == 0 {
		return nil
	}
	out := make([]respstore.PathElement, len(path))
	for i, s := range path {
		out[i] = respstore.PathElement{Key: s}
	}
	return out
}

func collectResponseElements(v any, path []string) []hooks.ResponseElement {
	switch val := v.(type) {
	case map[string]any:
		fields := make(map[string]any, len(val))
		for k, fv := range val {
			switch fv.(type) {
			case map[string]any, []any:
				// nested structures are walked separately below, not copied here
			default:
				fields[k] = fv
			}
		}
		typeName, _ := val["__typename"].(string)
		out := []hooks.ResponseElement{{Path: append([]string{}, path...), TypeName: typeName, Fields: fields}}
		for k, fv := range val {
			out = append(out, collectResponseElements(fv, append(append([]string{}, path...), k))...)
		}
		return out
	case []any:
		var out []hooks.ResponseElement
		for _, item := range val {
			out = append(out, collectResponseElements(item, path)...)
		}
		return out
	default:
		return nil
	}
}

func nullifyPath(root any, path []string) {
	cur := root
	for i, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return
		}
		if i == len(path)-1 {
			m[seg] = nil
			return
		}
		cur = m[seg]
	}
}

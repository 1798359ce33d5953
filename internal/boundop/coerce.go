package boundop

import (
	"fmt"
	"strconv"

	language "github.com/fedgraph/gateway/internal/language"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// astValueToGo converts a parsed AST literal into a plain Go value,
// substituting variable references from vars. Adapted from the teacher's
// executor/values.go valueFromASTWithVars + astValueToGo, which did the same
// substitution against map[string]any before GraphQL-Go-native coercion.
func astValueToGo(v *language.Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case language.Variable:
		return vars[v.Raw]
	case language.IntValue:
		n, _ := strconv.ParseInt(v.Raw, 10, 64)
		return n
	case language.FloatValue:
		f, _ := strconv.ParseFloat(v.Raw, 64)
		return f
	case language.StringValue, language.BlockValue:
		return v.Raw
	case language.BooleanValue:
		return v.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return v.Raw
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			out[i] = astValueToGo(c.Value, vars)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any, len(v.Children))
		for _, f := range v.Children {
			m[f.Name] = astValueToGo(f.Value, vars)
		}
		return m
	default:
		return nil
	}
}

// coerceValue type-checks and converts a Go-native literal into the bound
// operation's Value arena, per the declared type t. Mirrors the wrapper
// unwinding in the teacher's executor/values.go coerceValue, generalized to
// build arena-addressed Values instead of returning bare Go values.
func (op *Operation) coerceValue(idx *schemaindex.Index, v any, t schemaindex.TypeRef) (ValueID, error) {
	if t.IsNonNull() {
		if v == nil {
			return 0, fmt.Errorf("cannot provide null for a non-null value")
		}
		return op.coerceValue(idx, v, t.Unwrap())
	}
	if v == nil {
		return op.addValue(Value{Kind: ValueNull}), nil
	}
	if t.IsList() {
		return op.coerceList(idx, v, t.Unwrap())
	}
	named := idx.Type(t.NamedType())
	switch named.Kind {
	case schemaindex.KindScalar:
		return op.coerceScalar(named.Name, v)
	case schemaindex.KindEnum:
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("value for enum %s must be an enum literal", named.Name)
		}
		return op.addValue(Value{Kind: ValueEnum, String: s}), nil
	case schemaindex.KindInputObject:
		return op.coerceInputObject(idx, v, named)
	default:
		return 0, fmt.Errorf("type %s cannot be used as an input type", named.Name)
	}
}

func (op *Operation) coerceList(idx *schemaindex.Index, v any, elem schemaindex.TypeRef) (ValueID, error) {
	items, ok := v.([]any)
	if !ok {
		// Per GraphQL coercion rules, a bare value coerces into a single-item list.
		id, err := op.coerceValue(idx, v, elem)
		if err != nil {
			return 0, err
		}
		return op.addValue(Value{Kind: ValueList, List: []ValueID{id}}), nil
	}
	ids := make([]ValueID, len(items))
	for i, it := range items {
		id, err := op.coerceValue(idx, it, elem)
		if err != nil {
			return 0, fmt.Errorf("list element %d: %w", i, err)
		}
		ids[i] = id
	}
	return op.addValue(Value{Kind: ValueList, List: ids}), nil
}

func (op *Operation) coerceInputObject(idx *schemaindex.Index, v any, named *schemaindex.Type) (ValueID, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("value for input object %s must be an object", named.Name)
	}
	out := make(map[string]ValueID, len(named.InputFields))
	for _, ivid := range named.InputFields {
		iv := idx.InputValue(ivid)
		raw, present := m[iv.Name]
		if !present {
			if iv.Default != nil {
				id, err := op.coerceValue(idx, astValueToGo(iv.Default, nil), iv.Type)
				if err != nil {
					return 0, fmt.Errorf("field %s.%s default: %w", named.Name, iv.Name, err)
				}
				out[iv.Name] = id
				continue
			}
			if iv.Type.IsNonNull() {
				return 0, fmt.Errorf("field %s.%s is required", named.Name, iv.Name)
			}
			continue
		}
		id, err := op.coerceValue(idx, raw, iv.Type)
		if err != nil {
			return 0, fmt.Errorf("field %s.%s: %w", named.Name, iv.Name, err)
		}
		out[iv.Name] = id
	}
	return op.addValue(Value{Kind: ValueObject, Object: out}), nil
}

func (op *Operation) coerceScalar(name string, v any) (ValueID, error) {
	switch name {
	case "Int":
		n, err := coerceInt(v)
		if err != nil {
			return 0, err
		}
		return op.addValue(Value{Kind: ValueInt, Int: n}), nil
	case "Float":
		f, err := coerceFloat(v)
		if err != nil {
			return 0, err
		}
		return op.addValue(Value{Kind: ValueFloat, Float: f}), nil
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot coerce %v to Boolean", v)
		}
		return op.addValue(Value{Kind: ValueBool, Bool: b}), nil
	case "String", "ID":
		switch s := v.(type) {
		case string:
			return op.addValue(Value{Kind: ValueString, String: s}), nil
		case int64:
			return op.addValue(Value{Kind: ValueString, String: strconv.FormatInt(s, 10)}), nil
		default:
			return 0, fmt.Errorf("cannot coerce %v to %s", v, name)
		}
	default:
		// Custom scalar: pass the literal through untyped, same leniency the
		// teacher's coerceValue shows for scalars it doesn't special-case.
		return op.addValue(customScalarValue(v)), nil
	}
}

func customScalarValue(v any) Value {
	switch s := v.(type) {
	case string:
		return Value{Kind: ValueString, String: s}
	case bool:
		return Value{Kind: ValueBool, Bool: s}
	case int64:
		return Value{Kind: ValueInt, Int: s}
	case float64:
		return Value{Kind: ValueFloat, Float: s}
	default:
		return Value{Kind: ValueNull}
	}
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
		return 0, fmt.Errorf("cannot coerce %v to Int without precision loss", v)
	default:
		return 0, fmt.Errorf("cannot coerce %v to Int", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot coerce %v to Float", v)
	}
}

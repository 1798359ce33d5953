package planner

import (
	"strconv"
	"strings"

	language "github.com/fedgraph/gateway/internal/language"
)

// printDocument is the hand-rolled printer SPEC_FULL.md calls for: gqlparser
// parses GraphQL documents but never prints one back out, so subgraph
// requests synthesized as language.OperationDefinition trees need their own
// textual form here (see original_source/crates/engine/operation's
// analogous "build query for subgraph" step).
func printDocument(op *language.OperationDefinition) string {
	var b strings.Builder
	b.WriteString(string(op.Operation))
	if len(op.VariableDefinitions) > 0 {
		b.WriteString("(")
		for i, v := range op.VariableDefinitions {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$")
			b.WriteString(v.Variable)
			b.WriteString(": ")
			b.WriteString(printType(v.Type))
		}
		b.WriteString(")")
	}
	b.WriteString(" ")
	printSelectionSet(&b, op.SelectionSet, 0)
	return b.String()
}

func printType(t *language.Type) string {
	if t.Elem != nil {
		s := "[" + printType(t.Elem) + "]"
		if t.NonNull {
			s += "!"
		}
		return s
	}
	s := t.NamedType
	if t.NonNull {
		s += "!"
	}
	return s
}

func printSelectionSet(b *strings.Builder, sel language.SelectionSet, indent int) {
	b.WriteString("{\n")
	for _, s := range sel {
		writeIndent(b, indent+1)
		printSelection(b, s, indent+1)
		b.WriteString("\n")
	}
	writeIndent(b, indent)
	b.WriteString("}")
}

func printSelection(b *strings.Builder, s language.Selection, indent int) {
	switch v := s.(type) {
	case *language.Field:
		if v.Alias != "" {
			b.WriteString(v.Alias)
			b.WriteString(": ")
		}
		b.WriteString(v.Name)
		if len(v.Arguments) > 0 {
			printArguments(b, v.Arguments)
		}
		if len(v.SelectionSet) > 0 {
			b.WriteString(" ")
			printSelectionSet(b, v.SelectionSet, indent)
		}
	case *language.InlineFragment:
		b.WriteString("... on ")
		b.WriteString(v.TypeCondition)
		b.WriteString(" ")
		printSelectionSet(b, v.SelectionSet, indent)
	}
}

func printArguments(b *strings.Builder, args language.ArgumentList) {
	b.WriteString("(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteString(": ")
		printValue(b, a.Value)
	}
	b.WriteString(")")
}

func printValue(b *strings.Builder, v *language.Value) {
	switch v.Kind {
	case language.Variable:
		b.WriteString("$")
		b.WriteString(v.Raw)
	case language.StringValue, language.BlockValue:
		b.WriteString(strconv.Quote(v.Raw))
	case language.EnumValue:
		b.WriteString(v.Raw)
	case language.NullValue:
		b.WriteString("null")
	case language.ListValue:
		b.WriteString("[")
		for i, c := range v.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			printValue(b, c.Value)
		}
		b.WriteString("]")
	case language.ObjectValue:
		b.WriteString("{")
		for i, c := range v.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.Name)
			b.WriteString(": ")
			printValue(b, c.Value)
		}
		b.WriteString("}")
	default: // IntValue, FloatValue, BooleanValue
		b.WriteString(v.Raw)
	}
}

func writeIndent(b *strings.Builder, n int) {
	for i := 0; i < n; i++ {
		b.WriteString("  ")
	}
}

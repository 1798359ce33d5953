package schemaindex

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/fedgraph/gateway/internal/language"
)

// Build compiles a composed supergraph SDL (already parsed into a
// *language.SchemaDocument by the external collaborator, gqlparser — see
// §1 "Operation parsing, variable coercion, and validation... consumes an
// already-bound operation") into an immutable Index (§3.1, §4.1).
//
// The SDL is expected to use federation join__* directives (§6):
// `join__Graph` enumerates subgraphs, `@join__type` declares entity
// membership/keys, `@join__field` declares field placement/requires/
// provides/override.
func Build(doc *language.SchemaDocument) (*Index, error) {
	b := &builder{
		idx: newIndex(),
		doc: doc,
	}
	if err := b.run(); err != nil {
		return nil, err
	}
	return b.idx, nil
}

// BuildFromSDL is a convenience wrapper around language.ParseSchema + Build.
func BuildFromSDL(name, sdl string) (*Index, error) {
	doc, err := language.ParseSchema(name, sdl)
	if err != nil {
		return nil, fmt.Errorf("schemaindex: parse SDL: %w", err)
	}
	return Build(doc)
}

type builder struct {
	idx *Index
	doc *language.SchemaDocument

	defByName map[string]*ast.Definition
}

func (b *builder) run() error {
	b.defByName = make(map[string]*ast.Definition, len(b.doc.Definitions))
	for _, d := range b.doc.Definitions {
		b.defByName[d.Name] = d
	}

	if err := b.buildSubgraphs(); err != nil {
		return err
	}
	if err := b.buildTypesAndFields(); err != nil {
		return err
	}
	if err := b.buildJoinMetadata(); err != nil {
		return err
	}
	if err := b.buildDerive(); err != nil {
		return err
	}
	b.buildRoots()
	if err := b.buildResolvers(); err != nil {
		return err
	}
	return nil
}

// buildRoots resolves the schema's root operation type names, defaulting to
// the conventional Query/Mutation/Subscription names per the GraphQL spec.
func (b *builder) buildRoots() {
	query, mutation, subscription := "Query", "Mutation", "Subscription"
	for _, sd := range b.doc.Schema {
		for _, op := range sd.OperationTypes {
			switch op.Operation {
			case ast.Query:
				query = op.Type
			case ast.Mutation:
				mutation = op.Type
			case ast.Subscription:
				subscription = op.Type
			}
		}
	}
	if id, ok := b.idx.TypeByName(query); ok {
		b.idx.QueryType = id
	}
	if id, ok := b.idx.TypeByName(mutation); ok {
		b.idx.MutationType = id
	}
	if id, ok := b.idx.TypeByName(subscription); ok {
		b.idx.SubscriptionType = id
	}
}

// isMetaType reports whether a definition is part of the federation join__*
// or link__* machinery rather than supergraph-visible schema content.
func isMetaType(name string) bool {
	switch name {
	case "join__Graph", "join__FieldSet", "join__DirectiveArguments",
		"link__Import", "link__Purpose", "_Any", "_Entity", "_Service":
		return true
	}
	return len(name) >= 6 && (name[:6] == "join__" || name[:6] == "link__")
}

func directiveArg(dir *ast.Directive, name string) (*ast.Argument, bool) {
	if dir == nil {
		return nil, false
	}
	arg := dir.Arguments.ForName(name)
	if arg == nil {
		return nil, false
	}
	return arg, true
}

func stringArg(dir *ast.Directive, name string) (string, bool) {
	arg, ok := directiveArg(dir, name)
	if !ok || arg.Value == nil {
		return "", false
	}
	return arg.Value.Raw, true
}

func boolArg(dir *ast.Directive, name string) bool {
	arg, ok := directiveArg(dir, name)
	if !ok || arg.Value == nil {
		return false
	}
	return arg.Value.Raw == "true"
}

func enumArg(dir *ast.Directive, name string) (string, bool) {
	return stringArg(dir, name)
}

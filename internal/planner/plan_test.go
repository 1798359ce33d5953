package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
)

const testSupergraphSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION

enum join__Graph {
	ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.internal")
	REVIEWS @join__graph(name: "reviews", url: "http://reviews.internal")
}

type Query {
	me: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") @join__type(graph: REVIEWS, key: "id") {
	id: ID! @join__field(graph: ACCOUNTS) @join__field(graph: REVIEWS)
	name: String @join__field(graph: ACCOUNTS)
	reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
	id: ID! @join__field(graph: REVIEWS)
	body: String @join__field(graph: REVIEWS)
	author: User @join__field(graph: REVIEWS, provides: "name")
}
`

func plan(t *testing.T, query string) (*schemaindex.Index, *boundop.Operation, *opgraph.Graph, *solver.Solved, *Plan) {
	t.Helper()
	idx, err := schemaindex.BuildFromSDL("test", testSupergraphSDL)
	require.NoError(t, err)
	op, err := boundop.Bind(idx, query, "", nil)
	require.NoError(t, err)
	g, err := opgraph.Build(idx, op)
	require.NoError(t, err)
	solved, err := solver.Solve(idx, g)
	require.NoError(t, err)
	p, err := Finalize(idx, op, g, solved)
	require.NoError(t, err)
	return idx, op, g, solved, p
}

func TestBuildShapeTreeMatchesSelection(t *testing.T) {
	_, _, _, _, p := plan(t, `{ me { name reviews { body } } }`)

	require.Len(t, p.Root, 1)
	me := p.Shape(p.Root[0])
	require.Equal(t, "me", me.ResponseKey)
	require.False(t, me.IsList)
	require.Len(t, me.Branches, 1)

	userFields := me.Branches[0].Children
	require.Len(t, userFields, 2)

	nameShape := p.Shape(userFields[0])
	require.Equal(t, "name", nameShape.ResponseKey)
	require.False(t, nameShape.NonNull)

	reviewsShape := p.Shape(userFields[1])
	require.Equal(t, "reviews", reviewsShape.ResponseKey)
	require.True(t, reviewsShape.NonNull)
	require.True(t, reviewsShape.IsList)
	require.True(t, reviewsShape.ListItemNonNull)

	bodyShape := p.Shape(reviewsShape.Branches[0].Children[0])
	require.Equal(t, "body", bodyShape.ResponseKey)
}

func TestFinalizeProducesOneRootDocument(t *testing.T) {
	_, _, _, solved, p := plan(t, `{ me { name } }`)

	require.Len(t, solved.Partitions, 1, "ACCOUNTS alone resolves me.name by continuation")

	var resolverSteps int
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i].Kind == NodeResolverStep {
			resolverSteps++
			require.Nil(t, p.Nodes[i].Document.View, "a root-field document needs no representations")
			require.Contains(t, p.Nodes[i].Document.Text, "me")
			require.Contains(t, p.Nodes[i].Document.Text, "name")
		}
	}
	require.Equal(t, 1, resolverSteps)

	finalize := p.Nodes[len(p.Nodes)-1]
	require.Equal(t, NodeFinalize, finalize.Kind)
	require.Equal(t, resolverSteps, finalize.ParentCount)
}

func TestFinalizeProducesEntityDocumentWithRepresentations(t *testing.T) {
	_, _, _, solved, p := plan(t, `{ me { reviews { body } } }`)

	require.Len(t, solved.Partitions, 2, "ACCOUNTS resolves me, REVIEWS's User entity resolver continues inline for reviews+body")

	var entityDoc *PartitionDocument
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i].Kind != NodeResolverStep {
			continue
		}
		if p.Nodes[i].Document.View != nil {
			entityDoc = p.Nodes[i].Document
		}
	}
	require.NotNil(t, entityDoc, "one document must carry the _entities representations view")
	require.Contains(t, entityDoc.Text, "_entities")
	require.Contains(t, entityDoc.Text, "representations")
	// The REVIEWS resolver chosen here is User's entity resolver: it already
	// continues inline to serve Review.body (same subgraph, no extra hop), so
	// the representation fetched is a User, not a Review.
	require.Contains(t, entityDoc.Text, "... on User")
	require.Contains(t, entityDoc.Text, "reviews")
	require.Contains(t, entityDoc.Text, "body")

	view := entityDoc.View
	require.Equal(t, []string{"me"}, view.Path)
	require.NotEmpty(t, view.KeyFields)

	// Each partition (ACCOUNTS root, REVIEWS entity fetch) yields exactly one
	// resolver step.
	require.Equal(t, len(solved.Partitions), countResolverSteps(p))
}

func countResolverSteps(p *Plan) int {
	n := 0
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i].Kind == NodeResolverStep {
			n++
		}
	}
	return n
}

func TestPrintDocumentIndentsNestedSelections(t *testing.T) {
	_, _, _, _, p := plan(t, `{ me { name } }`)
	var text string
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i].Kind == NodeResolverStep {
			text = p.Nodes[i].Document.Text
		}
	}
	require.True(t, strings.HasPrefix(text, "query"))
	require.Contains(t, text, "{\n")
}

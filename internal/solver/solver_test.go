package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
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

func solveQuery(t *testing.T, query string) (*schemaindex.Index, *opgraph.Graph, *Solved) {
	t.Helper()
	idx, err := schemaindex.BuildFromSDL("test", testSupergraphSDL)
	require.NoError(t, err)
	op, err := boundop.Bind(idx, query, "", nil)
	require.NoError(t, err)
	g, err := opgraph.Build(idx, op)
	require.NoError(t, err)
	sol, err := Solve(idx, g)
	require.NoError(t, err)
	return idx, g, sol
}

func findField(g *opgraph.Graph, responseKey string) opgraph.NodeID {
	for id := 1; id < g.NumNodes(); id++ {
		n := g.Node(opgraph.NodeID(id))
		if n.Kind == opgraph.FieldNode && n.ResponseKey == responseKey {
			return opgraph.NodeID(id)
		}
	}
	return 0
}

func TestSolveSimpleQueryOnePartition(t *testing.T) {
	idx, g, sol := solveQuery(t, `{ me { name } }`)

	me := findField(g, "me")
	name := findField(g, "name")
	require.Equal(t, sol.ResolverOf[me], sol.ResolverOf[name])
	require.Len(t, sol.Partitions, 1)
	require.Equal(t, schemaindex.ResolverGraphqlRootField, idx.Resolver(sol.Partitions[0].Resolver).Kind)
	require.Equal(t, 0, sol.Cost)
}

func TestSolveCrossSubgraphFieldAddsEntityPartition(t *testing.T) {
	idx, g, sol := solveQuery(t, `{ me { name reviews { body } } }`)

	reviews := findField(g, "reviews")
	resolverNode := sol.ResolverOf[reviews]
	require.Equal(t, schemaindex.ResolverGraphqlFederationEntity, idx.Resolver(g.Node(resolverNode).Resolver).Kind)

	require.Len(t, sol.Partitions, 2)
	require.Equal(t, 1, sol.Cost) // one entity hop: REVIEWS for User
}

func TestSolveKeyFieldCreatesDependency(t *testing.T) {
	_, _, sol := solveQuery(t, `{ me { reviews { body } } }`)

	require.Len(t, sol.Partitions, 2)

	// The entity partition (User via REVIEWS) must depend on the partition
	// that produced its @key input ("id"), which only the root/ACCOUNTS
	// partition resolves in this query.
	var rootPID, entityPID PartitionID
	for i := range sol.Partitions {
		pid := PartitionID(i + 1)
		if deps := sol.DependsOn[pid]; len(deps) > 0 {
			entityPID = pid
			rootPID = deps[0]
		}
	}
	require.True(t, entityPID.Valid())
	require.True(t, rootPID.Valid())
	require.NotEqual(t, entityPID, rootPID)
}

const deriveTestSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION
directive @derive(key: String!) on FIELD_DEFINITION

enum join__Graph {
	COMMENTS @join__graph(name: "comments", url: "http://comments.internal")
	ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.internal")
}

type Query {
	comment: Comment @join__field(graph: COMMENTS)
}

type Comment @join__type(graph: COMMENTS, key: "id") {
	id: ID! @join__field(graph: COMMENTS)
	body: String @join__field(graph: COMMENTS)
	authorId: ID! @join__field(graph: COMMENTS)
	author: User @join__field(graph: COMMENTS) @derive(key: "id: authorId")
}

type User @join__type(graph: ACCOUNTS, key: "id") {
	id: ID! @join__field(graph: ACCOUNTS)
	name: String @join__field(graph: ACCOUNTS)
}
`

// TestSolveDerivedFieldSkipsResolverButSolvesSiblingSource is the solver-level
// unit test for the derive wiring gap fixed in Solve's main loop: a @derive
// node must never reach ResolverOf (it has no candidates to choose from, and
// solveField is never called on it), yet its key's sibling source field
// (authorId, never selected by the client) must still end up solved and
// placed into the comment partition's document, via solveRequiresOf being
// invoked directly from Solve's main loop for Derived nodes.
func TestSolveDerivedFieldSkipsResolverButSolvesSiblingSource(t *testing.T) {
	idx, err := schemaindex.BuildFromSDL("test", deriveTestSDL)
	require.NoError(t, err)
	op, err := boundop.Bind(idx, `{ comment { body author { id name } } }`, "", nil)
	require.NoError(t, err)
	g, err := opgraph.Build(idx, op)
	require.NoError(t, err)
	sol, err := Solve(idx, g)
	require.NoError(t, err)

	author := findField(g, "author")
	require.True(t, author.Valid())
	_, ok := sol.ResolverOf[author]
	require.False(t, ok, "a derived field must never be assigned a resolver")

	var authorID opgraph.NodeID
	for _, e := range g.OutEdges(author) {
		if e.Kind == opgraph.Requires {
			authorID = e.To
		}
	}
	require.True(t, authorID.Valid())
	_, ok = sol.ResolverOf[authorID]
	require.True(t, ok, "the forced sibling source field must be solved even though the client never selected it")

	// Only one partition: the client only selected COMMENTS-graph fields, and
	// authorId is served by the same COMMENTS root resolver that produced
	// comment/body, so the derive key never forces a second subgraph hop.
	// authorId must be assigned into that partition's field list.
	require.Len(t, sol.Partitions, 1)
	require.Contains(t, sol.Partitions[0].Fields, authorID)
}

func TestRequirementCycleDetected(t *testing.T) {
	sdl := `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION

enum join__Graph {
	A @join__graph(name: "a", url: "http://a.internal")
	B @join__graph(name: "b", url: "http://b.internal")
}

type Query {
	node: Widget @join__field(graph: A)
}

type Widget @join__type(graph: A, key: "id") @join__type(graph: B, key: "id") {
	id: ID! @join__field(graph: A) @join__field(graph: B)
	x: Int @join__field(graph: A, requires: "y")
	y: Int @join__field(graph: B, requires: "x")
}
`
	idx, err := schemaindex.BuildFromSDL("test", sdl)
	require.NoError(t, err)
	op, err := boundop.Bind(idx, `{ node { x y } }`, "", nil)
	require.NoError(t, err)
	g, err := opgraph.Build(idx, op)
	require.NoError(t, err)

	_, err = Solve(idx, g)
	require.Error(t, err)
	var cycleErr *RequirementCycleDetected
	require.ErrorAs(t, err, &cycleErr)
	require.NotEmpty(t, cycleErr.Path)
}

package schemaindex

import (
	"testing"

	"github.com/stretchr/testify/require"
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
	id: ID!
	name: String @join__field(graph: ACCOUNTS)
	reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
	id: ID!
	body: String @join__field(graph: REVIEWS)
	author: User @join__field(graph: REVIEWS, provides: "name")
}
`

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := BuildFromSDL("test", testSupergraphSDL)
	require.NoError(t, err)
	return idx
}

func TestBuildSubgraphs(t *testing.T) {
	idx := buildTestIndex(t)
	require.Equal(t, 2, idx.NumSubgraphs())

	accounts, ok := idx.SubgraphByName("accounts")
	require.True(t, ok)
	require.Equal(t, "http://accounts.internal", idx.Subgraph(accounts).URL)

	// The enum-value identifier must also resolve, since @join__field(graph: ACCOUNTS)
	// arguments are emitted as the enum literal, not the human name.
	byEnumValue, ok := idx.SubgraphByName("ACCOUNTS")
	require.True(t, ok)
	require.Equal(t, accounts, byEnumValue)
}

func TestBuildTypesAndFields(t *testing.T) {
	idx := buildTestIndex(t)

	userID, ok := idx.TypeByName("User")
	require.True(t, ok)
	user := idx.Type(userID)
	require.Equal(t, KindObject, user.Kind)

	nameID, ok := idx.FieldByName(userID, "name")
	require.True(t, ok)
	nameField := idx.Field(nameID)
	require.False(t, nameField.Type.IsNonNull())

	idField, ok := idx.FieldByName(userID, "id")
	require.True(t, ok)
	require.True(t, idx.Field(idField).Type.IsNonNull())

	reviewsID, ok := idx.FieldByName(userID, "reviews")
	require.True(t, ok)
	reviewsField := idx.Field(reviewsID)
	require.True(t, reviewsField.Type.IsNonNull())
	require.True(t, reviewsField.Type.IsList())
}

func TestJoinTypeKeys(t *testing.T) {
	idx := buildTestIndex(t)

	userID, _ := idx.TypeByName("User")
	user := idx.Type(userID)
	require.Len(t, user.Keys, 2)

	accounts, _ := idx.SubgraphByName("accounts")
	reviews, _ := idx.SubgraphByName("reviews")

	idField, _ := idx.FieldByName(userID, "id")

	for _, sg := range []SubgraphID{accounts, reviews} {
		keyID, ok := user.Keys[sg]
		require.True(t, ok)
		key := idx.FieldSet(keyID)
		require.Len(t, key.Items, 1)
		require.Equal(t, idField, key.Items[0].Field)
	}
}

func TestJoinFieldProvides(t *testing.T) {
	idx := buildTestIndex(t)

	reviewID, _ := idx.TypeByName("Review")
	authorField, ok := idx.FieldByName(reviewID, "author")
	require.True(t, ok)
	f := idx.Field(authorField)
	require.True(t, f.Provides.Valid())

	userID, _ := idx.TypeByName("User")
	nameField, _ := idx.FieldByName(userID, "name")

	provided := idx.FieldSet(f.Provides)
	require.Len(t, provided.Items, 1)
	require.Equal(t, nameField, provided.Items[0].Field)
}

func TestResolversForEntity(t *testing.T) {
	idx := buildTestIndex(t)

	userID, _ := idx.TypeByName("User")
	resolvers := idx.ResolversForEntity(userID)
	require.Len(t, resolvers, 2)

	kinds := make(map[ResolverKind]int)
	for _, rid := range resolvers {
		r := idx.Resolver(rid)
		require.Equal(t, userID, r.Entity)
		kinds[r.Kind]++
	}
	require.Equal(t, 2, kinds[ResolverGraphqlFederationEntity])

	queryResolvers := idx.ResolversForEntity(idx.QueryType)
	kinds = make(map[ResolverKind]int)
	for _, rid := range queryResolvers {
		kinds[idx.Resolver(rid).Kind]++
	}
	require.Equal(t, 1, kinds[ResolverGraphqlRootField])
	require.Equal(t, 1, kinds[ResolverIntrospection])
}

func TestFieldSetUnionAndContains(t *testing.T) {
	idx := buildTestIndex(t)
	userID, _ := idx.TypeByName("User")
	idField, _ := idx.FieldByName(userID, "id")
	nameField, _ := idx.FieldByName(userID, "name")

	b := &builder{idx: idx}
	a := b.newFieldSet([]FieldSetItem{{Field: idField}})
	c := b.newFieldSet([]FieldSetItem{{Field: nameField}})

	union := Union(idx, a, c)
	require.True(t, Contains(idx, union, a))
	require.True(t, Contains(idx, union, c))
	require.False(t, Contains(idx, a, c))
}

package schemaindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

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

func TestBuildDeriveKey(t *testing.T) {
	idx, err := BuildFromSDL("test", deriveTestSDL)
	require.NoError(t, err)

	commentID, ok := idx.TypeByName("Comment")
	require.True(t, ok)
	authorField, ok := idx.FieldByName(commentID, "author")
	require.True(t, ok)

	f := idx.Field(authorField)
	require.NotNil(t, f.Derive)

	userID, _ := idx.TypeByName("User")
	require.Equal(t, userID, f.Derive.Entity)
	require.Len(t, f.Derive.Fields, 1)

	authorIDField, _ := idx.FieldByName(commentID, "authorId")
	userIDField, _ := idx.FieldByName(userID, "id")
	require.Equal(t, userIDField, f.Derive.Fields[0].Target)
	require.Equal(t, authorIDField, f.Derive.Fields[0].Source)

	// A field without @derive carries no key at all.
	bodyField, _ := idx.FieldByName(commentID, "body")
	require.Nil(t, idx.Field(bodyField).Derive)
}

func TestParseDeriveKeyRejectsUnknownSiblingField(t *testing.T) {
	bad := `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION
directive @derive(key: String!) on FIELD_DEFINITION

enum join__Graph {
	COMMENTS @join__graph(name: "comments", url: "http://comments.internal")
}

type Query {
	comment: Comment @join__field(graph: COMMENTS)
}

type Comment @join__type(graph: COMMENTS, key: "id") {
	id: ID! @join__field(graph: COMMENTS)
	author: User @join__field(graph: COMMENTS) @derive(key: "id: missingSibling")
}

type User @join__type(graph: COMMENTS, key: "id") {
	id: ID! @join__field(graph: COMMENTS)
}
`
	_, err := BuildFromSDL("test", bad)
	require.Error(t, err)
}

package boundop

import (
	"testing"

	"github.com/stretchr/testify/require"

	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

const testSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION

enum join__Graph {
	ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.internal")
}

type Query {
	me: User @join__field(graph: ACCOUNTS)
	user(id: ID!, active: Boolean = true): User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") {
	id: ID!
	name: String @join__field(graph: ACCOUNTS)
	nickname: String @join__field(graph: ACCOUNTS)
}
`

func testIndex(t *testing.T) *schemaindex.Index {
	t.Helper()
	idx, err := schemaindex.BuildFromSDL("test", testSDL)
	require.NoError(t, err)
	return idx
}

func TestBindSimpleQuery(t *testing.T) {
	idx := testIndex(t)
	op, err := Bind(idx, `{ me { id name } }`, "", nil)
	require.NoError(t, err)
	require.Equal(t, idx.QueryType, op.Root)

	root := op.SelectionSet(op.RootSelection)
	require.Len(t, root.Items, 1)
	meItem := root.Items[0]
	require.Equal(t, SelField, meItem.Kind)

	meField := op.Field(meItem.Field)
	require.Equal(t, "me", meField.ResponseKey)
	require.True(t, meField.Selection.Valid())

	sub := op.SelectionSet(meField.Selection)
	require.Len(t, sub.Items, 2)
	idField := op.Field(sub.Items[0].Field)
	require.Equal(t, "id", idField.ResponseKey)
}

func TestBindAliasAndVariables(t *testing.T) {
	idx := testIndex(t)
	src := `query Lookup($uid: ID!) { person: user(id: $uid) { id } }`
	op, err := Bind(idx, src, "Lookup", map[string]any{"uid": "42"})
	require.NoError(t, err)

	v, ok := op.Variables["uid"]
	require.True(t, ok)
	require.True(t, v.Provided.Valid())
	require.Equal(t, ValueString, op.Value(v.Provided).Kind)
	require.Equal(t, "42", op.Value(v.Provided).String)

	root := op.SelectionSet(op.RootSelection)
	require.Len(t, root.Items, 1)
	f := op.Field(root.Items[0].Field)
	require.Equal(t, "person", f.ResponseKey)

	idArg, ok := f.Arguments["id"]
	require.True(t, ok)
	require.Equal(t, "42", op.Value(idArg).String)
}

func TestBindArgumentDefault(t *testing.T) {
	idx := testIndex(t)
	op, err := Bind(idx, `{ user(id: "1") { id } }`, "", nil)
	require.NoError(t, err)

	root := op.SelectionSet(op.RootSelection)
	f := op.Field(root.Items[0].Field)

	activeArg, ok := f.Arguments["active"]
	require.True(t, ok)
	require.Equal(t, ValueBool, op.Value(activeArg).Kind)
	require.True(t, op.Value(activeArg).Bool)
}

func TestBindSkipDirective(t *testing.T) {
	idx := testIndex(t)
	op, err := Bind(idx, `{ me { id name @skip(if: true) nickname @include(if: false) } }`, "", nil)
	require.NoError(t, err)

	root := op.SelectionSet(op.RootSelection)
	meField := op.Field(root.Items[0].Field)
	sub := op.SelectionSet(meField.Selection)
	require.Len(t, sub.Items, 1)
	require.Equal(t, "id", op.Field(sub.Items[0].Field).ResponseKey)
}

func TestBindFragmentSpreadDeduplicated(t *testing.T) {
	idx := testIndex(t)
	src := `
	{
		me { ...UserFields }
		user(id: "1") { ...UserFields }
	}
	fragment UserFields on User { id name }
	`
	op, err := Bind(idx, src, "", nil)
	require.NoError(t, err)

	root := op.SelectionSet(op.RootSelection)
	require.Len(t, root.Items, 2)

	meField := op.Field(root.Items[0].Field)
	userField := op.Field(root.Items[1].Field)

	meSel := op.SelectionSet(meField.Selection)
	userSel := op.SelectionSet(userField.Selection)
	require.Len(t, meSel.Items, 1)
	require.Len(t, userSel.Items, 1)
	require.Equal(t, meSel.Items[0].Fragment, userSel.Items[0].Fragment)
}

func TestBindUnknownFieldFails(t *testing.T) {
	idx := testIndex(t)
	_, err := Bind(idx, `{ me { doesNotExist } }`, "", nil)
	require.Error(t, err)
}

func TestBindMissingRequiredVariableFails(t *testing.T) {
	idx := testIndex(t)
	_, err := Bind(idx, `query Lookup($uid: ID!) { user(id: $uid) { id } }`, "Lookup", nil)
	require.Error(t, err)
}

package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	boundop "github.com/fedgraph/gateway/internal/boundop"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	planner "github.com/fedgraph/gateway/internal/planner"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
	httptp "github.com/fedgraph/gateway/internal/transport/httptp"
)

const execTestSDL = `
directive @join__graph(name: String!, url: String!) on ENUM_VALUE
directive @join__type(graph: join__Graph!, key: String, isInterfaceObject: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: join__Graph, requires: String, provides: String, external: Boolean, override: String, overrideLabel: String) on FIELD_DEFINITION
directive @derive(key: String!) on FIELD_DEFINITION

enum join__Graph {
	ACCOUNTS @join__graph(name: "accounts", url: "http://accounts.internal")
	REVIEWS @join__graph(name: "reviews", url: "http://reviews.internal")
}

type Query {
	me: User @join__field(graph: ACCOUNTS)
}

type Mutation {
	addReview(body: String!): Review @join__field(graph: REVIEWS)
	renameMe(name: String!): User @join__field(graph: ACCOUNTS)
}

type Subscription {
	userUpdated: User @join__field(graph: ACCOUNTS)
}

type User @join__type(graph: ACCOUNTS, key: "id") @join__type(graph: REVIEWS, key: "id") {
	id: ID! @join__field(graph: ACCOUNTS) @join__field(graph: REVIEWS)
	name: String @join__field(graph: ACCOUNTS)
	email: String! @join__field(graph: ACCOUNTS)
	reviews: [Review!]! @join__field(graph: REVIEWS)
}

type Review @join__type(graph: REVIEWS, key: "id") {
	id: ID! @join__field(graph: REVIEWS)
	body: String @join__field(graph: REVIEWS)
	reviewerId: ID! @join__field(graph: REVIEWS)
	reviewer: User @join__field(graph: REVIEWS) @derive(key: "id: reviewerId")
}
`

func buildPlan(t *testing.T, query string) (*schemaindex.Index, *planner.Plan) {
	t.Helper()
	idx, err := schemaindex.BuildFromSDL("test", execTestSDL)
	require.NoError(t, err)
	op, err := boundop.Bind(idx, query, "", nil)
	require.NoError(t, err)
	g, err := opgraph.Build(idx, op)
	require.NoError(t, err)
	solved, err := solver.Solve(idx, g)
	require.NoError(t, err)
	p, err := planner.Finalize(idx, op, g, solved)
	require.NoError(t, err)
	return idx, p
}

// fakeTransport stands in for the real httptp.Transport in these tests: it
// answers by subgraph name and records every call it saw, in arrival order.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]*httptp.Response
	errs      map[string]error
	calls     []httptp.Request
}

func (f *fakeTransport) Do(ctx context.Context, req httptp.Request) (*httptp.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err, ok := f.errs[req.Subgraph]; ok {
		return nil, err
	}
	return f.responses[req.Subgraph], nil
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestExecuteSingleRootDocument(t *testing.T) {
	_, p := buildPlan(t, `{ me { name } }`)
	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"me": map[string]any{"name": "Ada"}})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})

	require.Empty(t, res.Errors)
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	me, ok := data["me"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Ada", me["name"])
}

func TestExecuteEntityDocumentMergesAcrossSubgraphs(t *testing.T) {
	idx, p := buildPlan(t, `{ me { reviews { body } } }`)

	userType, ok := idx.TypeByName("User")
	require.True(t, ok)
	idField, ok := idx.FieldByName(userType, "id")
	require.True(t, ok)
	alias := planner.ExtraAlias(idField)

	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"me": map[string]any{alias: "1"}})},
		"reviews": {Data: rawJSON(t, map[string]any{
			"_entities": []any{
				map[string]any{"reviews": []any{map[string]any{"body": "great"}}},
			},
		})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]any)
	me := data["me"].(map[string]any)
	reviews, ok := me["reviews"].([]any)
	require.True(t, ok)
	require.Len(t, reviews, 1)
	require.Equal(t, "great", reviews[0].(map[string]any)["body"])

	var sawRepresentations bool
	for _, call := range ft.calls {
		if call.Subgraph != "reviews" {
			continue
		}
		reps, ok := call.Variables["representations"].([]map[string]any)
		require.True(t, ok)
		require.Len(t, reps, 1)
		require.Equal(t, "User", reps[0]["__typename"])
		require.Equal(t, "1", reps[0]["id"])
		sawRepresentations = true
	}
	require.True(t, sawRepresentations, "the entities call must have been made")
}

// scenario B (§8): a subgraph call failing outright nullifies only the
// document's own keys, leaving the response's other fields and the
// operation as a whole intact.
func TestExecuteSubgraphFailureNullifiesOwnKeysOnly(t *testing.T) {
	_, p := buildPlan(t, `{ me { name } }`)
	ft := &fakeTransport{errs: map[string]error{"accounts": fmt.Errorf("connection refused")}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})

	require.NotEmpty(t, res.Errors)
	require.Equal(t, "SUBGRAPH_ERROR", res.Errors[0].Extensions["code"], "a fetch/transport failure must be reported as SUBGRAPH_ERROR, not INVALID_SUBGRAPH_RESPONSE")
	data := res.Data.(map[string]any)
	require.Nil(t, data["me"], "`me: User` is nullable, so its own slot absorbs the failure")
}

// §4.5: mutation root fields dispatch strictly in declaration order, one at
// a time, even though they are served by different subgraphs.
func TestExecuteMutationRootFieldsRunInOrder(t *testing.T) {
	_, p := buildPlan(t, `mutation { addReview(body: "hi") { id } renameMe(name: "Bo") { id } }`)
	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"reviews":  {Data: rawJSON(t, map[string]any{"addReview": map[string]any{"id": "r1"}})},
		"accounts": {Data: rawJSON(t, map[string]any{"renameMe": map[string]any{"id": "u1"}})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})

	require.Empty(t, res.Errors)
	require.Len(t, ft.calls, 2)
	require.Equal(t, "reviews", ft.calls[0].Subgraph)
	require.Equal(t, "accounts", ft.calls[1].Subgraph)

	data := res.Data.(map[string]any)
	require.Equal(t, "r1", data["addReview"].(map[string]any)["id"])
	require.Equal(t, "u1", data["renameMe"].(map[string]any)["id"])
}

// fakeStreamTransport adds a canned DoStream on top of fakeTransport's
// plain Do, so a subscription root document can be dialed as a stream
// while its downstream entity continuation still goes through Do like any
// other query would.
type fakeStreamTransport struct {
	fakeTransport
	items []httptp.StreamItem
}

func (f *fakeStreamTransport) DoStream(ctx context.Context, req httptp.Request) (<-chan httptp.StreamItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	ch := make(chan httptp.StreamItem, len(f.items))
	for _, it := range f.items {
		ch <- it
	}
	close(ch)
	return ch, nil
}

// §4.5 / §8 property 8: each item a subscription's root subgraph emits is
// pushed through the rest of the plan DAG as if it were a fresh root
// result, producing one outbound ExecutionResult per item rather than one
// overall.
func TestExecuteSubscriptionReDrivesPlanPerItem(t *testing.T) {
	idx, p := buildPlan(t, `subscription { userUpdated { name reviews { body } } }`)

	userType, ok := idx.TypeByName("User")
	require.True(t, ok)
	idField, ok := idx.FieldByName(userType, "id")
	require.True(t, ok)
	alias := planner.ExtraAlias(idField)

	ft := &fakeStreamTransport{
		fakeTransport: fakeTransport{responses: map[string]*httptp.Response{
			"reviews": {Data: rawJSON(t, map[string]any{
				"_entities": []any{
					map[string]any{"reviews": []any{map[string]any{"body": "great"}}},
				},
			})},
		}},
		items: []httptp.StreamItem{
			{Response: &httptp.Response{Data: rawJSON(t, map[string]any{
				"userUpdated": map[string]any{"name": "Ada", alias: "1"},
			})}},
			{Response: &httptp.Response{Data: rawJSON(t, map[string]any{
				"userUpdated": map[string]any{"name": "Grace", alias: "2"},
			})}},
		},
	}

	e := &Executor{Transport: ft}
	out := e.ExecuteSubscription(context.Background(), p, http.Header{})

	var results []*ExecutionResult
	for r := range out {
		results = append(results, r)
	}
	require.Len(t, results, 2, "one outbound event per subgraph-emitted item")

	names := make([]string, len(results))
	for i, r := range results {
		require.Empty(t, r.Errors)
		data := r.Data.(map[string]any)
		user := data["userUpdated"].(map[string]any)
		names[i] = user["name"].(string)
		reviews, ok := user["reviews"].([]any)
		require.True(t, ok, "each item's own entity continuation must run, not just the first")
		require.Len(t, reviews, 1)
		require.Equal(t, "great", reviews[0].(map[string]any)["body"])
	}
	require.Equal(t, []string{"Ada", "Grace"}, names)

	var entityCalls int
	for _, call := range ft.calls {
		if call.Subgraph == "reviews" {
			entityCalls++
		}
	}
	require.Equal(t, 2, entityCalls, "the entity continuation re-dispatches once per item, against that item's own fresh store")
}

// a Transport that cannot stream falls back to one item rather than
// erroring, so a subscription still answers over a transport built only
// against the single-request/response Transport interface.
func TestExecuteSubscriptionFallsBackWithoutStreamTransport(t *testing.T) {
	_, p := buildPlan(t, `subscription { userUpdated { name } }`)
	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"userUpdated": map[string]any{"name": "Ada"}})},
	}}

	e := &Executor{Transport: ft}
	out := e.ExecuteSubscription(context.Background(), p, http.Header{})

	var results []*ExecutionResult
	for r := range out {
		results = append(results, r)
	}
	require.Len(t, results, 1)
	data := results[0].Data.(map[string]any)
	require.Equal(t, "Ada", data["userUpdated"].(map[string]any)["name"])
}

// §9: a @derive field is materialized from a sibling value already on the
// parent object, never dispatched to a subgraph itself — including when the
// client never separately selected the sibling field, which only reaches the
// response at all because bindField force-includes it as a synthetic extra,
// exactly like an ordinary @requires field.
func TestExecuteDeriveFieldMaterializesFromSiblingWithoutSubgraphCall(t *testing.T) {
	idx, p := buildPlan(t, `{ me { reviews { body reviewer { id __typename } } } }`)

	userType, ok := idx.TypeByName("User")
	require.True(t, ok)
	idField, ok := idx.FieldByName(userType, "id")
	require.True(t, ok)
	userIDAlias := planner.ExtraAlias(idField)

	reviewType, ok := idx.TypeByName("Review")
	require.True(t, ok)
	reviewerIDField, ok := idx.FieldByName(reviewType, "reviewerId")
	require.True(t, ok)
	reviewerIDAlias := planner.ExtraAlias(reviewerIDField)

	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"me": map[string]any{userIDAlias: "1"}})},
		"reviews": {Data: rawJSON(t, map[string]any{
			"_entities": []any{
				map[string]any{"reviews": []any{map[string]any{
					"body":          "great",
					reviewerIDAlias: "rv1",
				}}},
			},
		})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]any)
	me := data["me"].(map[string]any)
	reviews := me["reviews"].([]any)
	require.Len(t, reviews, 1)
	review := reviews[0].(map[string]any)
	require.Equal(t, "great", review["body"])

	reviewer, ok := review["reviewer"].(map[string]any)
	require.True(t, ok, "a @derive field must still be present in the response")
	require.Equal(t, "rv1", reviewer["id"])
	require.Equal(t, "User", reviewer["__typename"])

	require.Len(t, ft.calls, 2, "the derived reviewer must never trigger its own subgraph call")
}

// A @derive field not part of the client's own key sub-selection is nulled
// rather than silently resolved, since actually answering it would need a
// further subgraph round trip this response modifier never makes.
func TestExecuteDeriveNonKeyFieldIsNulled(t *testing.T) {
	idx, p := buildPlan(t, `{ me { reviews { reviewer { id name } } } }`)

	userType, ok := idx.TypeByName("User")
	require.True(t, ok)
	idField, ok := idx.FieldByName(userType, "id")
	require.True(t, ok)
	userIDAlias := planner.ExtraAlias(idField)

	reviewType, ok := idx.TypeByName("Review")
	require.True(t, ok)
	reviewerIDField, ok := idx.FieldByName(reviewType, "reviewerId")
	require.True(t, ok)
	reviewerIDAlias := planner.ExtraAlias(reviewerIDField)

	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"me": map[string]any{userIDAlias: "1"}})},
		"reviews": {Data: rawJSON(t, map[string]any{
			"_entities": []any{
				map[string]any{"reviews": []any{map[string]any{
					reviewerIDAlias: "rv1",
				}}},
			},
		})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})

	data := res.Data.(map[string]any)
	me := data["me"].(map[string]any)
	reviews := me["reviews"].([]any)
	reviewer := reviews[0].(map[string]any)["reviewer"].(map[string]any)
	require.Equal(t, "rv1", reviewer["id"])
	require.Nil(t, reviewer["name"], "`name` is not part of the derive key, so it is nulled rather than fetched")
}

// Requesting a non-null field this response modifier cannot supply nulls the
// whole derived object (ordinary §4.6 propagation to the nearest nullable
// ancestor, since `reviewer: User` itself is nullable) and records a
// DERIVE_FIELD_UNAVAILABLE error.
func TestExecuteDeriveUnavailableNonNullFieldNullsWholeObject(t *testing.T) {
	idx, p := buildPlan(t, `{ me { reviews { reviewer { id email } } } }`)

	userType, ok := idx.TypeByName("User")
	require.True(t, ok)
	idField, ok := idx.FieldByName(userType, "id")
	require.True(t, ok)
	userIDAlias := planner.ExtraAlias(idField)

	reviewType, ok := idx.TypeByName("Review")
	require.True(t, ok)
	reviewerIDField, ok := idx.FieldByName(reviewType, "reviewerId")
	require.True(t, ok)
	reviewerIDAlias := planner.ExtraAlias(reviewerIDField)

	ft := &fakeTransport{responses: map[string]*httptp.Response{
		"accounts": {Data: rawJSON(t, map[string]any{"me": map[string]any{userIDAlias: "1"}})},
		"reviews": {Data: rawJSON(t, map[string]any{
			"_entities": []any{
				map[string]any{"reviews": []any{map[string]any{
					reviewerIDAlias: "rv1",
				}}},
			},
		})},
	}}

	e := &Executor{Transport: ft}
	res := e.Execute(context.Background(), p, http.Header{})

	data := res.Data.(map[string]any)
	me := data["me"].(map[string]any)
	reviews := me["reviews"].([]any)
	require.Nil(t, reviews[0].(map[string]any)["reviewer"])

	var sawCode bool
	for _, errRec := range res.Errors {
		if errRec.Extensions["code"] == "DERIVE_FIELD_UNAVAILABLE" {
			sawCode = true
		}
	}
	require.True(t, sawCode)
}

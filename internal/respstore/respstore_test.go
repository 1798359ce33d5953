package respstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndMaterializeSimpleObject(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object

	me := s.NewObjectValue(s.root, KeyElem("me"), false)
	s.SetField(rootObj, "me", me)

	meObj := s.values[me].Object
	username := s.addValue(Value{Parent: me, ParentKey: KeyElem("username"), NonNull: false})
	s.SetString(username, "x")
	s.SetField(meObj, "username", username)

	reviewCount := s.addValue(Value{Parent: me, ParentKey: KeyElem("reviewCount"), NonNull: false})
	s.SetInt(reviewCount, 3)
	s.SetField(meObj, "reviewCount", reviewCount)

	out := s.Materialize().(map[string]any)
	meOut := out["me"].(map[string]any)
	require.Equal(t, "x", meOut["username"])
	require.Equal(t, int64(3), meOut["reviewCount"])
	require.False(t, s.RootNulled())
	require.Empty(t, s.Errors())
}

// scenario B (§8): subgraph error on a nullable field propagates to that
// field's own null, recording one error at its path.
func TestNullifyNullableFieldStopsLocally(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object
	me := s.NewObjectValue(s.root, KeyElem("me"), false)
	s.SetField(rootObj, "me", me)
	meObj := s.values[me].Object

	username := s.addValue(Value{Parent: me, ParentKey: KeyElem("username"), NonNull: false})
	s.SetString(username, "x")
	s.SetField(meObj, "username", username)

	reviewCount := s.addValue(Value{Parent: me, ParentKey: KeyElem("reviewCount"), NonNull: false})
	s.SetField(meObj, "reviewCount", reviewCount)
	s.Nullify(reviewCount, "subgraph call failed", map[string]any{"code": "SUBGRAPH_ERROR"})

	out := s.Materialize().(map[string]any)
	meOut := out["me"].(map[string]any)
	require.Equal(t, "x", meOut["username"])
	require.Nil(t, meOut["reviewCount"])
	require.False(t, s.RootNulled())

	errs := s.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, []PathElement{KeyElem("me"), KeyElem("reviewCount")}, errs[0].Path)
}

// scenario C (§8): a non-null field violation propagates up to the nearest
// nullable ancestor ("me"), nulling it, with exactly one error recorded.
func TestNullifyPropagatesToNullableAncestor(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object
	me := s.NewObjectValue(s.root, KeyElem("me"), false) // `me: User` is nullable
	s.SetField(rootObj, "me", me)
	meObj := s.values[me].Object

	username := s.addValue(Value{Parent: me, ParentKey: KeyElem("username"), NonNull: false})
	s.SetString(username, "x")
	s.SetField(meObj, "username", username)

	// `reviewCount: Int!` — non-null.
	reviewCount := s.addValue(Value{Parent: me, ParentKey: KeyElem("reviewCount"), NonNull: true})
	s.SetField(meObj, "reviewCount", reviewCount)
	s.Nullify(reviewCount, "cannot return null for non-nullable field", nil)

	out := s.Materialize()
	data := out.(map[string]any)
	require.Nil(t, data["me"])
	require.False(t, s.RootNulled())

	errs := s.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, []PathElement{KeyElem("me"), KeyElem("reviewCount")}, errs[0].Path)
}

func TestNullifyReachingRootNullsEntireData(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object
	me := s.NewObjectValue(s.root, KeyElem("me"), true) // `me: User!` — non-null.
	s.SetField(rootObj, "me", me)

	s.Nullify(me, "boom", nil)

	require.True(t, s.RootNulled())
	require.Nil(t, s.Materialize())
	require.Len(t, s.Errors(), 1)
}

func TestNullifyIsIdempotentAcrossSiblings(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object
	me := s.NewObjectValue(s.root, KeyElem("me"), false)
	s.SetField(rootObj, "me", me)
	meObj := s.values[me].Object

	a := s.addValue(Value{Parent: me, ParentKey: KeyElem("a"), NonNull: true})
	b := s.addValue(Value{Parent: me, ParentKey: KeyElem("b"), NonNull: true})
	s.SetField(meObj, "a", a)
	s.SetField(meObj, "b", b)

	s.Nullify(a, "first violation", nil)
	require.True(t, s.IsNulled(me))

	// b's own violation would also cascade into the already-nulled `me`
	// object; Nullify must not record a second error for a dead subtree.
	s.Nullify(b, "second violation", nil)
	require.Len(t, s.Errors(), 1)
}

func TestListElementNullPropagatesToWholeList(t *testing.T) {
	s := New()
	rootObj := s.values[s.root].Object
	reviews := s.NewListValue(s.root, KeyElem("reviews"), false) // `reviews: [Review!]`
	s.SetField(rootObj, "reviews", reviews)

	item0 := s.NewListItem(reviews, 0, true)
	s.SetString(item0, "ok")
	item1 := s.NewListItem(reviews, 1, true)
	s.Nullify(item1, "missing review", nil)

	out := s.Materialize().(map[string]any)
	require.Nil(t, out["reviews"])

	errs := s.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, []PathElement{KeyElem("reviews"), IndexElem(1)}, errs[0].Path)
}

package respstore

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// ValueKind is the variant tag for a response value (§3.6).
type ValueKind uint8

const (
	// KindUnset is the zero value: a slot that has been allocated (so a
	// child/parent link can point at it) but not yet written. Distinct from
	// KindNull so IsNulled only reports slots explicitly nulled, either
	// directly or by propagation — never a slot merely awaiting its write.
	KindUnset ValueKind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindEnum
	KindList
	KindObject
	KindInaccessible
	KindError
)

// Value is one addressable slot of the response tree. Every slot, whether a
// scalar, a list, or an object, carries the bookkeeping null-propagation
// needs: the parent slot it sits inside of, the response key or list index
// it occupies there, and whether that slot's declared type is non-null.
// The root slot (the "data" value as a whole) has Parent == 0.
type Value struct {
	Kind ValueKind

	Bool   bool
	Int    int64
	Float  float64
	String string // also holds KindEnum's symbol
	List   []ValueID
	Object ObjectID
	Error  ErrorID

	Parent   ValueID
	ParentKey PathElement
	NonNull  bool
}

// Object is a response object: an ordered, deduplicated map from response
// key to the value written there (§3.6 invariant: each key is written
// exactly once).
type Object struct {
	keys   []string
	values map[string]ValueID
}

// Keys returns the object's fields in insertion order.
func (o *Object) Keys() []string { return o.keys }

// Value returns the value id written at key, or (0, false) if absent.
func (o *Object) Value(key string) (ValueID, bool) {
	id, ok := o.values[key]
	return id, ok
}

// PathElement is one segment of a response path: either a response key or a
// list index. It marshals to a bare JSON string or number, matching the
// GraphQL-over-HTTP error path shape.
type PathElement struct {
	Key     string
	Index   int
	IsIndex bool
}

func (e PathElement) MarshalJSON() ([]byte, error) {
	if e.IsIndex {
		return []byte(strconv.Itoa(e.Index)), nil
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(e.Key)
}

func keyElem(key string) PathElement  { return PathElement{Key: key} }
func indexElem(i int) PathElement     { return PathElement{Index: i, IsIndex: true} }

// Error is a GraphQL response error (§3.6), shaped per the GraphQL-over-HTTP
// response spec for direct marshaling by the server's encoding/json encoder.
type Error struct {
	Message    string         `json:"message"`
	Path       []PathElement  `json:"path,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

package respstore

// Store is the mutable, arena-backed response tree for one in-flight
// operation (§3.6). It is written by the shape-directed deserializer as
// subgraph responses and local computations arrive, and read by downstream
// partitions/response modifiers via ObjectRef/Value lookups. Per §4.6,
// single-threaded mutation is the simplest safe discipline: callers that
// parallelize hold their own scratch state and commit into the Store only
// after a partition's parent writes are visible, a sequencing the executor's
// schedule (parent-counter DAG) already enforces.
type Store struct {
	objects []Object
	values  []Value
	errors  []Error

	root       ValueID
	rootNulled bool
}

// New creates an empty Store with its root response value allocated.
func New() *Store {
	s := &Store{
		objects: make([]Object, 1),
		values:  make([]Value, 1),
		errors:  make([]Error, 0),
	}
	s.root = s.addValue(Value{Kind: KindObject})
	s.values[s.root].Object = s.newObject()
	return s
}

// Root returns the id of the top-level "data" value.
func (s *Store) Root() ValueID { return s.root }

// RootNulled reports whether null propagation reached the root: the entire
// "data" response must be emitted as null (§4.6 step 3).
func (s *Store) RootNulled() bool { return s.rootNulled }

func (s *Store) addValue(v Value) ValueID {
	id := ValueID(len(s.values))
	s.values = append(s.values, v)
	return id
}

func (s *Store) newObject() ObjectID {
	id := ObjectID(len(s.objects))
	s.objects = append(s.objects, Object{values: make(map[string]ValueID)})
	return id
}

// Value returns the record for id. Callers must not mutate the returned
// pointer's Parent/ParentKey/NonNull fields; those are Store-owned.
func (s *Store) Value(id ValueID) *Value { return &s.values[id] }

// Object returns the record for id.
func (s *Store) Object(id ObjectID) *Object { return &s.objects[id] }

// NewObjectValue allocates a fresh, empty object and the value slot that
// holds it at (parent, key), non-null as declared by the field's type.
func (s *Store) NewObjectValue(parent ValueID, key PathElement, nonNull bool) ValueID {
	id := s.addValue(Value{Kind: KindObject, Parent: parent, ParentKey: key, NonNull: nonNull})
	s.values[id].Object = s.newObject()
	return id
}

// NewListValue allocates a value slot of kind List at (parent, key); items
// are attached afterward with NewListItem so their own Parent is this slot.
func (s *Store) NewListValue(parent ValueID, key PathElement, nonNull bool) ValueID {
	return s.addValue(Value{Kind: KindList, Parent: parent, ParentKey: key, NonNull: nonNull})
}

// NewListItem allocates a value slot that is element index i of list.
func (s *Store) NewListItem(list ValueID, i int, nonNull bool) ValueID {
	id := s.addValue(Value{Parent: list, ParentKey: indexElem(i), NonNull: nonNull})
	s.values[list].List = append(s.values[list].List, id)
	return id
}

// NewValue allocates a bare (KindUnset) value slot at (parent, key), for a
// scalar/enum field the caller is about to fill in with one of the Set*
// methods. Mirrors NewObjectValue/NewListValue for the leaf case, which
// needs no further initialization of its own.
func (s *Store) NewValue(parent ValueID, key PathElement, nonNull bool) ValueID {
	return s.addValue(Value{Parent: parent, ParentKey: key, NonNull: nonNull})
}

// MakeObject promotes an already-allocated bare slot (typically a list item
// from NewListItem, whose Kind is unknown until the JSON payload naming its
// concrete type is inspected) into an object value in place, preserving its
// Parent/ParentKey/NonNull. Calling it twice on the same id would leak the
// first object; the deserializer calls it at most once per slot, immediately
// after deciding the slot holds an object.
func (s *Store) MakeObject(id ValueID) ObjectID {
	obj := s.newObject()
	s.setKeepMeta(id, Value{Kind: KindObject, Object: obj})
	return obj
}

// MakeList promotes an already-allocated bare slot into a list value in
// place; items are then attached with NewListItem as usual. See MakeObject.
func (s *Store) MakeList(id ValueID) {
	s.setKeepMeta(id, Value{Kind: KindList})
}

// SetField writes child into object at key (§3.6 invariant: written exactly
// once per (object id, field key)). Writing the same key twice is a
// programming error in the caller (the shape tree never revisits a field);
// it overwrites rather than panicking so a defensive caller degrades safely.
func (s *Store) SetField(obj ObjectID, key string, child ValueID) {
	o := &s.objects[obj]
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = child
}

// KeyElem and IndexElem build PathElements for callers outside the package
// (the executor, constructing child slots while walking the shape tree).
func KeyElem(key string) PathElement { return keyElem(key) }
func IndexElem(i int) PathElement    { return indexElem(i) }

// The Set* methods below write a leaf value (already serialized to one of Value's
// scalar payload fields by the caller) into an existing slot id.
func (s *Store) SetBool(id ValueID, v bool) { s.setKeepMeta(id, Value{Kind: KindBool, Bool: v}) }
func (s *Store) SetInt(id ValueID, v int64) { s.setKeepMeta(id, Value{Kind: KindInt, Int: v}) }
func (s *Store) SetFloat(id ValueID, v float64) {
	s.setKeepMeta(id, Value{Kind: KindFloat, Float: v})
}
func (s *Store) SetString(id ValueID, v string) {
	s.setKeepMeta(id, Value{Kind: KindString, String: v})
}
func (s *Store) SetEnum(id ValueID, v string) { s.setKeepMeta(id, Value{Kind: KindEnum, String: v}) }
func (s *Store) SetNull(id ValueID)           { s.setKeepMeta(id, Value{Kind: KindNull}) }
func (s *Store) SetInaccessible(id ValueID)   { s.setKeepMeta(id, Value{Kind: KindInaccessible}) }

func (s *Store) setKeepMeta(id ValueID, v Value) {
	old := s.values[id]
	v.Parent, v.ParentKey, v.NonNull = old.Parent, old.ParentKey, old.NonNull
	s.values[id] = v
}

// Errors returns every error recorded so far, in recording order.
func (s *Store) Errors() []Error { return s.errors }

// IsNulled reports whether id's slot is currently Null — used by callers
// (the executor, the subgraph deserializer) to short-circuit writing into a
// subtree that null propagation has already discarded, mirroring the
// teacher's nullified-prefix check in executor.go but keyed by slot id
// instead of a formatted path string.
func (s *Store) IsNulled(id ValueID) bool {
	return s.values[id].Kind == KindNull
}

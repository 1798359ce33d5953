package respstore

import schemaindex "github.com/fedgraph/gateway/internal/schemaindex"

// ObjectRef is a stable handle a response modifier or child partition uses
// to address an already-written response object (§3.6): the object itself,
// the concrete type it was resolved as (for polymorphic parents), and the
// response path prefix leading to it (for building child/error paths
// without re-walking Parent links from scratch).
type ObjectRef struct {
	Object        ObjectID
	Value         ValueID
	TypeCondition schemaindex.TypeID
	PathPrefix    []PathElement
}

// RefAt builds an ObjectRef for an object value already written at id.
func (s *Store) RefAt(id ValueID, typeCondition schemaindex.TypeID) ObjectRef {
	return ObjectRef{
		Object:        s.values[id].Object,
		Value:         id,
		TypeCondition: typeCondition,
		PathPrefix:    s.PathOf(id),
	}
}

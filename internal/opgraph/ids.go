// Package opgraph builds the bipartite operation graph (§3.3, §4.2): field
// nodes for every field occurrence in a bound operation, resolver nodes for
// every schema resolver that can provide them, and the Provides/Requires/
// KeyField/TypenameMarker edges between them. The solver consumes this graph
// to choose one resolver per field node.
package opgraph

// NodeID addresses a node in a Graph's node arena. 0 is never a valid id.
type NodeID uint32

const noID = 0

func (id NodeID) Valid() bool { return id != noID }

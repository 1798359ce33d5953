package solver

import (
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// Partition is one Query Partition (§3.4): every field node solved to the
// same resolver node, contracted into a single group that will become one
// subgraph call.
type Partition struct {
	Entity       schemaindex.TypeID
	Resolver     schemaindex.ResolverID
	ResolverNode opgraph.NodeID
	// Fields lists the field nodes assigned to this partition, in the
	// order their nodes were created (a stable proxy for query order,
	// since opgraph.Build appends nodes depth-first in traversal order).
	Fields []opgraph.NodeID
}

// Solved is the output of Solve: a resolver choice per field node,
// contracted into partitions connected by a dependency DAG (§3.4).
type Solved struct {
	Graph *opgraph.Graph

	// ResolverOf maps every field node in the client's own selection (and
	// every synthetic extra field node actually needed) to the resolver
	// node chosen to provide it.
	ResolverOf map[opgraph.NodeID]opgraph.NodeID

	Partitions []Partition
	// DependsOn maps a partition to the partitions it must wait on: a
	// value another partition's resolver needs as a @key or @requires
	// input that this solution resolved somewhere else.
	DependsOn map[PartitionID][]PartitionID

	Cost int
}

// Partition returns the partition record for id (1-indexed; 0 is invalid).
func (s *Solved) Partition(id PartitionID) *Partition { return &s.Partitions[id-1] }

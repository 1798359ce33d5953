// Package planner implements the Plan Finalizer (§4.4): it turns a Solved
// operation graph into an execution plan — a response shape tree describing
// how subgraph JSON merges into the response, one subgraph document and
// response view per partition, and an executable DAG of plan-resolver and
// response-modifier nodes with parent counts the executor can schedule.
package planner

// ShapeID addresses a FieldShape in Plan.shapes. 0 is the reserved sentinel.
type ShapeID uint32

const noShapeID = 0

func (id ShapeID) Valid() bool { return id != noShapeID }

// NodeID addresses an executable node (plan resolver or response modifier)
// in Plan.Nodes. 0 is the reserved sentinel.
type NodeID uint32

const noNodeID = 0

func (id NodeID) Valid() bool { return id != noNodeID }

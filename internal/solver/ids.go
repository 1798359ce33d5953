// Package solver chooses one resolver per field node of an operation graph
// (§4.3), contracting the result into query partitions connected by a
// dependency DAG (§3.4).
package solver

// PartitionID addresses a Partition in a Solved's partition arena. 0 is
// never valid.
type PartitionID uint32

const noID = 0

func (id PartitionID) Valid() bool { return id != noID }

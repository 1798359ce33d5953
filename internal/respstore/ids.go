// Package respstore implements the Response Store (§3.6, §4.6): an
// arena-allocated tree of response values, written during execution by the
// shape-directed deserializer and read by child partitions/response
// modifiers, with GraphQL null-propagation built in.
package respstore

type ObjectID uint32
type ValueID uint32
type ErrorID uint32

const noID = 0

func (id ObjectID) Valid() bool { return id != noID }
func (id ValueID) Valid() bool  { return id != noID }
func (id ErrorID) Valid() bool  { return id != noID }

// Package boundop implements the Bound Operation (§3.2): the id-addressed
// field/selection-set/fragment/variable tree that the planner consumes.
// Parsing, variable coercion, and validation are explicitly out of core
// scope (§1 Non-goals); Bind is a thin adapter over gqlparser that produces
// one so the server and tests have something runnable to plan.
package boundop

// Ids are dense, zero-based indices into the arenas held by Operation. The
// zero value is reserved (never assigned), doubling as "absent" for
// optional fields — the same convention schemaindex uses.

type FieldID uint32
type SelectionSetID uint32
type FragmentID uint32
type ValueID uint32

const noID = 0

func (id FieldID) Valid() bool        { return id != noID }
func (id SelectionSetID) Valid() bool { return id != noID }
func (id FragmentID) Valid() bool     { return id != noID }
func (id ValueID) Valid() bool        { return id != noID }

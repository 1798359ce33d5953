// Package executor implements the Executor (§4.5): it drives a plan's DAG to
// completion, dispatching one subgraph call per resolver-step node,
// deserializing each response directly into a respstore.Store in lockstep
// with the plan's response shape tree, and propagating nulls/errors per
// respstore's own §4.6 algorithm.
//
// # Scheduling
//
// Every plan.PlanNode carries a parent count; a node becomes runnable the
// moment its count reaches zero. The scheduler is a recursive errgroup
// fan-out (executor.go): completing a node atomically decrements its
// children's counts and starts a fresh goroutine for each child that becomes
// runnable, mirroring the teacher's depth-by-depth
// flushAsyncTasks/completeAsyncField decrement-and-enqueue pair but keyed by
// DAG readiness instead of selection-set depth (the teacher's BFS executor
// this package replaces assumed a flat, depth-synchronized schedule that the
// federation plan's dependency DAG does not have).
//
// Mutation root fields run strictly in source order (§4.5); their own
// descendant continuations still parallelize freely once dispatched.
//
// # Dispatch
//
// dispatch.go adapts grpcrt/runtime.go's BatchResolveAsync grouping
// technique (build a request, run the hook chain, call the transport,
// decode) to one HTTP partition document at a time instead of one gRPC
// field-resolution group; header rules, the entity cache, and the
// subgraph-request/response hooks are all applied here.
//
// # Deserialization
//
// deserialize.go walks a document's decoded JSON in lockstep with the
// matching slice of the plan's response shape tree (shape-directed
// deserialization, §4.5 step 3): unknown JSON fields are ignored, a
// top-level key the document owns but the response lacks raises
// INVALID_SUBGRAPH_RESPONSE, an explicit null for a non-null field records a
// non-null error, both null-propagate, and __typename drives which TypeBranch a polymorphic
// field's children are read against.
//
// representations.go builds an entity continuation's representations
// variable by walking its ResponseView.Path through already-written
// response data, flattening through any list found along the way, and
// writes each _entities result back onto the same objects once the call
// returns.
package executor

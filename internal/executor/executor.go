package executor

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	hooks "github.com/fedgraph/gateway/internal/hooks"
	language "github.com/fedgraph/gateway/internal/language"
	planner "github.com/fedgraph/gateway/internal/planner"
	respstore "github.com/fedgraph/gateway/internal/respstore"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	httptp "github.com/fedgraph/gateway/internal/transport/httptp"
)

// Transport is the subset of httptp.Transport the executor dispatches
// subgraph documents through, narrowed so tests can substitute a fake.
type Transport interface {
	Do(ctx context.Context, req httptp.Request) (*httptp.Response, error)
}

// StreamTransport is implemented by a Transport that can dial a subscription
// root document as a stream of items rather than one request/response round
// trip (§4.5); httptp.Transport.DoStream is the production implementation.
// A Transport that does not implement it falls back to a single item.
type StreamTransport interface {
	DoStream(ctx context.Context, req httptp.Request) (<-chan httptp.StreamItem, error)
}

// Executor drives a finalized plan to completion (§4.5): one subgraph call
// per resolver-step node, written directly into a respstore.Store as
// responses arrive, with GraphQL null propagation applied along the way.
// Every hook field is optional; a nil hook is simply skipped.
type Executor struct {
	Transport            Transport
	SubgraphRequestHook  hooks.SubgraphRequestHook
	SubgraphResponseHook hooks.SubgraphResponseHook
	EntityCache          hooks.EntityCache
}

// run holds the mutable state of one in-flight Execute call. Dispatch
// (network I/O, JSON decode into a scratch map) runs concurrently across
// sibling documents; mu serializes the actual commit into store, since the
// store's arena slices are not safe for concurrent append (§4.6 "single-
// threaded mutation is the simplest safe discipline").
type run struct {
	e     *Executor
	plan  *planner.Plan
	idx   *schemaindex.Index
	store *respstore.Store

	clientHeaders http.Header

	mu          sync.Mutex
	parentCount []int32
	// branchOf remembers, per object value this run has written, which shape
	// children apply to it — the TypeBranch selectBranch picked when the
	// object was first created. A later entity continuation targeting the
	// same object has no shape of its own (ResponseView only names a path,
	// not a shape), so it looks here instead.
	branchOf map[respstore.ValueID][]planner.ShapeID
	// extrasOf holds the synthetic @key/@requires field values read off a
	// subgraph response under their ExtraAlias, keyed by the object they
	// belong to. Kept out of respstore entirely: these values never need to
	// reach the client, only feed a later representations variable.
	extrasOf map[respstore.ValueID]map[string]any
}

// Execute runs plan to completion and returns the materialized response.
// clientHeaders are the incoming request's headers, forwarded to subgraphs
// per each one's header rules (§6).
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan, clientHeaders http.Header) *ExecutionResult {
	r := e.newRun(plan, clientHeaders)

	if err := r.runAll(ctx); err != nil {
		r.store.Nullify(r.store.Root(), err.Error(), map[string]any{"code": "EXECUTION_CANCELED"})
	}

	return &ExecutionResult{Data: r.store.Materialize(), Errors: r.store.Errors()}
}

// newRun allocates the mutable state of one fresh plan traversal: its own
// store, parent-count table and branch/extras side tables, so no two
// traversals of the same plan (notably two items of one subscription) ever
// share response state.
func (e *Executor) newRun(plan *planner.Plan, clientHeaders http.Header) *run {
	r := &run{
		e:             e,
		plan:          plan,
		idx:           plan.Index(),
		store:         respstore.New(),
		clientHeaders: clientHeaders,
		parentCount:   make([]int32, len(plan.Nodes)),
		branchOf:      make(map[respstore.ValueID][]planner.ShapeID),
		extrasOf:      make(map[respstore.ValueID]map[string]any),
	}
	for i := range plan.Nodes {
		r.parentCount[i] = int32(plan.Node(planner.NodeID(i)).ParentCount)
	}
	return r
}

// ExecuteSubscription drives a subscription plan's single root document as a
// stream of items (§4.5: "each item is pushed through the rest of the plan
// DAG as if it were a fresh root result, producing one outbound event per
// item"). Every item gets its own freshly allocated run — a brand new
// response store — so items never share partial state; each produces
// exactly one ExecutionResult on the returned channel, which is closed once
// the subgraph's own stream ends, ctx is canceled, or the configured
// Transport cannot stream at all (in which case exactly one item is sent,
// matching a plain single-response subscription dial).
func (e *Executor) ExecuteSubscription(ctx context.Context, plan *planner.Plan, clientHeaders http.Header) <-chan *ExecutionResult {
	out := make(chan *ExecutionResult, 1)
	go func() {
		defer close(out)

		rootID, doc, ok := subscriptionRootNode(plan)
		if !ok {
			return
		}

		req, err := e.newRun(plan, clientHeaders).buildRequest(ctx, doc, nil)
		if err != nil {
			out <- &ExecutionResult{Errors: []respstore.Error{{
				Message:    err.Error(),
				Extensions: map[string]any{"code": "SUBSCRIPTION_SETUP_FAILED"},
			}}}
			return
		}

		st, streamable := e.Transport.(StreamTransport)
		if !streamable {
			r := e.newRun(plan, clientHeaders)
			resp, fetchErr := r.dispatch(ctx, req)
			select {
			case out <- r.runSubscriptionItem(ctx, rootID, doc, resp, fetchErr):
			case <-ctx.Done():
			}
			return
		}

		items, err := st.DoStream(ctx, req)
		if err != nil {
			r := e.newRun(plan, clientHeaders)
			select {
			case out <- r.runSubscriptionItem(ctx, rootID, doc, nil, err):
			case <-ctx.Done():
			}
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case item, more := <-items:
				if !more {
					return
				}
				r := e.newRun(plan, clientHeaders)
				result := r.runSubscriptionItem(ctx, rootID, doc, item.Response, item.Err)
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// subscriptionRootNode finds the plan's single root-level document node
// (View == nil, see document.go); a subscription operation names exactly
// one root field, so there is never more than one.
func subscriptionRootNode(plan *planner.Plan) (planner.NodeID, *planner.PartitionDocument, bool) {
	for i := 1; i < len(plan.Nodes); i++ {
		id := planner.NodeID(i)
		n := plan.Node(id)
		if n.Kind == planner.NodeResolverStep && n.Document.View == nil {
			return id, n.Document, true
		}
	}
	return 0, nil, false
}

// runSubscriptionItem commits one subgraph-emitted item as rootID's
// document data, then cascades the rest of the plan DAG exactly as runAll
// would for a query, against this run's own fresh store.
func (r *run) runSubscriptionItem(ctx context.Context, rootID planner.NodeID, doc *planner.PartitionDocument, resp *httptp.Response, fetchErr error) *ExecutionResult {
	r.mu.Lock()
	if fetchErr != nil {
		r.nullifyFetchFailure(r.plan.Root, doc.Keys, r.store.Root(), fetchErr)
	} else {
		data, _ := decodeObject(resp.Data)
		r.writeTopLevel(r.plan.Root, doc.Keys, r.store.Root(), data)
		r.recordExtras(r.store.Root(), data)
		r.applySubgraphErrors(r.store.Root(), resp.Errors)
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.cascadeChildren(gctx, g, rootID) })
	if err := g.Wait(); err != nil {
		r.store.Nullify(r.store.Root(), err.Error(), map[string]any{"code": "EXECUTION_CANCELED"})
	}
	return &ExecutionResult{Data: r.store.Materialize(), Errors: r.store.Errors()}
}

// runAll seeds the scheduler. Mutation root fields run strictly in source
// order (§4.5); everything else — queries, subscriptions, and every node's
// own descendant continuations regardless of operation kind — fans out
// freely the moment its parent count reaches zero.
func (r *run) runAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if r.plan.OperationKind() == language.Mutation {
		roots := r.rootDocumentNodes()
		g.Go(func() error { return r.runMutationRoots(gctx, g, roots) })
		return g.Wait()
	}

	for i := 1; i < len(r.plan.Nodes); i++ {
		id := planner.NodeID(i)
		if r.plan.Node(id).Kind == planner.NodeResolverStep && atomic.LoadInt32(&r.parentCount[id]) == 0 {
			id := id
			g.Go(func() error { return r.runNode(gctx, g, id) })
		}
	}
	return g.Wait()
}

// rootDocumentNodes returns the ids of every node whose document is a
// root-level query/mutation document (View == nil, see document.go), the
// property BuildSchedule leaves implicit rather than flagging explicitly.
func (r *run) rootDocumentNodes() []planner.NodeID {
	var ids []planner.NodeID
	for i := 1; i < len(r.plan.Nodes); i++ {
		id := planner.NodeID(i)
		n := r.plan.Node(id)
		if n.Kind == planner.NodeResolverStep && n.Document.View == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// runMutationRoots dispatches each root-level document to completion before
// starting the next one, in ascending node id order (a stable proxy for
// source order, matching document.go's use of the same property). Each
// call's own downstream continuations are still launched onto g as soon as
// they become ready, so only the root fields themselves are serialized.
func (r *run) runMutationRoots(ctx context.Context, g *errgroup.Group, ids []planner.NodeID) error {
	for _, id := range ids {
		if err := r.runNode(ctx, g, id); err != nil {
			return err
		}
	}
	return nil
}

// runNode dispatches one node's own work (a no-op for NodeFinalize) then
// decrements every child's parent count, spawning a fresh goroutine for
// each child that becomes ready.
func (r *run) runNode(ctx context.Context, g *errgroup.Group, id planner.NodeID) error {
	node := r.plan.Node(id)
	switch node.Kind {
	case planner.NodeResolverStep:
		if err := r.runDocument(ctx, node.Document); err != nil {
			return err
		}
	case planner.NodeDerive:
		r.runDerive(node.Derive)
	}
	return r.cascadeChildren(ctx, g, id)
}

// cascadeChildren decrements every child of id's parent count, spawning a
// fresh goroutine for each child that becomes ready. Split out from runNode
// so a subscription item can re-drive a node's descendants without
// re-dispatching the node's own document (runSubscriptionItem already wrote
// it directly).
func (r *run) cascadeChildren(ctx context.Context, g *errgroup.Group, id planner.NodeID) error {
	node := r.plan.Node(id)
	for _, child := range node.Children {
		if atomic.AddInt32(&r.parentCount[child], -1) == 0 {
			child := child
			g.Go(func() error { return r.runNode(ctx, g, child) })
		}
	}
	return nil
}

// runDocument dispatches doc and commits its response (or failure) into
// store. A subgraph-level failure nullifies only doc's own keys (§4.5) and
// never aborts the overall schedule; only a request-construction error (a
// failing SubgraphRequestHook, for instance) propagates. A canceled ctx
// surfaces through the transport as an ordinary fetch failure.
func (r *run) runDocument(ctx context.Context, doc *planner.PartitionDocument) error {
	if doc.View == nil {
		return r.runRootDocument(ctx, doc)
	}
	return r.runEntityDocument(ctx, doc)
}

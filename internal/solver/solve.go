package solver

import (
	"fmt"
	"strings"

	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
)

// RequirementCycleDetected is the §4.3 fatal planning error: the required
// field set of one field transitively depends on a field that itself
// requires the first, so no resolver order can satisfy every requirement.
type RequirementCycleDetected struct {
	Path []string // response keys (or "<extra:Name>" for synthetic fields), in cycle order
}

func (e *RequirementCycleDetected) Error() string {
	return fmt.Sprintf("solver: requirement cycle detected: %s", strings.Join(e.Path, " -> "))
}

type solveCtx struct {
	idx *schemaindex.Index
	g   *opgraph.Graph

	done     map[opgraph.NodeID]opgraph.NodeID // field node -> resolver node, once solved
	visiting map[opgraph.NodeID]bool
	path     []opgraph.NodeID

	used map[opgraph.NodeID]bool
}

// Solve implements §4.3: choose one resolver per field node of g, covering
// every client-selected field, satisfying every requires/key closure with
// other chosen resolvers, and detecting requirement cycles. Ported from the
// depth-first visited-state idiom in
// hanpama-protograph/internal/ir/buildservicedeps.go's service-dependency
// cycle check, generalized to a memoized recursive solve instead of a flat
// dependency list: the candidate order opgraph's tie-break already computed
// (§4.2) doubles as the cost-minimizing order here, because that order's
// top priority is exactly "already-instantiated resolver" (a free inline
// continuation) over any resolver that would need a fresh instance — so
// trying candidates in order already tries every zero-marginal-cost option
// before any option this field's resolution would be the first to pay for
// (§9(iii) — any monotone cost consistent with the tie-breaks preserves
// correctness).
func Solve(idx *schemaindex.Index, g *opgraph.Graph) (*Solved, error) {
	s := &solveCtx{
		idx:      idx,
		g:        g,
		done:     make(map[opgraph.NodeID]opgraph.NodeID),
		visiting: make(map[opgraph.NodeID]bool),
		used:     make(map[opgraph.NodeID]bool),
	}

	// Every field node the client actually selected needs an assignment,
	// not only the top-level ones in g.Root: opgraph has no parent/child
	// edge between a field and its nested selection (nesting is implied by
	// Node.Parent/the schema, not by an edge solveField could walk), so
	// each one is its own entry point here. Synthetic @requires/@key extras
	// are never entry points themselves; they are only reached by
	// solveField/tryKeyClosure from a field or resolver that needs them.
	for id := 1; id < g.NumNodes(); id++ {
		n := g.Node(opgraph.NodeID(id))
		if n.Kind != opgraph.FieldNode || !n.Operation.Valid() {
			continue
		}
		if n.Derived {
			// A derived field carries no resolver candidates of its own
			// (the executor materializes it directly from sibling data), so
			// it is never itself passed to solveField — but its key's
			// sibling source fields still need a resolver chosen, exactly
			// like any other @requires closure, or they would never make it
			// into any subgraph document.
			if err := s.solveRequiresOf(opgraph.NodeID(id)); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := s.solveField(opgraph.NodeID(id)); err != nil {
			return nil, err
		}
	}

	sol := &Solved{
		Graph:      g,
		ResolverOf: s.done,
		Cost:       totalCost(idx, g, s.used),
	}
	sol.buildPartitions(g, s.used)
	if err := sol.checkPartitionCycles(); err != nil {
		return nil, err
	}
	return sol, nil
}

func (s *solveCtx) solveField(f opgraph.NodeID) (opgraph.NodeID, error) {
	if r, ok := s.done[f]; ok {
		return r, nil
	}
	if s.visiting[f] {
		return 0, s.cycleError(f)
	}
	s.visiting[f] = true
	s.path = append(s.path, f)
	defer func() {
		s.visiting[f] = false
		s.path = s.path[:len(s.path)-1]
	}()

	// The field's own @requires closure must be satisfied regardless of
	// which candidate ends up serving it (schemaindex.Field.Requires is
	// not per-resolver; see buildjoin.go).
	if err := s.solveRequiresOf(f); err != nil {
		return 0, err
	}

	var lastErr error
	for _, r := range s.g.Providers(f) {
		if err := s.tryKeyClosure(r); err != nil {
			lastErr = err
			continue
		}
		s.done[f] = r
		s.used[r] = true
		return r, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("solver: field node %d has no candidate resolver", f)
	}
	return 0, lastErr
}

// solveRequiresOf solves every field f has a Requires edge to, so its
// closure is satisfied regardless of what (if anything) ends up serving f
// itself — used both for an ordinary field's own @requires set and for a
// derived field's key's sibling source fields (opgraph/build.go's bindField).
func (s *solveCtx) solveRequiresOf(f opgraph.NodeID) error {
	for _, e := range s.g.OutEdges(f) {
		if e.Kind == opgraph.Requires {
			if _, err := s.solveField(e.To); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *solveCtx) tryKeyClosure(r opgraph.NodeID) error {
	for _, e := range s.g.OutEdges(r) {
		if e.Kind == opgraph.KeyField {
			if _, err := s.solveField(e.To); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *solveCtx) cycleError(f opgraph.NodeID) error {
	start := 0
	for i, p := range s.path {
		if p == f {
			start = i
			break
		}
	}
	cycle := append([]opgraph.NodeID{}, s.path[start:]...)
	cycle = append(cycle, f)
	labels := make([]string, len(cycle))
	for i, nid := range cycle {
		n := s.g.Node(nid)
		if n.ResponseKey != "" {
			labels[i] = n.ResponseKey
		} else {
			labels[i] = fmt.Sprintf("<extra:%s>", s.idx.Field(n.Definition).Name)
		}
	}
	return &RequirementCycleDetected{Path: labels}
}

package solver

import (
	"fmt"
	"sort"

	opgraph "github.com/fedgraph/gateway/internal/opgraph"
)

// buildPartitions contracts every field node sharing a chosen resolver node
// into one Partition (§4.3 "contract chains of same-resolver-instance field
// nodes"), then derives the partition dependency DAG from the KeyField and
// Requires edges that cross a partition boundary.
func (s *Solved) buildPartitions(g *opgraph.Graph, used map[opgraph.NodeID]bool) {
	byResolver := make(map[opgraph.NodeID][]opgraph.NodeID, len(used))
	for field, resolver := range s.ResolverOf {
		byResolver[resolver] = append(byResolver[resolver], field)
	}

	resolverNodes := make([]opgraph.NodeID, 0, len(used))
	for rn := range used {
		resolverNodes = append(resolverNodes, rn)
	}
	sort.Slice(resolverNodes, func(i, j int) bool {
		return minNodeID(byResolver[resolverNodes[i]]) < minNodeID(byResolver[resolverNodes[j]])
	})

	s.Partitions = make([]Partition, 0, len(resolverNodes))
	indexOf := make(map[opgraph.NodeID]PartitionID, len(resolverNodes))
	for _, rn := range resolverNodes {
		fields := byResolver[rn]
		sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
		rd := g.Node(rn)
		s.Partitions = append(s.Partitions, Partition{
			Entity:       rd.Parent,
			Resolver:     rd.Resolver,
			ResolverNode: rn,
			Fields:       fields,
		})
		indexOf[rn] = PartitionID(len(s.Partitions))
	}

	s.DependsOn = make(map[PartitionID][]PartitionID, len(s.Partitions))
	addDep := func(from, to PartitionID) {
		if from == to {
			return
		}
		for _, existing := range s.DependsOn[from] {
			if existing == to {
				return
			}
		}
		s.DependsOn[from] = append(s.DependsOn[from], to)
	}

	for _, p := range s.Partitions {
		pid := indexOf[p.ResolverNode]
		for _, e := range g.OutEdges(p.ResolverNode) {
			if e.Kind != opgraph.KeyField {
				continue
			}
			if dep, ok := indexOf[s.ResolverOf[e.To]]; ok {
				addDep(pid, dep)
			}
		}
		for _, f := range p.Fields {
			for _, e := range g.OutEdges(f) {
				if e.Kind != opgraph.Requires {
					continue
				}
				if dep, ok := indexOf[s.ResolverOf[e.To]]; ok {
					addDep(pid, dep)
				}
			}
		}
	}
}

func minNodeID(fields []opgraph.NodeID) opgraph.NodeID {
	min := fields[0]
	for _, f := range fields[1:] {
		if f < min {
			min = f
		}
	}
	return min
}

// PartitionCycleDetected signals a bug in Solve rather than a client-facing
// planning error: field-level cycle detection (solve.go) should make this
// unreachable, since any partition dependency cycle implies a field-level
// requirement cycle along the same edges. Kept as a defensive final check,
// grounded on the same visited-state DFS idiom as solve.go's field-level
// detection (itself ported from
// hanpama-protograph/internal/ir/buildservicedeps.go).
type PartitionCycleDetected struct {
	Path []PartitionID
}

func (e *PartitionCycleDetected) Error() string {
	return fmt.Sprintf("solver: internal error: partition dependency cycle %v", e.Path)
}

func (s *Solved) checkPartitionCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[PartitionID]int, len(s.Partitions))
	var path []PartitionID
	var cycleErr error

	var dfs func(PartitionID)
	dfs = func(p PartitionID) {
		if cycleErr != nil {
			return
		}
		switch state[p] {
		case visiting:
			start := 0
			for i, q := range path {
				if q == p {
					start = i
					break
				}
			}
			cycleErr = &PartitionCycleDetected{Path: append(append([]PartitionID{}, path[start:]...), p)}
			return
		case done:
			return
		}
		state[p] = visiting
		path = append(path, p)
		for _, dep := range s.DependsOn[p] {
			dfs(dep)
			if cycleErr != nil {
				return
			}
		}
		path = path[:len(path)-1]
		state[p] = done
	}

	for i := range s.Partitions {
		dfs(PartitionID(i + 1))
		if cycleErr != nil {
			return cycleErr
		}
	}
	return nil
}

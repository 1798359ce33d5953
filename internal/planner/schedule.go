package planner

import solver "github.com/fedgraph/gateway/internal/solver"

// BuildSchedule flattens the partition documents and a terminal finalize
// step into the executable DAG (§4.4 step 4): each node gets a parent count
// and a children list, so the executor can run a node the moment its parent
// count reaches zero with a simple decrement-and-spawn scheduler (no ready
// queue).
// Dependencies are derived from Solved.DependsOn at the partition level and
// fanned out to every document belonging to the dependent/dependency
// partitions, since a single partition can own more than one document (one
// per distinct entry point; see document.go).
// Nodes are 1-indexed (index 0 is the reserved sentinel PlanNode, matching
// the zero-id-reserved convention every other package's arena follows):
// document i (0-indexed) lives at Nodes[i+1].
func BuildSchedule(solved *solver.Solved, docs []PartitionDocument) []PlanNode {
	nodes := make([]PlanNode, len(docs)+1, len(docs)+2)
	byPartition := make(map[solver.PartitionID][]int, len(solved.Partitions))
	for i := range docs {
		nodes[i+1] = PlanNode{Kind: NodeResolverStep, Document: &docs[i]}
		byPartition[docs[i].Partition] = append(byPartition[docs[i].Partition], i)
	}

	for i := range docs {
		p := docs[i].Partition
		for _, dep := range solved.DependsOn[p] {
			for _, j := range byPartition[dep] {
				nodes[j+1].Children = append(nodes[j+1].Children, NodeID(i+1))
				nodes[i+1].ParentCount++
			}
		}
	}

	finalizeID := NodeID(len(nodes))
	for i := 1; i < len(nodes); i++ {
		nodes[i].Children = append(nodes[i].Children, finalizeID)
	}
	nodes = append(nodes, PlanNode{Kind: NodeFinalize, ParentCount: len(docs)})
	return nodes
}

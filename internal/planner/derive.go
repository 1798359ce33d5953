package planner

import schemaindex "github.com/fedgraph/gateway/internal/schemaindex"

// collectDeriveSteps walks the already-built shape tree looking for fields
// whose schema definition carries an @derive key (§9), recording one
// DeriveStep per occurrence with the response path to its parent object. It
// does not recurse into an @derive field's own sub-selection: scope is
// limited to fields fully materializable from sibling data already on the
// parent, so nothing further needs discovering underneath one (DESIGN.md).
func collectDeriveSteps(idx *schemaindex.Index, shapes []FieldShape, ids []ShapeID, path []string) []DeriveStep {
	var out []DeriveStep
	for _, id := range ids {
		s := &shapes[id]
		if s.Definition.Valid() {
			if fd := idx.Field(s.Definition); fd.Derive != nil {
				out = append(out, DeriveStep{
					Path:        append([]string{}, path...),
					ResponseKey: s.ResponseKey,
					Shape:       id,
					Key:         fd.Derive,
				})
				continue
			}
		}
		childPath := path
		if s.ResponseKey != "" {
			childPath = append(append([]string{}, path...), s.ResponseKey)
		}
		for _, branch := range s.Branches {
			out = append(out, collectDeriveSteps(idx, shapes, branch.Children, childPath)...)
		}
	}
	return out
}

// attachDeriveNodes appends one NodeDerive per step to nodes, each depending
// on every resolver-step node (conservative but simple: a sibling source
// field can originate from any partition, and derive steps are cheap enough
// that running them only once every fetch has landed costs nothing worth
// optimizing for) and feeding into the existing finalize node.
func attachDeriveNodes(nodes []PlanNode, numDocs int, derives []DeriveStep) []PlanNode {
	finalizeID := NodeID(len(nodes) - 1)
	for i := range derives {
		id := NodeID(len(nodes))
		nodes = append(nodes, PlanNode{
			Kind:        NodeDerive,
			Derive:      &derives[i],
			ParentCount: numDocs,
			Children:    []NodeID{finalizeID},
		})
		for j := 1; j <= numDocs; j++ {
			nodes[j].Children = append(nodes[j].Children, id)
		}
		nodes[finalizeID].ParentCount++
	}
	return nodes
}

package planner

import (
	boundop "github.com/fedgraph/gateway/internal/boundop"
	language "github.com/fedgraph/gateway/internal/language"
	opgraph "github.com/fedgraph/gateway/internal/opgraph"
	schemaindex "github.com/fedgraph/gateway/internal/schemaindex"
	solver "github.com/fedgraph/gateway/internal/solver"
)

// Finalize runs every step of §4.4 over a solved operation graph and
// returns the plan the executor runs.
func Finalize(idx *schemaindex.Index, op *boundop.Operation, g *opgraph.Graph, solved *solver.Solved) (*Plan, error) {
	shapes, root := BuildShapeTree(idx, op)
	docs := BuildDocuments(idx, op, g, solved)
	nodes := BuildSchedule(solved, docs)

	if derives := collectDeriveSteps(idx, shapes, root, nil); len(derives) > 0 {
		nodes = attachDeriveNodes(nodes, len(docs), derives)
	}

	return &Plan{
		idx:    idx,
		op:     op,
		shapes: shapes,
		Root:   root,
		Nodes:  nodes,
	}, nil
}

// Index returns the schema index the plan was built against, so the
// executor can resolve a document's Resolver into a subgraph/header-rule/
// retry policy without carrying its own copy of the index alongside the
// plan.
func (p *Plan) Index() *schemaindex.Index { return p.idx }

// OperationKind reports whether the plan's operation is a query, mutation or
// subscription, driving the executor's mutation root-field serialization
// (§4.5) and whether a subgraph request may be retried (mutations are never
// marked idempotent).
func (p *Plan) OperationKind() language.Operation { return p.op.Kind }

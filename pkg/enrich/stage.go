package enrich

import (
	"context"

	"github.com/matzehuels/diagramir/pkg/ir"
)

// Stage names, in pipeline order.
const (
	StageNormalizeLabels = "normalize_labels"
	StageAssignTaxonomy  = "assign_taxonomy"
	StageInferDomain     = "infer_domain"
	StageTagRisks        = "tag_risks"
	StageClassifyEdges   = "classify_edges"
	StageAssignGroups    = "assign_groups_by_kind"
)

// Stage is one step of the enrichment pipeline.
//
// Apply returns a new graph and must leave g untouched. An error, or a
// returned graph that fails [ir.Graph.Validate], aborts the whole run.
type Stage interface {
	Name() string
	Apply(ctx context.Context, g *ir.Graph) (*ir.Graph, error)
}

// StageFunc adapts a function to the [Stage] interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, g *ir.Graph) (*ir.Graph, error)
}

// Name returns the stage name.
func (f StageFunc) Name() string { return f.StageName }

// Apply calls f.Fn.
func (f StageFunc) Apply(ctx context.Context, g *ir.Graph) (*ir.Graph, error) {
	return f.Fn(ctx, g)
}

// Func returns a [StageFunc] named name.
func Func(name string, fn func(ctx context.Context, g *ir.Graph) (*ir.Graph, error)) Stage {
	return StageFunc{StageName: name, Fn: fn}
}

// eachNode returns a clone of g with fn applied to every node.
func eachNode(g *ir.Graph, fn func(n *ir.Node)) *ir.Graph {
	out := g.Clone()
	for i := range out.Nodes {
		fn(&out.Nodes[i])
	}
	return out
}

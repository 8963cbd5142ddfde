// Package enrich turns a minimal IR graph into a classified one.
//
// The [Default] pipeline runs six stages in a fixed order:
//
//  1. [NormalizeLabels] collapses whitespace in node names
//  2. [AssignTaxonomy] classifies nodes and sets kind, layer and icon metadata
//  3. [InferDomain] tags business domains from node names
//  4. [TagRisks] adds static high or medium risk tags
//  5. [ClassifyEdges] derives edge protocol and purpose from labels
//  6. [AssignGroupsByKind] clusters nodes by kind and by domain
//
// # Failure isolation
//
// Every stage returns a new graph. The [Pipeline] validates each result and
// recovers panics; on the first failure it stops and hands back the graph it
// was given, so callers see either a fully enriched graph or their own
// input, never a partial result:
//
//	res := enrich.Default(classifier, enrich.WithTaxonomy(store)).Run(ctx, g)
//	if !res.Enriched {
//	    logger.Warn("serving unenriched graph", "stage", res.FailedStage, "error", res.Err)
//	}
//	return res.Graph
package enrich

// Package pkg holds the public diagramir libraries.
//
// # Overview
//
// diagramir turns the syntactic output of a diagram parser into a typed
// intermediate representation: every node carries a kind and an
// architectural layer, edges carry a protocol and a purpose, and related
// nodes are clustered into groups. The pkg directory is organized as:
//
//  1. [ir] - The graph model, its invariants, JSON encoding and the builder
//  2. [taxonomy] - The shared technology taxonomy: sources, index and store
//  3. [classify] - The label classifier cascade
//  4. [enrich] - The six-stage fail-safe enrichment pipeline and grouping
//  5. [integrations] - Remote taxonomy backends (Supabase, Postgres, MongoDB, S3)
//  6. [cache], [errors], [httputil], [observability] - Shared infrastructure
//
// # Architecture
//
// The typical data flow through diagramir:
//
//	Parsed diagram (nodes + edges)
//	         ↓
//	    [ir.Builder] (minimal graph, every node a Service)
//	         ↓
//	    [enrich.Pipeline] (normalize → classify → domain → risk → edges → groups)
//	         ↓
//	    Enriched IR graph (JSON)
//
// Classification reads a [taxonomy.Store], which serves an in-memory index
// backed by a disk snapshot and refreshed from a remote source.
//
// # Quick Start
//
//	store := taxonomy.NewStore(taxonomy.NewFileSource("taxonomy.json"))
//	c, _ := classify.New(store)
//
//	d, _ := ir.ReadDiagram(r)
//	g, _ := ir.NewBuilder().Build(d, "")
//
//	res := enrich.Default(c, enrich.WithTaxonomy(store)).Run(ctx, g)
//	if !res.Enriched {
//	    log.Warn("serving unenriched graph", "stage", res.FailedStage)
//	}
//
// [ir]: github.com/matzehuels/diagramir/pkg/ir
// [taxonomy]: github.com/matzehuels/diagramir/pkg/taxonomy
// [classify]: github.com/matzehuels/diagramir/pkg/classify
// [enrich]: github.com/matzehuels/diagramir/pkg/enrich
// [integrations]: github.com/matzehuels/diagramir/pkg/integrations
// [cache]: github.com/matzehuels/diagramir/pkg/cache
// [errors]: github.com/matzehuels/diagramir/pkg/errors
// [httputil]: github.com/matzehuels/diagramir/pkg/httputil
// [observability]: github.com/matzehuels/diagramir/pkg/observability
// [ir.Builder]: github.com/matzehuels/diagramir/pkg/ir.Builder
// [enrich.Pipeline]: github.com/matzehuels/diagramir/pkg/enrich.Pipeline
// [taxonomy.Store]: github.com/matzehuels/diagramir/pkg/taxonomy.Store
package pkg

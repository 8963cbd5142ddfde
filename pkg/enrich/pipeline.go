package enrich

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/observability"
)

var tracer = otel.Tracer("diagramir.enrich")

// Pipeline runs stages in order over a graph.
//
// A run is all or nothing: if any stage returns an error, panics or
// produces an invalid graph, the remaining stages are skipped and the
// caller gets back the graph it passed in. A Pipeline holds no per-run
// state and is safe for concurrent use.
type Pipeline struct {
	stages []Stage
	logger *log.Logger
}

// Option configures a [Pipeline].
type Option func(*options)

type options struct {
	logger        *log.Logger
	taxonomy      Loader
	preserveKind  bool
	replaceStages map[string]Stage
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTaxonomy makes the taxonomy stage load l once per run.
func WithTaxonomy(l Loader) Option {
	return func(o *options) { o.taxonomy = l }
}

// WithPreserveExistingKind keeps non-default kinds set upstream.
func WithPreserveExistingKind(v bool) Option {
	return func(o *options) { o.preserveKind = v }
}

// WithStage replaces the default stage of the same name. Used to swap in
// custom behavior, and by tests to inject failures.
func WithStage(s Stage) Option {
	return func(o *options) {
		if o.replaceStages == nil {
			o.replaceStages = map[string]Stage{}
		}
		o.replaceStages[s.Name()] = s
	}
}

// New returns a pipeline over the given stages.
func New(stages []Stage, opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newPipeline(stages, o)
}

// Default returns the standard six-stage pipeline: normalize labels,
// assign taxonomy, infer domain, tag risks, classify edges, group.
func Default(c *classify.Classifier, opts ...Option) *Pipeline {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	stages := []Stage{
		NormalizeLabels{},
		AssignTaxonomy{Classifier: c, Taxonomy: o.taxonomy, PreserveExistingKind: o.preserveKind},
		InferDomain{},
		TagRisks{},
		ClassifyEdges{},
		AssignGroupsByKind{Logger: o.logger},
	}
	return newPipeline(stages, o)
}

func newPipeline(stages []Stage, o options) *Pipeline {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		if r, ok := o.replaceStages[s.Name()]; ok {
			s = r
		}
		out[i] = s
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	return &Pipeline{stages: out, logger: o.logger}
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Fingerprinter is implemented by stages whose output depends on
// configuration beyond their name.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies the stage list and each stage's configuration.
// Runs of pipelines with equal fingerprints over the same input and
// taxonomy produce the same graph.
func (p *Pipeline) Fingerprint() string {
	parts := make([]string, len(p.stages))
	for i, s := range p.stages {
		parts[i] = s.Name()
		if f, ok := s.(Fingerprinter); ok {
			parts[i] += "=" + f.Fingerprint()
		}
	}
	return strings.Join(parts, ",")
}

// Result is the outcome of one run.
type Result struct {
	// Graph is the enriched graph, or the input graph if the run failed.
	Graph *ir.Graph
	// Enriched reports whether every stage succeeded.
	Enriched bool
	// FailedStage names the stage that aborted the run.
	FailedStage string
	// Err is the failure that aborted the run.
	Err error
	// Cached reports that Graph was served by a [Memo] without running stages.
	Cached   bool
	Stats    Stats
	Duration time.Duration
}

// Stats summarizes an enriched graph.
type Stats struct {
	Nodes  int              `json:"nodes"`
	Edges  int              `json:"edges"`
	Groups int              `json:"groups"`
	Kinds  map[ir.Kind]int  `json:"kinds"`
	Layers map[ir.Layer]int `json:"layers"`
}

// Enrich runs the pipeline and returns only the resulting graph.
func (p *Pipeline) Enrich(ctx context.Context, g *ir.Graph) *ir.Graph {
	return p.Run(ctx, g).Graph
}

// Run applies every stage in order. It never returns an error: failures
// are logged and reported on the result, whose Graph is then g itself.
func (p *Pipeline) Run(ctx context.Context, g *ir.Graph) *Result {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "enrich.Pipeline",
		trace.WithAttributes(
			attribute.Int("stages", len(p.stages)),
			attribute.Int("nodes", nodeCount(g)),
		))
	defer span.End()

	res := p.run(ctx, g)
	res.Duration = time.Since(start)

	if res.Enriched {
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.FailedStage)
	}
	observability.Pipeline().OnRunComplete(ctx, res.Enriched, res.FailedStage, res.Duration)
	return res
}

func (p *Pipeline) run(ctx context.Context, g *ir.Graph) *Result {
	fail := func(stage string, err error) *Result {
		p.logger.Error("enrichment failed, returning input graph", "stage", stage, "error", err)
		return &Result{Graph: g, FailedStage: stage, Err: err, Stats: statsOf(g)}
	}

	if err := g.Validate(); err != nil {
		return fail("input", err)
	}
	p.logger.Info("enrichment starting", "nodes", len(g.Nodes), "edges", len(g.Edges))

	cur := g.Clone()
	for i, stage := range p.stages {
		p.logger.Debug("enrichment stage", "step", fmt.Sprintf("%d/%d", i+1, len(p.stages)), "stage", stage.Name())
		next, err := p.runStage(ctx, stage, cur)
		if err != nil {
			return fail(stage.Name(), err)
		}
		cur = next
	}

	stats := statsOf(cur)
	p.logger.Info("enrichment complete",
		"kinds", sortedKeys(stats.Kinds),
		"layers", sortedKeys(stats.Layers),
		"groups", stats.Groups)
	return &Result{Graph: cur, Enriched: true, Stats: stats}
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, g *ir.Graph) (out *ir.Graph, err error) {
	name := stage.Name()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "enrich."+name)
	defer span.End()

	observability.Pipeline().OnStageStart(ctx, name, len(g.Nodes))
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.New(errors.ErrCodeStageFailed, "stage %s panicked: %v", name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		observability.Pipeline().OnStageComplete(ctx, name, time.Since(start), err)
	}()

	out, err = stage.Apply(ctx, g)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStageFailed, err, "stage %s", name)
	}
	if out == nil {
		return nil, errors.New(errors.ErrCodeStageFailed, "stage %s returned no graph", name)
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStageFailed, err, "stage %s produced an invalid graph", name)
	}
	return out, nil
}

func statsOf(g *ir.Graph) Stats {
	s := Stats{Kinds: map[ir.Kind]int{}, Layers: map[ir.Layer]int{}}
	if g == nil {
		return s
	}
	s.Nodes, s.Edges, s.Groups = len(g.Nodes), len(g.Edges), len(g.Groups)
	for _, n := range g.Nodes {
		s.Kinds[n.Kind]++
		s.Layers[n.Layer]++
	}
	return s
}

func nodeCount(g *ir.Graph) int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

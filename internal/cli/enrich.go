package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramir/pkg/enrich"
)

// enrichCommand creates the enrich command.
func (c *CLI) enrichCommand() *cobra.Command {
	var (
		output       string
		dslPath      string
		diagram      bool
		preserveKind bool
		noCache      bool
	)

	cmd := &cobra.Command{
		Use:   "enrich [graph.json]",
		Short: "Classify, layer and group an IR graph",
		Long: `Enrich runs the six-stage pipeline over an IR graph: label normalization,
taxonomy classification, domain inference, risk tags, edge classification
and grouping. If any stage fails the input graph is written unchanged.

With --diagram the input is a parsed diagram that is built first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			dsl, err := readDSL(dslPath)
			if err != nil {
				return err
			}
			g, err := readGraphInput(argOr(args, 0), diagram, dsl)
			if err != nil {
				return err
			}

			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			ec, err := rt.enrichCache(noCache)
			if err != nil {
				return err
			}
			defer ec.Close()

			prog := newProgress(logger)
			memo := enrich.NewMemo(rt.newPipeline(ctx, preserveKind), ec, rt.store, 0)
			res := memo.Run(ctx, g)
			if !res.Enriched {
				printWarning("Enrichment failed at stage %s, writing input unchanged", res.FailedStage)
				printDetail("%v", res.Err)
			} else {
				prog.done("Enriched graph", "nodes", len(res.Graph.Nodes), "groups", res.Stats.Groups)
				printStats(res.Stats, res.Cached)
			}
			return writeGraphOutput(res.Graph, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&diagram, "diagram", false, "input is a parsed diagram, not an IR graph")
	cmd.Flags().StringVar(&dslPath, "dsl", "", "diagram source text to embed (with --diagram)")
	cmd.Flags().BoolVar(&preserveKind, "preserve-kind", false, "keep node kinds other than Service")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or write the enrichment cache")

	return cmd
}

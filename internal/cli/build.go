package cli

import (
	"github.com/spf13/cobra"
)

// buildCommand creates the build command, which turns a parsed diagram
// into an unenriched IR graph.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		output  string
		dslPath string
	)

	cmd := &cobra.Command{
		Use:   "build [diagram.json]",
		Short: "Build an IR graph from a parsed diagram",
		Long: `Build reads a diagram of nodes and edges (from a file or stdin) and writes
the minimal IR graph: every node a Service in the application layer, fresh
ids and build metadata. Run enrich on the result to classify it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			dsl, err := readDSL(dslPath)
			if err != nil {
				return err
			}
			g, err := readGraphInput(argOr(args, 0), true, dsl)
			if err != nil {
				return err
			}
			logger.Debug("built graph", "nodes", len(g.Nodes), "edges", len(g.Edges))
			return writeGraphOutput(g, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&dslPath, "dsl", "", "file holding the diagram source text to embed")

	return cmd
}

// argOr returns args[i], or "" if absent.
func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

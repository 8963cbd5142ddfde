package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramir/pkg/classify"
)

// classifyCommand creates the classify command.
func (c *CLI) classifyCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify <label>...",
		Short: "Classify component labels against the taxonomy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.store.Load(ctx, false)

			results := make(map[string]classify.Result, len(args))
			for _, label := range args {
				results[label] = rt.classifier.Classify(ctx, label)
			}
			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, label := range args {
				printClassification(label, results[label])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")

	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramir/pkg/errors"
)

// taxonomyCommand creates the taxonomy management command.
func (c *CLI) taxonomyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Inspect and manage the technology taxonomy",
	}

	cmd.AddCommand(c.taxonomyLoadCommand())
	cmd.AddCommand(c.taxonomyStatsCommand())
	cmd.AddCommand(c.taxonomyLookupCommand())
	cmd.AddCommand(c.taxonomyClearCommand())
	cmd.AddCommand(c.taxonomyPublishCommand())

	return cmd
}

// taxonomyLoadCommand creates the "taxonomy load" subcommand.
func (c *CLI) taxonomyLoadCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the taxonomy and refresh the local snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			spinner := newSpinnerWithContext(ctx, "Loading taxonomy from "+rt.source.Name()+"...")
			spinner.Start()
			ix := rt.store.Load(ctx, force)
			if ix.Empty() {
				spinner.StopWithError("No taxonomy available")
				return errors.New(errors.ErrCodeTaxonomyUnavailable, "taxonomy source %s returned no rows", rt.source.Name())
			}
			spinner.StopWithSuccess(fmt.Sprintf("Loaded %d rows", ix.Len()))
			printKeyValue("Source", rt.source.Name())
			printKeyValue("Checksum", ix.Checksum())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the cached snapshot")

	return cmd
}

// taxonomyStatsCommand creates the "taxonomy stats" subcommand.
func (c *CLI) taxonomyStatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print index table sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats := rt.store.Load(ctx, false).Stats()
			if asJSON {
				return json.NewEncoder(stdout).Encode(stats)
			}
			printKeyValue("Rows", strconv.Itoa(stats.Rows))
			printKeyValue("Primary", strconv.Itoa(stats.Primary))
			printKeyValue("Display", strconv.Itoa(stats.Display))
			printKeyValue("Alias", strconv.Itoa(stats.Alias))
			printKeyValue("Words", strconv.Itoa(stats.Words))
			printKeyValue("Keys", strconv.Itoa(stats.Keys))
			printKeyValue("Checksum", stats.Checksum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")

	return cmd
}

// taxonomyLookupCommand creates the "taxonomy lookup" subcommand.
func (c *CLI) taxonomyLookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <label>",
		Short: "Show the taxonomy row a label resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			rt.store.Load(ctx, false)

			row, ok := rt.store.Lookup(args[0])
			if !ok {
				printInfo("No taxonomy row for %q", args[0])
				return nil
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(row)
		},
	}
}

// taxonomyClearCommand creates the "taxonomy clear" subcommand.
func (c *CLI) taxonomyClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached taxonomy snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.Clear(ctx); err != nil {
				return err
			}
			printSuccess("Cleared taxonomy snapshot")
			printDetail("Directory: %s", rt.cfg.Taxonomy.CacheDir)
			return nil
		},
	}
}

// taxonomyPublishCommand creates the "taxonomy publish" subcommand, which
// copies the loaded taxonomy into the configured S3 bucket.
func (c *CLI) taxonomyPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the current taxonomy to the S3 bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			dst, err := rt.objectStore()
			if err != nil {
				return err
			}
			ix := rt.store.Load(ctx, true)
			if ix.Empty() {
				return errors.New(errors.ErrCodeTaxonomyUnavailable, "nothing to publish from %s", rt.source.Name())
			}
			if err := dst.Publish(ctx, ix.Snapshot()); err != nil {
				return err
			}
			printSuccess("Published %d rows to %s", ix.Len(), dst.Name())
			return nil
		},
	}
}

// Package cli implements the diagramir command-line interface.
//
// # Commands
//
//   - build: Turn a parsed diagram into a minimal IR graph
//   - enrich: Run the enrichment pipeline over a graph or diagram
//   - classify: Classify labels against the taxonomy
//   - taxonomy: Load, inspect, clear or publish the taxonomy
//   - cache: Manage the local snapshot and enrichment cache
//   - serve: Serve the HTTP API
//
// Configuration is read from --config (TOML), a .env file and the process
// environment, in increasing precedence. Loggers are passed through
// context.Context.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramir/internal/config"
	"github.com/matzehuels/diagramir/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "diagramir"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. Debug output also reports the
// calling file and line.
func (c *CLI) SetLogLevel(level log.Level) {
	setLevel(c.Logger, level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "diagramir classifies architecture diagrams",
		Long:         `diagramir turns parsed architecture diagrams into a typed, layered and grouped intermediate representation using a shared technology taxonomy.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/diagramir/config.toml)")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.enrichCommand())
	root.AddCommand(c.classifyCommand())
	root.AddCommand(c.taxonomyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

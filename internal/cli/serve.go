package cli

import (
	"context"
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagramir/internal/config"
	"github.com/matzehuels/diagramir/internal/server"
	"github.com/matzehuels/diagramir/pkg/enrich"
	"github.com/matzehuels/diagramir/pkg/integrations/postgres"
	metrics "github.com/matzehuels/diagramir/pkg/observability/prometheus"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the enrichment API over HTTP",
		Long: `Serve exposes enrichment and classification over HTTP and keeps the
taxonomy fresh in the background. Metrics are served on /metrics.

With postgres.listen set, the taxonomy is reloaded whenever the database
sends a change notification.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

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

			metrics.New(prometheus.DefaultRegisterer).Install()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			rt.store.Load(ctx, false)
			rt.store.Start(ctx)
			if done := startListener(ctx, rt.cfg, rt); done != nil {
				defer func() { cancel(); <-done }()
			}

			memo := enrich.NewMemo(rt.newPipeline(ctx, false), ec, rt.store, 0)
			srv := server.New(memo, rt.classifier, rt.store,
				server.WithLogger(logger),
				server.WithMetricsHandler(promhttp.Handler()),
			)
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			err = srv.ListenAndServe(ctx, addr)
			if stderrors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not cache enriched graphs")

	return cmd
}

// startListener runs the Postgres change listener when configured. The
// returned channel closes when it stops.
func startListener(ctx context.Context, cfg *config.Config, rt *runtime) <-chan struct{} {
	if !cfg.Postgres.Listen {
		return nil
	}
	var opts []postgres.ListenerOption
	if cfg.Postgres.Channel != "" {
		opts = append(opts, postgres.WithChannel(cfg.Postgres.Channel))
	}
	logger := loggerFromContext(ctx)
	opts = append(opts, postgres.WithListenerLogger(logger))
	l := postgres.NewListener(postgres.DSNConnector(cfg.Postgres.DSN), func(ctx context.Context) {
		rt.store.Load(ctx, true)
	}, opts...)
	logger.Info("listening for taxonomy changes")
	return l.Start(ctx)
}

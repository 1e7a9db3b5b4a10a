package main

import (
	"github.com/spf13/cobra"

	"github.com/IshaanNene/commentgoat/internal/api"
	"github.com/IshaanNene/commentgoat/internal/engine"
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP trigger API",
		Long: `Serve the trigger API:

  POST /api/v1/runs       start an export {url, policy, value, output}
  GET  /api/v1/runs       list runs
  GET  /api/v1/runs/:id   run status
  GET  /api/v1/health     liveness
  GET  /metrics           Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.startMetrics(ctx)

	srv := api.NewServer(a.cfg.Server, a.flags, a.logger,
		api.WithMetricsHandler(a.metrics.Handler()),
		api.WithCommentsPerPage(a.cfg.Scrape.CommentsPerPage),
	)
	srv.SetRunner(a.newController(
		engine.WithCheckpoints(engine.NewCheckpointManager("")),
		engine.WithReporter(engine.Reporters{engine.NewLogReporter(a.logger), srv}),
	))

	return srv.Start(ctx)
}

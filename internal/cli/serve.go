package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpgo/lifetime-planner/internal/server"
)

// newServeCmd creates the serve command
func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve simulations over HTTP",
		Long: `Start the HTTP API. POST /v1/simulations runs a scenario; a request
that disconnects or exceeds server.request_timeout cancels its run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.cfg.Server.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, rmd, err := a.buildEngine(ctx)
			if err != nil {
				return err
			}
			router := server.NewRouter(a.logger, a.cfg.Log.Development,
				&server.HealthHandler{RMD: rmd},
				&server.SimulationHandler{
					Engine:              engine,
					DefaultTrajectories: a.cfg.Simulation.Trajectories,
					MaxTrajectories:     a.cfg.Server.MaxTrajectories,
					Timeout:             a.cfg.Server.RequestTimeout,
					Logger:              a.logger,
				},
			)
			return server.Serve(ctx, server.New(a.cfg.Server, router), a.logger)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from server.http_addr)")
	return cmd
}

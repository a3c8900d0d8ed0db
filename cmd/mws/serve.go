package main

import (
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/di"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Run the local HTTP front",
	Long: `Serve the application locally. Requests under /app reach the sync
coordinator and /app/events streams change events. Every other path goes
through the cache interceptor to the origin. The backend is probed in the
background and pending changes are pushed whenever it comes back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		injector := di.NewClientContainer(cmd.Flags())

		if err := di.BootstrapClient(injector); err != nil {
			_ = injector.Shutdown()
			return err
		}

		cfg := do.MustInvoke[*config.Config](injector)
		log := do.MustInvoke[*logger.Logger](injector)
		log.Info("Client running", "port", cfg.Server.Port, "backend", cfg.Remote.BaseURL, "origin", cfg.Cache.Origin)

		<-cmd.Context().Done()

		log.Info("Shutting down client gracefully...")
		if err := injector.Shutdown(); err != nil {
			log.Error("Shutdown error", "error", err)
		}
		log.Info("Client stopped")
		return log.Close()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

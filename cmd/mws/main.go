// Package main is the mws client: it browses restaurants and manages reviews
// through the sync coordinator, and serves the local HTTP front.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/di"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "mws",
	Short: "Offline-first restaurant reviews client",
	Long: `mws browses restaurants and manages reviews against the restaurant
backend. Every command works offline: reads fall back to the local store and
writes are kept locally until the backend is reachable again.`,
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "browse", Title: "Browsing:"},
		&cobra.Group{ID: "reviews", Title: "Reviews:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withCoordinator wires the client for a one-shot command, runs fn and shuts
// everything down, waiting for background pushes started by fn.
func withCoordinator(cmd *cobra.Command, fn func(ctx context.Context, coord *service.Coordinator) error) error {
	// One-shot commands only log problems unless asked otherwise.
	if !cmd.Flags().Changed("log-level") && os.Getenv("LOG_LEVEL") == "" {
		_ = cmd.Flags().Set("log-level", "warn")
	}

	injector := di.NewClientContainer(cmd.Flags())

	coordHandle, err := di.BootstrapCommand(injector)
	if err != nil {
		_ = injector.Shutdown()
		return fmt.Errorf("start client: %w", err)
	}
	log := do.MustInvoke[*logger.Logger](injector)

	runErr := fn(cmd.Context(), coordHandle.Coordinator)

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	_ = log.Close()
	return runErr
}

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpgfer/mws-restaurant-1/internal/service"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

var resyncCmd = &cobra.Command{
	Use:     "resync",
	GroupID: "sync",
	Short:   "Push pending local changes to the backend",
	Long: `Push favorites and reviews changed while offline: dirty favorites are
sent, local-only reviews are created and edited reviews updated. Records that
fail stay pending for the next run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			if !coord.IsOnline() {
				return errors.New("backend is unreachable, nothing was pushed")
			}
			report, err := coord.OnReconnect(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(report)
			}

			t := newTable("Records", "Found", "Synced", "Superseded", "Failed")
			for _, row := range []struct {
				name string
				scan service.ScanReport
			}{
				{"favorites", report.Restaurants},
				{"new reviews", report.DetachedReviews},
				{"edited reviews", report.DirtyReviews},
			} {
				t.Row(row.name, itoa(row.scan.Found), itoa(row.scan.Synced), itoa(row.scan.Superseded), itoa(row.scan.Failed))
			}
			fmt.Println(t)

			if report.Failed() > 0 {
				fmt.Printf("%s %d record(s) still pending\n", renderWarn("⚠"), report.Failed())
			} else {
				fmt.Printf("%s Resync complete in %v\n", renderPass("✓"), report.Duration.Round(time.Millisecond))
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show connectivity and pending local changes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			pending, err := coord.Pending(ctx)
			if err != nil {
				return err
			}
			online := coord.IsOnline()
			if jsonOutput {
				return printJSON(struct {
					Pending store.PendingCounts `json:"pending"`
					Online  bool                `json:"online"`
				}{pending, online})
			}

			if online {
				fmt.Printf("%s Backend reachable\n", renderPass("●"))
			} else {
				fmt.Printf("%s Backend unreachable\n", renderWarn("●"))
			}
			fmt.Printf("   Favorites pending: %d\n", pending.DirtyRestaurants)
			fmt.Printf("   New reviews:       %d\n", pending.DetachedReviews)
			fmt.Printf("   Edited reviews:    %d\n", pending.DirtyReviews)
			if pending.Total() > 0 && online {
				fmt.Printf("\n   Run 'mws resync' to push them\n")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resyncCmd, statusCmd)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

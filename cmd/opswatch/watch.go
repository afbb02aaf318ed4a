package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitoring daemon",
	Long: `Start the daemon: a periodic health sweep over every enabled
service, with unhealthy results routed through alert cooldown and
escalation. Runs until interrupted.

Running multiple instances duplicates alerts and jobs; there is no
cross-process coordination.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, logger, d := setup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting opswatch daemon")
		if err := d.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

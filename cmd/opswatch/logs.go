package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opswatch/opswatch/internal/connector"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <service> <app>",
	Short: "Fetch or stream logs through a connector",
	Long: `Fetch recent log lines for an app, or stream them live with
--follow. Only services with a log capability support this.

Examples:
  opswatch logs render srv-abc123
  opswatch logs render srv-abc123 --lines 500
  opswatch logs render srv-abc123 --follow`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		service, app := args[0], args[1]
		_, _, d := setup()

		c, err := d.Registry.Get(service)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if logsFollow {
			streamLogs(c, app)
			return
		}

		lines, err := c.GetLogs(context.Background(), app, logsLines)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, line := range lines {
			fmt.Println(line)
		}
	},
}

func streamLogs(c connector.Connector, app string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := c.StreamLogs(ctx, app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for line := range stream {
		fmt.Println(line)
	}
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream logs live")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "number of recent lines to fetch")
}

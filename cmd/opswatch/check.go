package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opswatch/opswatch/internal/connector"
)

var checkParallel bool

var checkCmd = &cobra.Command{
	Use:   "check [service]",
	Short: "Check the health of one service or the whole fleet",
	Long: `Run health checks against configured services and print results.

With no arguments every enabled service is checked. Pass a service name
to check just that one.

Examples:
  opswatch check
  opswatch check github
  opswatch check --parallel=false`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, _, d := setup()
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("=== Fleet Health ==="))

		var results map[string]connector.Result
		if len(args) == 1 {
			res, err := d.Monitor.CheckService(ctx, args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			results = map[string]connector.Result{args[0]: res}
		} else {
			results = d.Monitor.CheckAll(ctx, checkParallel)
		}

		printResults(results)

		summary := d.Monitor.Summary()
		fmt.Printf("\n%d checked, %d healthy, %d unhealthy\n",
			summary.Total, summary.Healthy, summary.Unhealthy)

		if summary.Unhealthy > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkParallel, "parallel", true, "check services concurrently")
}

func printResults(results map[string]connector.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		status := green("● healthy")
		if !res.Healthy {
			status = red("● unhealthy")
		}
		fmt.Printf("  %-20s %s  %s %s\n",
			name, status, gray(fmt.Sprintf("%.0fms", res.ResponseTimeMS)), res.Message)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opswatch/opswatch/internal/alert"
)

var alertSeverity string

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Alert routing commands",
}

var alertTestCmd = &cobra.Command{
	Use:   "test [message]",
	Short: "Send a test alert through the configured channels",
	Long: `Send a test alert to verify channel configuration. The test
alert goes through the normal cooldown and routing path, so a second
test within the cooldown window is suppressed.

Examples:
  opswatch alert test
  opswatch alert test "paging drill" --severity critical`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		message := "Test alert from opswatch"
		if len(args) == 1 {
			message = args[0]
		}

		sev, err := alert.ParseSeverity(alertSeverity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		_, _, d := setup()
		delivered := d.Alerts.Send(context.Background(), "opswatch-test", sev, message,
			map[string]any{"source": "alert test command"})

		if delivered {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s alert delivered\n", green("✓"))
		} else {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s alert suppressed by cooldown\n", yellow("–"))
		}
	},
}

func init() {
	alertTestCmd.Flags().StringVar(&alertSeverity, "severity", "info", "severity of the test alert")
	alertCmd.AddCommand(alertTestCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opswatch/opswatch/internal/alert"
	"github.com/opswatch/opswatch/internal/connector"
)

var deployBranch string

var deployCmd = &cobra.Command{
	Use:   "deploy <service> <app>",
	Short: "Trigger a deployment through a connector",
	Long: `Trigger a deployment of an app through the named service's
connector. Fails up front if the service does not support deploys.

Examples:
  opswatch deploy render srv-abc123
  opswatch deploy render srv-abc123 --branch main`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		service, app := args[0], args[1]
		_, _, d := setup()
		ctx := context.Background()

		c, err := d.Registry.Get(service)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !c.Capabilities().Supports(connector.CapDeploy) {
			fmt.Fprintf(os.Stderr, "Error: %s does not support deploys\n", service)
			os.Exit(1)
		}

		res, err := c.Deploy(ctx, app, deployBranch)
		if err != nil || !res.Success {
			reason := ""
			if err != nil {
				reason = err.Error()
			} else {
				reason = res.Error
			}
			d.Alerts.Send(ctx, service, alert.SeverityError,
				fmt.Sprintf("Deploy of %s failed: %s", app, reason),
				map[string]any{"app": app, "branch": deployBranch})
			fmt.Fprintf(os.Stderr, "Error: deploy failed: %s\n", reason)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s deployment %s triggered for %s\n", green("✓"), res.DeploymentID, app)
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployBranch, "branch", "", "branch to deploy")
}

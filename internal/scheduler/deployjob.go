package scheduler

import (
	"context"
	"fmt"

	"github.com/opswatch/opswatch/internal/connector"
)

// AddDeployJob registers a scheduled deployment: on each cron firing,
// trigger service's deploy for app from branch. Capability problems
// surface at registration, not at 3am when the trigger fires.
func (s *Scheduler) AddDeployJob(reg *connector.Registry, service, app, branch, cronExpr string) (string, error) {
	c, err := reg.Get(service)
	if err != nil {
		return "", err
	}
	if !c.Capabilities().Supports(connector.CapDeploy) {
		return "", &connector.CapabilityError{Service: service, Capability: connector.CapDeploy}
	}

	handler := func(ctx context.Context) error {
		if err := reg.Wait(ctx, service); err != nil {
			return err
		}

		res, err := c.Deploy(ctx, app, branch)
		if err != nil {
			return fmt.Errorf("deploying %s on %s: %w", app, service, err)
		}
		if !res.Success {
			return fmt.Errorf("deploy of %s on %s rejected: %s", app, service, res.Error)
		}

		s.logger.Info("scheduled deploy triggered",
			"service", service,
			"app", app,
			"branch", branch,
			"deployment_id", res.DeploymentID)
		return nil
	}

	return s.AddJob(JobSpec{
		ID:       fmt.Sprintf("deploy-%s-%s", service, app),
		CronExpr: cronExpr,
		Handler:  handler,
	})
}

package app

import (
	"context"

	"slunch/pkg/state/shutdown"
)

// Shutdown stops the server and the jobs, then closes storage. It is bounded
// by ctx only while waiting for running jobs.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	err := shutdown.ShutdownApp(ctx, shutdown.Components{
		Server:     a.srvFast,
		JobsCancel: a.jobsCancel,
		Jobs:       a.jobs,
		Closers:    []func(){a.gateway.Close},
		Journal:    a.journal,
		Tracer:     a.tracer,
		Store:      a.store,
	})
	if err == nil {
		a.state = "stopped"
	}
	return err
}

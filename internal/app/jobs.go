package app

import (
	"context"

	"slunch/pkg/config"
	"slunch/pkg/schedule"
)

const (
	jobPrecache    = "precache"
	jobDispatch    = "dispatch"
	jobRetention   = "retention"
	jobSchoolCache = "school-cache"
)

// registerJobs adds the enabled cron jobs. The school cache clear rides on
// the retention toggle.
func (a *App) registerJobs() error {
	c := a.eff.Config
	var jobs []schedule.Job
	if config.On(c.Precache.Enabled) {
		jobs = append(jobs, schedule.Job{Name: jobPrecache, Cron: c.Precache.Cron, Run: a.traced(jobPrecache, func(ctx context.Context) (any, error) {
			return a.precache.Run(ctx)
		})})
	}
	if config.On(c.Dispatch.Enabled) {
		jobs = append(jobs, schedule.Job{Name: jobDispatch, Cron: c.Dispatch.Cron, Run: a.traced(jobDispatch, func(ctx context.Context) (any, error) {
			return a.dispatch.Tick(ctx)
		})})
	}
	if config.On(c.Retention.Enabled) {
		jobs = append(jobs,
			schedule.Job{Name: jobRetention, Cron: c.Retention.Cron, Run: a.traced(jobRetention, func(ctx context.Context) (any, error) {
				return a.retention.Run(ctx)
			})},
			schedule.Job{Name: jobSchoolCache, Cron: c.Retention.SchoolCacheCron, Run: a.traced(jobSchoolCache, func(context.Context) (any, error) {
				return nil, a.resolver.ClearSchools()
			})},
		)
	}
	for _, j := range jobs {
		if err := a.jobs.Add(j); err != nil {
			return err
		}
	}
	return nil
}

// traced records one trace per run, carrying the job's report.
func (a *App) traced(name string, fn func(ctx context.Context) (any, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		tr := a.tracer.Track("job." + name)
		defer tr.Finish()
		rep, err := fn(ctx)
		tr.Mark("run")
		if rep != nil {
			tr.Set("report", rep)
		}
		if err != nil {
			tr.Set("error", err.Error())
		}
		return err
	}
}

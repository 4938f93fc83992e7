// Package retention trims data nobody needs any more: access stats past the
// ranking horizon and, when configured, cached meals past a maximum age.
package retention

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/timeutil"
)

type Pruner interface {
	Prune() (int, error)
}

type Options struct {
	// MealMaxAge removes cached days older than this. Zero keeps them.
	MealMaxAge time.Duration
	LockTTL    time.Duration
	DryRun     bool
}

// Report describes one run.
type Report struct {
	RunID        string `json:"runId"`
	AccessPruned int    `json:"accessPruned"`
	MealsScanned int    `json:"mealsScanned"`
	MealsPruned  int    `json:"mealsPruned"`
	DryRun       bool   `json:"dryRun"`
	// Skipped is set when another process held the lease.
	Skipped bool `json:"skipped"`
}

type Runner struct {
	access Pruner
	meals  *store.Collection
	lease  *fileLease
	opts   Options
}

// New builds a runner whose lease file lives in leaseDir.
func New(s *store.Store, access Pruner, leaseDir string, opts Options) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Runner{
		access: access,
		meals:  s.Collection(store.CollMeal),
		lease:  newFileLease(leaseDir),
		opts:   opts,
	}
}

// Run executes one retention pass under the lease.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	owner := uuid.NewString()
	rep := Report{RunID: owner, DryRun: r.opts.DryRun}

	acq, err := r.lease.Acquire(owner, r.opts.LockTTL)
	if err != nil {
		return rep, errors.Wrap(err, "retention lease")
	}
	if !acq {
		rep.Skipped = true
		return rep, nil
	}
	defer func() {
		if err := r.lease.Release(owner); err != nil {
			logger.Error("retention_lease_release_error", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.heartbeat(runCtx, cancel, owner)

	logger.Info("retention_run_start", "run_id", owner, "dry_run", r.opts.DryRun)
	logger.AuditEvent("retention_audit_header", "run_id", owner, "started_at", timeutil.Now().Format(time.RFC3339), "dry_run", r.opts.DryRun)

	if r.access != nil && !r.opts.DryRun {
		n, err := r.access.Prune()
		if err != nil {
			return rep, errors.Wrap(err, "prune access stats")
		}
		rep.AccessPruned = n
	}

	if r.opts.MealMaxAge > 0 {
		if err := r.pruneMeals(runCtx, &rep); err != nil {
			return rep, err
		}
	}

	logger.AuditEvent("retention_audit_footer", "run_id", owner, "access_pruned", rep.AccessPruned, "meals_scanned", rep.MealsScanned, "meals_pruned", rep.MealsPruned)
	logger.Info("retention_run_complete", "run_id", owner, "access_pruned", rep.AccessPruned, "meals_pruned", rep.MealsPruned)
	return rep, nil
}

// heartbeat renews the lease and aborts the run after repeated failures.
func (r *Runner) heartbeat(ctx context.Context, abort context.CancelFunc, owner string) {
	t := time.NewTicker(r.opts.LockTTL / 3)
	defer t.Stop()
	var fails int
	const maxConsecutiveRenewFails = 3
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.lease.Renew(owner, r.opts.LockTTL); err != nil {
				fails++
				logger.Error("retention_lease_renew_failed", "error", err, "count", fails)
				if fails >= maxConsecutiveRenewFails {
					abort()
					return
				}
				continue
			}
			fails = 0
		}
	}
}

func (r *Runner) pruneMeals(ctx context.Context, rep *Report) error {
	cutoff := timeutil.Date(timeutil.Now().Add(-r.opts.MealMaxAge))

	var old []string
	err := r.meals.All(func(k string, v []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.MealsScanned++
		_, _, date, ok := store.ParseCacheKey(k)
		if !ok {
			var rec models.MealRecord
			if json.Unmarshal(v, &rec) != nil {
				return nil
			}
			date = rec.Date
		}
		if date < cutoff {
			old = append(old, k)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan meal cache")
	}

	for _, k := range old {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retention run aborted")
		}
		if r.opts.DryRun {
			logger.AuditEvent("retention_audit_item", "run_id", rep.RunID, "key", k, "status", "dry_run")
			continue
		}
		if err := r.meals.Remove(k); err != nil {
			logger.Error("retention_meal_remove_failed", "key", k, "error", err)
			continue
		}
		rep.MealsPruned++
	}
	return nil
}

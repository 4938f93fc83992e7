// Package precache warms the meal cache for the schools most likely to be
// asked about: the access ranking plus every school with a meal subscription.
package precache

import (
	"context"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/telemetry"
	"slunch/pkg/timeutil"
)

// Warmer fetches one day when it is not cached yet and reports whether an
// upstream fetch was made.
type Warmer interface {
	Warm(ctx context.Context, region, school, date string) (bool, error)
}

type Ranker interface {
	Rank(limit int) ([]models.AccessStat, error)
}

type EntitySource interface {
	MealEntities(limit int) ([]models.Entity, error)
}

type Options struct {
	RankLimit         int
	SubscriptionLimit int
	// Days counts today as the first day.
	Days  int
	Delay time.Duration
}

func DefaultOptions() Options {
	return Options{
		RankLimit:         50,
		SubscriptionLimit: 100,
		Days:              2,
		Delay:             100 * time.Millisecond,
	}
}

type Deps struct {
	Warmer  Warmer
	Ranker  Ranker
	Subs    EntitySource
	Journal *state.FailedOpWriter
	Metrics *telemetry.Metrics
}

// Report summarises one run. Fetched+Skipped+Failed equals Targets*Days.
type Report struct {
	Targets int `json:"targets"`
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Scheduler struct {
	d    Deps
	opts Options
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(d Deps, opts Options) *Scheduler {
	def := DefaultOptions()
	if opts.RankLimit <= 0 {
		opts.RankLimit = def.RankLimit
	}
	if opts.SubscriptionLimit <= 0 {
		opts.SubscriptionLimit = def.SubscriptionLimit
	}
	if opts.Days <= 0 {
		opts.Days = def.Days
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Scheduler{d: d, opts: opts, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Targets merges the ranking with the subscribed schools. Ranked schools come
// first in ranking order; each (region, school) appears once.
func (s *Scheduler) Targets() ([]models.Entity, error) {
	seen := map[models.Entity]bool{}
	var out []models.Entity
	add := func(e models.Entity) {
		if e.RegionCode == "" || e.SchoolCode == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	if s.d.Ranker != nil {
		ranked, err := s.d.Ranker.Rank(s.opts.RankLimit)
		if err != nil {
			return nil, err
		}
		for _, st := range ranked {
			add(st.Entity())
		}
	}
	if s.d.Subs != nil {
		subs, err := s.d.Subs.MealEntities(s.opts.SubscriptionLimit)
		if err != nil {
			return nil, err
		}
		for _, e := range subs {
			add(e)
		}
	}
	return out, nil
}

// Run warms today and the following days for every target. Fetches are
// serial with a fixed pause after each upstream call; a failure is counted
// and journaled and the batch goes on.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	targets, err := s.Targets()
	if err != nil {
		return Report{}, err
	}
	return s.Warm(ctx, targets)
}

// Warm runs the batch for an explicit target list.
func (s *Scheduler) Warm(ctx context.Context, targets []models.Entity) (Report, error) {
	rep := Report{Targets: len(targets)}
	today := timeutil.Now()
	dates := make([]string, 0, s.opts.Days)
	for i := 0; i < s.opts.Days; i++ {
		dates = append(dates, timeutil.Date(today.AddDate(0, 0, i)))
	}
	logger.Info("precache_run_start", "targets", len(targets), "dates", dates)

	for _, e := range targets {
		for _, date := range dates {
			if err := ctx.Err(); err != nil {
				logger.Warn("precache_run_aborted", "error", err, "fetched", rep.Fetched, "failed", rep.Failed)
				s.record(rep)
				return rep, err
			}

			fetched, err := s.d.Warmer.Warm(ctx, e.RegionCode, e.SchoolCode, date)
			switch {
			case err == nil && !fetched:
				rep.Skipped++
			case err == nil:
				rep.Fetched++
			case apperr.IsNotFound(err):
				// no meal served that day
				rep.Skipped++
			default:
				rep.Failed++
				key := store.CacheKey(e.RegionCode, e.SchoolCode, date)
				logger.Warn("precache_fetch_failed", "key", key, "error", err)
				if jerr := s.d.Journal.WriteFailedOp("precache", key, 0, err, map[string]string{
					"region": e.RegionCode,
					"school": e.SchoolCode,
					"date":   date,
				}); jerr != nil {
					logger.Error("precache_journal_failed", "key", key, "error", jerr)
				}
			}

			if fetched {
				if err := s.sleep(ctx, s.opts.Delay); err != nil {
					s.record(rep)
					return rep, err
				}
			}
		}
	}

	s.record(rep)
	logger.Info("precache_run_done", "targets", rep.Targets, "fetched", rep.Fetched, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func (s *Scheduler) record(rep Report) {
	s.d.Metrics.Precache("fetched", rep.Fetched)
	s.d.Metrics.Precache("skipped", rep.Skipped)
	s.d.Metrics.Precache("failed", rep.Failed)
}

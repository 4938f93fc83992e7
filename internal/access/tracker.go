// Package access counts how often each school's meals are requested and ranks
// the schools worth warming ahead of demand.
package access

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/timeutil"
)

type Options struct {
	MinCount int           // rank threshold
	Window   time.Duration // rank only schools accessed this recently
	Horizon  time.Duration // prune stats idle for longer
}

func DefaultOptions() Options {
	return Options{
		MinCount: 5,
		Window:   30 * 24 * time.Hour,
		Horizon:  90 * 24 * time.Hour,
	}
}

type Tracker struct {
	mu   sync.Mutex
	coll *store.Collection
	opts Options
	now  func() time.Time
}

func New(s *store.Store, opts Options) *Tracker {
	def := DefaultOptions()
	if opts.MinCount <= 0 {
		opts.MinCount = def.MinCount
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.Horizon <= 0 {
		opts.Horizon = def.Horizon
	}
	return &Tracker{coll: s.Collection(store.CollAccess), opts: opts, now: timeutil.Now}
}

// RecordAccess bumps the counter for a school, creating the stat on first use.
func (t *Tracker) RecordAccess(region, school string) error {
	if region == "" || school == "" {
		return apperr.Validation("region and school are required")
	}
	key := store.EntityKey(region, school)

	t.mu.Lock()
	defer t.mu.Unlock()

	var stat models.AccessStat
	if err := t.coll.GetJSON(key, &stat); err != nil {
		if !apperr.IsNotFound(err) {
			return err
		}
		stat = models.AccessStat{SchoolCode: school, RegionCode: region}
	}
	stat.Count++
	stat.LastAccessed = t.now().UTC()
	return t.coll.PutJSON(key, stat)
}

// All returns every stored stat in key order.
func (t *Tracker) All() ([]models.AccessStat, error) {
	var out []models.AccessStat
	err := t.coll.All(func(k string, v []byte) error {
		var stat models.AccessStat
		if err := json.Unmarshal(v, &stat); err != nil {
			logger.Warn("access_stat_decode_failed", "key", k, "error", err)
			return nil
		}
		out = append(out, stat)
		return nil
	})
	return out, err
}

// Rank returns up to limit schools with at least MinCount accesses inside the
// recency window, most requested first. limit <= 0 means no limit.
func (t *Tracker) Rank(limit int) ([]models.AccessStat, error) {
	all, err := t.All()
	if err != nil {
		return nil, err
	}
	cutoff := t.now().Add(-t.opts.Window)

	ranked := make([]models.AccessStat, 0, len(all))
	for _, s := range all {
		if s.Count < t.opts.MinCount || !s.LastAccessed.After(cutoff) {
			continue
		}
		ranked = append(ranked, s)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].LastAccessed.After(ranked[j].LastAccessed)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Prune removes stats whose last access is older than the horizon and returns
// how many were removed.
func (t *Tracker) Prune() (int, error) {
	cutoff := t.now().Add(-t.opts.Horizon)

	t.mu.Lock()
	defer t.mu.Unlock()

	var stale []string
	err := t.coll.All(func(k string, v []byte) error {
		var stat models.AccessStat
		if err := json.Unmarshal(v, &stat); err != nil {
			stale = append(stale, k)
			return nil
		}
		if stat.LastAccessed.Before(cutoff) {
			stale = append(stale, k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range stale {
		if err := t.coll.Remove(k); err != nil {
			return 0, err
		}
	}
	if len(stale) > 0 {
		logger.Info("access_stats_pruned", "removed", len(stale), "cutoff", cutoff.Format(time.RFC3339))
	}
	return len(stale), nil
}

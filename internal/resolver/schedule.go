package resolver

import (
	"context"
	"strings"

	"slunch/internal/parser"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/upstream"
)

// Schedules resolves the academic calendar of a day (YYYYMMDD) or a month
// (YYYYMM). Results, including empty ones, are cached under the query key.
func (r *Resolver) Schedules(ctx context.Context, region, school, date string) ([]models.ScheduleRecord, error) {
	if err := validateEntity(region, school); err != nil {
		return nil, err
	}
	var keyDate string
	var err error
	if isMonth(date) {
		keyDate, err = parser.NormalizeMonth(date)
	} else {
		keyDate, err = parser.NormalizeDate(date)
	}
	if err != nil {
		return nil, err
	}
	key := store.CacheKey(region, school, keyDate)

	var cached models.ScheduleCache
	err = r.schedules.GetJSON(key, &cached)
	if err == nil {
		r.metrics.Cache("schedule", "hit")
		if cached.Schedules == nil {
			cached.Schedules = []models.ScheduleRecord{}
		}
		return cached.Schedules, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	r.metrics.Cache("schedule", "miss")

	var rows []upstream.ScheduleRow
	_, err = r.query.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = r.schedSrc.Schedules(ctx, region, school, strings.ReplaceAll(keyDate, "-", ""))
		return err
	})
	if err != nil {
		return nil, err
	}

	schedules := parser.Schedules(rows)
	err = r.schedules.PutJSON(key, models.ScheduleCache{
		Schedules:  schedules,
		SchoolCode: school,
		RegionCode: region,
		DateKey:    keyDate,
	})
	if err != nil {
		logger.Error("schedule_cache_write_failed", "key", key, "error", err)
	}
	return schedules, nil
}

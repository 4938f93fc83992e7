// Package resolver answers meal, schedule and school queries from the store,
// falling back to the upstream provider on a miss and to a recent cached day
// when the provider is unreachable.
package resolver

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"slunch/internal/parser"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/telemetry"
	"slunch/pkg/timeutil"
	"slunch/pkg/upstream"
)

const lunch = "중식"

// AccessRecorder is told about every successful meal resolution.
type AccessRecorder interface {
	RecordAccess(region, school string) error
}

type Query struct {
	Region string
	School string
	// Date is YYYYMMDD (or YYYY-MM-DD) for one day, YYYYMM for a month.
	Date string
}

// Options only shape the returned view. The stored record is always complete.
type Options struct {
	ShowAllergy   bool
	ShowOrigin    bool
	ShowNutrition bool
}

type Deps struct {
	Store     *store.Store
	Meals     upstream.MealSource
	Schedules upstream.ScheduleSource
	Schools   upstream.SchoolSource
	Tracker   AccessRecorder
	Metrics   *telemetry.Metrics

	QueryPolicy Policy
	WarmPolicy  Policy
}

type Resolver struct {
	meals      *store.Collection
	schedules  *store.Collection
	schools    *store.Collection
	schoolInfo *store.Collection

	mealSrc   upstream.MealSource
	schedSrc  upstream.ScheduleSource
	schoolSrc upstream.SchoolSource
	tracker   AccessRecorder
	metrics   *telemetry.Metrics

	query Policy
	warm  Policy
}

func New(d Deps) *Resolver {
	return &Resolver{
		meals:      d.Store.Collection(store.CollMeal),
		schedules:  d.Store.Collection(store.CollSchedule),
		schools:    d.Store.Collection(store.CollSchool),
		schoolInfo: d.Store.Collection(store.CollSchoolInfo),
		mealSrc:    d.Meals,
		schedSrc:   d.Schedules,
		schoolSrc:  d.Schools,
		tracker:    d.Tracker,
		metrics:    d.Metrics,
		query:      d.QueryPolicy,
		warm:       d.WarmPolicy,
	}
}

func validateEntity(region, school string) error {
	if strings.TrimSpace(school) == "" {
		return apperr.Validation(apperr.MsgSchoolCodeRequired)
	}
	if strings.TrimSpace(region) == "" {
		return apperr.Validation(apperr.MsgRegionCodeRequired)
	}
	return nil
}

func isMonth(date string) bool {
	d := strings.ReplaceAll(strings.TrimSpace(date), "-", "")
	return len(d) == 6
}

// Meals resolves a day or a month of meals and projects them for the caller.
func (r *Resolver) Meals(ctx context.Context, q Query, opts Options) ([]models.MealView, error) {
	if err := validateEntity(q.Region, q.School); err != nil {
		return nil, err
	}
	var (
		recs []models.MealRecord
		err  error
	)
	if isMonth(q.Date) {
		recs, err = r.month(ctx, q.Region, q.School, q.Date)
	} else {
		recs, err = r.day(ctx, q.Region, q.School, q.Date, true)
	}
	if err != nil {
		return nil, err
	}
	return ProjectAll(recs, opts), nil
}

// Records returns the full records of one day for internal consumers. Reads
// through this path are not counted as accesses.
func (r *Resolver) Records(ctx context.Context, region, school, date string) ([]models.MealRecord, error) {
	if err := validateEntity(region, school); err != nil {
		return nil, err
	}
	return r.day(ctx, region, school, date, false)
}

func (r *Resolver) track(region, school string) {
	if r.tracker == nil {
		return
	}
	if err := r.tracker.RecordAccess(region, school); err != nil {
		logger.Warn("access_record_failed", "region", region, "school", school, "error", err)
	}
}

func (r *Resolver) day(ctx context.Context, region, school, date string, track bool) ([]models.MealRecord, error) {
	date, err := parser.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	key := store.CacheKey(region, school, date)

	var rec models.MealRecord
	err = r.meals.GetJSON(key, &rec)
	if err == nil {
		r.metrics.Cache("meal", "hit")
		if track {
			r.track(region, school)
		}
		rec.Normalize()
		return []models.MealRecord{rec}, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}
	r.metrics.Cache("meal", "miss")
	logger.Debug("meal_cache_miss", "key", key)

	recs, err := r.fetchMeals(ctx, r.query, region, school, parser.Compact(date))
	if err != nil {
		if r.query.fallback(err) {
			if stale, ok := r.stale(region, school, date, r.query.FallbackDays); ok {
				r.metrics.Cache("meal", "stale")
				logger.Warn("meal_stale_fallback", "key", key, "served", stale.Date, "error", err)
				if track {
					r.track(region, school)
				}
				return []models.MealRecord{stale}, nil
			}
		}
		return nil, err
	}
	if track {
		r.track(region, school)
	}
	return recs, nil
}

func (r *Resolver) month(ctx context.Context, region, school, date string) ([]models.MealRecord, error) {
	month, err := parser.NormalizeMonth(date)
	if err != nil {
		return nil, err
	}
	prefix := store.MonthPrefix(region, school, month)

	var recs []models.MealRecord
	err = r.meals.Scan(prefix, func(k string, v []byte) error {
		var rec models.MealRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			logger.Warn("meal_decode_failed", "key", k, "error", err)
			return nil
		}
		rec.Normalize()
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		r.metrics.Cache("meal_month", "hit")
		sortByDate(recs)
		r.track(region, school)
		return recs, nil
	}

	// Nothing cached for the month: one upstream month fetch. Partially
	// cached months are never back-filled.
	r.metrics.Cache("meal_month", "miss")
	recs, err = r.fetchMeals(ctx, r.query, region, school, strings.ReplaceAll(month, "-", ""))
	if err != nil {
		return nil, err
	}
	sortByDate(recs)
	r.track(region, school)
	return recs, nil
}

// Warm fetches one day ahead of demand. It reports whether an upstream fetch
// happened; an already cached day is skipped. Accesses are not recorded.
func (r *Resolver) Warm(ctx context.Context, region, school, date string) (bool, error) {
	if err := validateEntity(region, school); err != nil {
		return false, err
	}
	date, err := parser.NormalizeDate(date)
	if err != nil {
		return false, err
	}
	ok, err := r.meals.Exists(store.CacheKey(region, school, date))
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if _, err := r.fetchMeals(ctx, r.warm, region, school, parser.Compact(date)); err != nil {
		return true, err
	}
	return true, nil
}

// Cached reports whether a day is in the cache.
func (r *Resolver) Cached(region, school, date string) (bool, error) {
	date, err := parser.NormalizeDate(date)
	if err != nil {
		return false, err
	}
	return r.meals.Exists(store.CacheKey(region, school, date))
}

// fetchMeals calls the provider under policy p, parses the rows and stores
// every day not yet cached. It returns what the cache holds afterwards, one
// record per day, so a miss answers the same as the hit that follows it.
func (r *Resolver) fetchMeals(ctx context.Context, p Policy, region, school, date string) ([]models.MealRecord, error) {
	var rows []upstream.MealRow
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		rows, err = r.mealSrc.Meals(ctx, region, school, date)
		return err
	})
	if err != nil {
		if attempts > 1 {
			logger.Warn("meal_fetch_retries_exhausted", "region", region, "school", school, "date", date, "attempts", attempts, "error", err)
		}
		return nil, err
	}
	recs := parser.Meals(rows, region, school)
	if len(recs) == 0 {
		return nil, apperr.NotFound(apperr.MsgNoData)
	}
	return r.persist(recs), nil
}

// persist stores one record per day, preferring lunch when the provider
// returns several services for the same day, and returns the record each day
// resolves to. Days already cached keep their stored record.
func (r *Resolver) persist(recs []models.MealRecord) []models.MealRecord {
	byKey := map[string]models.MealRecord{}
	var order []string
	for _, rec := range recs {
		key := store.CacheKey(rec.RegionCode, rec.SchoolCode, rec.Date)
		prev, seen := byKey[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || (prev.Type != lunch && rec.Type == lunch) {
			byKey[key] = rec
		}
	}

	out := make([]models.MealRecord, 0, len(order))
	for _, key := range order {
		rec := byKey[key]
		rec.Normalize()
		var stored models.MealRecord
		switch err := r.meals.GetJSON(key, &stored); {
		case err == nil:
			stored.Normalize()
			rec = stored
		case apperr.IsNotFound(err):
			if err := r.meals.PutJSON(key, rec); err != nil {
				logger.Error("meal_cache_write_failed", "key", key, "error", err)
			}
		default:
			logger.Error("meal_cache_read_failed", "key", key, "error", err)
		}
		out = append(out, rec)
	}
	return out
}

// stale returns the closest cached day strictly before date within the
// trailing window, with its type marked stale.
func (r *Resolver) stale(region, school, date string, days int) (models.MealRecord, bool) {
	d, err := time.Parse(timeutil.DateLayout, date)
	if err != nil {
		return models.MealRecord{}, false
	}
	from := timeutil.Date(d.AddDate(0, 0, -days))
	start := store.CacheKey(region, school, from)
	end := store.CacheKey(region, school, date)

	var (
		found models.MealRecord
		ok    bool
	)
	err = r.meals.Range(start, end, func(k string, v []byte) error {
		var rec models.MealRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return nil
		}
		found, ok = rec, true
		return nil
	})
	if err != nil || !ok {
		return models.MealRecord{}, false
	}
	found.Normalize()
	found.Type += models.StaleSuffix
	return found, true
}

func sortByDate(recs []models.MealRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })
}

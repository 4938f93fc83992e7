// Package dispatch sends the scheduled push notifications. Every minute the
// subscriptions registered for that minute are scanned and delivered.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"slunch/internal/subscription"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/push"
	"slunch/pkg/state/logger"
	"slunch/pkg/telemetry"
	"slunch/pkg/timeutil"
	"slunch/pkg/upstream"
)

const (
	mealTitle      = "🍴 오늘의 급식"
	timetableTitle = "📚 오늘의 시간표"
	bodySep        = " / "
)

// MealReader resolves the full records of one day without counting it as an
// access.
type MealReader interface {
	Records(ctx context.Context, region, school, date string) ([]models.MealRecord, error)
}

type Deps struct {
	Subs      *subscription.Store
	Meals     MealReader
	Timetable upstream.TimetableSource
	Sender    push.Sender
	Metrics   *telemetry.Metrics
}

// Report counts the outcomes of one tick across all passes.
type Report struct {
	Minute    string `json:"minute"`
	Delivered int    `json:"delivered"`
	Pruned    int    `json:"pruned"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type Dispatcher struct {
	d Deps

	running sync.Mutex
	mu      sync.Mutex
	last    string
}

func New(d Deps) *Dispatcher {
	return &Dispatcher{d: d}
}

// Tick dispatches the current minute.
func (d *Dispatcher) Tick(ctx context.Context) (Report, error) {
	return d.RunAt(ctx, timeutil.Now())
}

// RunAt dispatches the minute containing t. A minute already dispatched, or a
// tick arriving while another is still running, is a no-op.
func (d *Dispatcher) RunAt(ctx context.Context, t time.Time) (Report, error) {
	t = t.In(timeutil.Location())
	minute := t.Format("2006-01-02T15:04")
	rep := Report{Minute: minute}

	if !d.running.TryLock() {
		logger.Debug("dispatch_tick_overlap", "minute", minute)
		return rep, nil
	}
	defer d.running.Unlock()

	d.mu.Lock()
	if d.last == minute {
		d.mu.Unlock()
		return rep, nil
	}
	d.last = minute
	d.mu.Unlock()

	hhmm := timeutil.Clock(t)
	date := timeutil.Date(t)

	menus := newMenuCache(d.d.Meals, date)
	d.mealPass(ctx, hhmm, menus, &rep)
	d.keywordPass(ctx, hhmm, menus, &rep)
	d.timetablePass(ctx, hhmm, t.Weekday(), &rep)

	if rep.Delivered+rep.Failed+rep.Pruned > 0 {
		logger.Info("dispatch_tick_done", "minute", minute, "delivered", rep.Delivered, "pruned", rep.Pruned, "failed", rep.Failed, "skipped", rep.Skipped)
	}
	return rep, ctx.Err()
}

// deliver sends one notification. An invalid token removes the subscription
// through remove; every other error is logged and counted.
func (d *Dispatcher) deliver(ctx context.Context, pass, token, title, body string, remove func(string) error, rep *Report) {
	err := d.d.Sender.Send(ctx, token, title, body)
	switch {
	case err == nil:
		rep.Delivered++
		d.d.Metrics.Delivery(pass, "delivered")
	case apperr.IsInvalidToken(err):
		rep.Pruned++
		d.d.Metrics.Delivery(pass, "pruned")
		if rerr := remove(token); rerr != nil && !apperr.IsNotFound(rerr) {
			logger.Error("dispatch_prune_failed", "pass", pass, "token", logger.MaskToken(token), "error", rerr)
			return
		}
		logger.Info("dispatch_token_pruned", "pass", pass, "token", logger.MaskToken(token))
	default:
		rep.Failed++
		d.d.Metrics.Delivery(pass, "failed")
		logger.Warn("dispatch_send_failed", "pass", pass, "token", logger.MaskToken(token), "error", err)
	}
}

func (d *Dispatcher) mealPass(ctx context.Context, hhmm string, menus *menuCache, rep *Report) {
	subs, err := d.d.Subs.Meal.ListAt(hhmm)
	if err != nil {
		logger.Error("dispatch_list_failed", "pass", "meal", "error", err)
		return
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		rec, ok := menus.get(ctx, sub.RegionCode, sub.SchoolCode)
		if !ok {
			rep.Skipped++
			d.d.Metrics.Delivery("meal", "skipped")
			continue
		}
		title, body := MealMessage(rec)
		d.deliver(ctx, "meal", sub.Token, title, body, d.d.Subs.Meal.Delete, rep)
	}
}

func (d *Dispatcher) keywordPass(ctx context.Context, hhmm string, menus *menuCache, rep *Report) {
	subs, err := d.d.Subs.Keyword.ListAt(hhmm)
	if err != nil {
		logger.Error("dispatch_list_failed", "pass", "keyword", "error", err)
		return
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		rec, ok := menus.get(ctx, sub.RegionCode, sub.SchoolCode)
		if !ok {
			rep.Skipped++
			d.d.Metrics.Delivery("keyword", "skipped")
			continue
		}
		text := strings.Join(rec.FoodNames(), bodySep)
		matched := MatchKeywords(text, sub.Keywords)
		if len(matched) == 0 {
			rep.Skipped++
			d.d.Metrics.Delivery("keyword", "skipped")
			continue
		}
		title := fmt.Sprintf("🔔 오늘 급식에 %s 나와요!", strings.Join(matched, ", "))
		d.deliver(ctx, "keyword", sub.Token, title, text, d.d.Subs.Keyword.Delete, rep)
	}
}

func (d *Dispatcher) timetablePass(ctx context.Context, hhmm string, wd time.Weekday, rep *Report) {
	if wd == time.Saturday || wd == time.Sunday {
		return
	}
	if d.d.Timetable == nil {
		return
	}
	subs, err := d.d.Subs.Timetable.ListAt(hhmm)
	if err != nil {
		logger.Error("dispatch_list_failed", "pass", "timetable", "error", err)
		return
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		periods, err := d.d.Timetable.Day(ctx, upstream.TimetableQuery{
			SchoolCode: sub.SchoolCode,
			Grade:      sub.Grade,
			Class:      sub.Class,
			Weekday:    wd,
		})
		if err != nil {
			rep.Skipped++
			d.d.Metrics.Delivery("timetable", "skipped")
			logger.Warn("dispatch_timetable_unavailable", "school", sub.SchoolCode, "grade", sub.Grade, "class", sub.Class, "error", err)
			continue
		}
		body, ok := TimetableBody(periods)
		if !ok {
			rep.Skipped++
			d.d.Metrics.Delivery("timetable", "skipped")
			continue
		}
		d.deliver(ctx, "timetable", sub.Token, timetableTitle, body, d.d.Subs.Timetable.Delete, rep)
	}
}

// MealMessage renders the meal notification of one record.
func MealMessage(rec models.MealRecord) (string, string) {
	title := mealTitle
	if rec.Type != "" {
		title += " (" + rec.Type + ")"
	}
	return title, strings.Join(rec.FoodNames(), bodySep)
}

// MatchKeywords returns the terms found in text, case-insensitively, in the
// subscriber's order.
func MatchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			out = append(out, k)
		}
	}
	return out
}

// TimetableBody summarises the non-empty periods of a day. It reports false
// when there are none.
func TimetableBody(periods []models.Period) (string, bool) {
	subjects := make([]string, 0, len(periods))
	for _, p := range periods {
		s := strings.TrimSpace(p.Subject)
		if s == "" {
			continue
		}
		subjects = append(subjects, s)
	}
	if len(subjects) == 0 {
		return "", false
	}
	return fmt.Sprintf("%d교시: %s", len(subjects), strings.Join(subjects, ", ")), true
}

// menuCache resolves each school's menu once per tick. The meal and keyword
// passes share it.
type menuCache struct {
	src  MealReader
	date string
	recs map[models.Entity]*models.MealRecord
}

func newMenuCache(src MealReader, date string) *menuCache {
	return &menuCache{src: src, date: date, recs: map[models.Entity]*models.MealRecord{}}
}

func (m *menuCache) get(ctx context.Context, region, school string) (models.MealRecord, bool) {
	e := models.Entity{RegionCode: region, SchoolCode: school}
	if rec, ok := m.recs[e]; ok {
		if rec == nil {
			return models.MealRecord{}, false
		}
		return *rec, true
	}
	recs, err := m.src.Records(ctx, region, school, m.date)
	if err != nil || len(recs) == 0 {
		if err != nil && !apperr.IsNotFound(err) {
			logger.Warn("dispatch_meal_unavailable", "region", region, "school", school, "date", m.date, "error", err)
		}
		m.recs[e] = nil
		return models.MealRecord{}, false
	}
	rec := pickLunch(recs)
	// a stale record is another day's menu
	if len(rec.FoodNames()) == 0 || rec.IsStale() {
		m.recs[e] = nil
		return models.MealRecord{}, false
	}
	m.recs[e] = &rec
	return rec, true
}

func pickLunch(recs []models.MealRecord) models.MealRecord {
	for _, r := range recs {
		if strings.HasPrefix(r.Type, "중식") {
			return r
		}
	}
	return recs[0]
}

package api

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fasthttp"

	"slunch/internal/access"
	"slunch/internal/notice"
	"slunch/internal/precache"
	"slunch/internal/resolver"
	"slunch/internal/subscription"
	"slunch/pkg/api/auth"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/schedule"
	"slunch/pkg/store"
	"slunch/pkg/upstream"
)

const adminKey = "s3cret"

type fakeMeals struct {
	mu    sync.Mutex
	calls []string
	rows  map[string][]upstream.MealRow
}

func (f *fakeMeals) Meals(_ context.Context, region, school, date string) ([]upstream.MealRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, date)
	rows, ok := f.rows[date]
	if !ok {
		return nil, apperr.NotFound(apperr.MsgNoData)
	}
	return rows, nil
}

type noSchedules struct{}

func (noSchedules) Schedules(context.Context, string, string, string) ([]upstream.ScheduleRow, error) {
	return nil, apperr.NotFound(apperr.MsgNoData)
}

type noSchools struct{}

func (noSchools) Schools(context.Context, string) ([]upstream.SchoolRow, error) {
	return nil, apperr.NotFound(apperr.MsgSchoolNotFound)
}

type fakeTimetable struct {
	upstream.TimetableSource
	got upstream.TimetableQuery
}

func (f *fakeTimetable) Day(_ context.Context, q upstream.TimetableQuery) ([]models.Period, error) {
	f.got = q
	return []models.Period{{Subject: "국어", Teacher: "홍길*"}}, nil
}

type fixture struct {
	store *store.Store
	meals *fakeMeals
	tt    *fakeTimetable
	jobs  *schedule.Scheduler
	api   *API
	h     fasthttp.RequestHandler
}

func newFixture(t *testing.T, gw auth.Config) *fixture {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{store: s, meals: &fakeMeals{rows: map[string][]upstream.MealRow{}}, tt: &fakeTimetable{}}
	tracker := access.New(s, access.Options{MinCount: 1})
	res := resolver.New(resolver.Deps{
		Store:       s,
		Meals:       f.meals,
		Schedules:   noSchedules{},
		Schools:     noSchools{},
		Tracker:     tracker,
		QueryPolicy: resolver.QueryPolicy(time.Second),
		WarmPolicy:  resolver.WarmPolicy(time.Second),
	})
	subs := subscription.New(s)
	pre := precache.New(precache.Deps{Warmer: res, Ranker: tracker, Subs: subs}, precache.Options{Delay: -1})

	f.jobs = schedule.New(nil)
	if err := f.jobs.Add(schedule.Job{Name: "noop", Cron: "0 0 1 1 *", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("add job: %v", err)
	}

	if gw.AdminKey == "" {
		gw.AdminKey = adminKey
	}
	gateway := auth.NewGateway(gw, nil)
	t.Cleanup(gateway.Close)

	f.api = New(Deps{
		Store:     s,
		Resolver:  res,
		Timetable: f.tt,
		Subs:      subs,
		Notices:   notice.New(s),
		Access:    tracker,
		Precache:  pre,
		Jobs:      f.jobs,
		Gateway:   gateway,
	})
	f.h = f.api.Handler(nil)
	return f
}

type request struct {
	method string
	uri    string
	body   string
	token  string
	ip     string
}

func (f *fixture) do(t *testing.T, r request) (int, []byte) {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(r.method)
	req.SetRequestURI(r.uri)
	if r.body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(r.body)
	}
	if r.token != "" {
		req.Header.Set(auth.AdminHeader, r.token)
	}
	ip := r.ip
	if ip == "" {
		ip = "10.0.0.1"
	}
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP(ip), Port: 4000}, nil)
	f.h(&ctx)
	return ctx.Response.StatusCode(), append([]byte(nil), ctx.Response.Body()...)
}

func message(t *testing.T, body []byte) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return m.Message
}

func TestMealEndpoint(t *testing.T) {
	f := newFixture(t, auth.Config{})
	f.meals.rows["20250310"] = []upstream.MealRow{{
		RegionCode: "B10", SchoolCode: "7010569", MealType: "중식", Date: "20250310",
		Dishes: "현미밥<br/>미역국 (5.6)", Calorie: "812.3 Kcal",
	}}

	code, body := f.do(t, request{method: "GET", uri: "/neis/meal?schoolCode=7010569&regionCode=B10&year=2025&month=3&day=10"})
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", code, body)
	}
	var got []map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []map[string]any{{
		"date":    "2025-03-10",
		"meal":    []any{"현미밥", "미역국"},
		"type":    "중식",
		"calorie": "812.3",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("meal view mismatch (-want +got):\n%s", diff)
	}

	// second call is served from the cache
	if code, _ := f.do(t, request{method: "GET", uri: "/neis/meal?schoolCode=7010569&regionCode=B10&year=2025&month=03&day=10"}); code != fasthttp.StatusOK {
		t.Fatalf("cached status = %d", code)
	}
	if diff := cmp.Diff([]string{"20250310"}, f.meals.calls); diff != "" {
		t.Fatalf("upstream calls (-want +got):\n%s", diff)
	}
}

func TestMealEndpointErrors(t *testing.T) {
	f := newFixture(t, auth.Config{})
	tests := []struct {
		name string
		uri  string
		code int
		msg  string
	}{
		{"school missing", "/neis/meal?regionCode=B10&year=2025&month=3", 400, apperr.MsgSchoolCodeRequired},
		{"region missing", "/neis/meal?schoolCode=1&year=2025&month=3", 400, apperr.MsgRegionCodeRequired},
		{"year missing", "/neis/meal?schoolCode=1&regionCode=B10&month=3", 400, apperr.MsgYearRequired},
		{"month missing", "/neis/meal?schoolCode=1&regionCode=B10&year=2025", 400, apperr.MsgMonthRequired},
		{"no data", "/neis/meal?schoolCode=1&regionCode=B10&year=2025&month=3&day=9", 404, apperr.MsgNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, request{method: "GET", uri: tt.uri})
			if code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", code, tt.code, body)
			}
			if got := message(t, body); got != tt.msg {
				t.Fatalf("message = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestMonthQueryPassesMonthUpstream(t *testing.T) {
	f := newFixture(t, auth.Config{})
	f.meals.rows["202504"] = []upstream.MealRow{
		{MealType: "중식", Date: "20250402", Dishes: "b"},
		{MealType: "중식", Date: "20250401", Dishes: "a"},
	}
	code, body := f.do(t, request{method: "GET", uri: "/neis/meal?schoolCode=S&regionCode=R&year=2025&month=4"})
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d body=%s", code, body)
	}
	var got []struct {
		Date string `json:"date"`
	}
	_ = json.Unmarshal(body, &got)
	if len(got) != 2 || got[0].Date != "2025-04-01" || got[1].Date != "2025-04-02" {
		t.Fatalf("month = %s", body)
	}
}

func TestSubscriptionCRUD(t *testing.T) {
	f := newFixture(t, auth.Config{})
	sub := `{"token":"T1","time":"7:00","schoolCode":"S","regionCode":"R"}`

	code, body := f.do(t, request{method: "POST", uri: "/fcm/meal", body: sub})
	if code != fasthttp.StatusOK {
		t.Fatalf("create = %d %s", code, body)
	}
	var created models.MealSubscription
	_ = json.Unmarshal(body, &created)
	if created.Time != "07:00" {
		t.Fatalf("time not normalized: %q", created.Time)
	}

	steps := []struct {
		name string
		req  request
		code int
		msg  string
	}{
		{"duplicate create", request{method: "POST", uri: "/fcm/meal", body: sub}, 409, apperr.MsgTokenAlreadyExists},
		{"get", request{method: "GET", uri: "/fcm/meal?token=T1"}, 200, ""},
		{"get without token", request{method: "GET", uri: "/fcm/meal"}, 400, apperr.MsgTokenRequired},
		{"bad hour", request{method: "PUT", uri: "/fcm/meal", body: `{"token":"T1","time":"24:00","schoolCode":"S","regionCode":"R"}`}, 400, apperr.MsgInvalidTimeHour},
		{"update unknown", request{method: "PUT", uri: "/fcm/meal", body: `{"token":"T9","time":"08:00","schoolCode":"S","regionCode":"R"}`}, 404, apperr.MsgTokenNotFound},
		{"update", request{method: "PUT", uri: "/fcm/meal", body: `{"token":"T1","time":"08:30","schoolCode":"S","regionCode":"R"}`}, 200, ""},
		{"malformed body", request{method: "POST", uri: "/fcm/meal", body: `{"token":`}, 400, apperr.MsgInvalidBody},
		{"delete", request{method: "DELETE", uri: "/fcm/meal", body: `{"token":"T1"}`}, 200, msgTokenDeleted},
		{"get deleted", request{method: "GET", uri: "/fcm/meal?token=T1"}, 404, apperr.MsgTokenNotFound},
		{"delete again", request{method: "DELETE", uri: "/fcm/meal?token=T1"}, 404, apperr.MsgTokenNotFound},
	}
	for _, s := range steps {
		code, body := f.do(t, s.req)
		if code != s.code {
			t.Fatalf("%s: status = %d, want %d (%s)", s.name, code, s.code, body)
		}
		if s.msg != "" {
			if got := message(t, body); got != s.msg {
				t.Fatalf("%s: message = %q, want %q", s.name, got, s.msg)
			}
		}
	}
}

func TestKeywordSubscriptionNeedsKeywords(t *testing.T) {
	f := newFixture(t, auth.Config{})
	code, body := f.do(t, request{method: "POST", uri: "/fcm/keyword", body: `{"token":"K","time":"12:00","schoolCode":"S","regionCode":"R","keywords":[" "]}`})
	if code != fasthttp.StatusBadRequest || message(t, body) != apperr.MsgKeywordsRequired {
		t.Fatalf("status = %d body=%s", code, body)
	}
	code, _ = f.do(t, request{method: "POST", uri: "/fcm/keyword", body: `{"token":"K","time":"12:00","schoolCode":"S","regionCode":"R","keywords":["pizza"]}`})
	if code != fasthttp.StatusOK {
		t.Fatalf("valid keyword subscription = %d", code)
	}
}

func TestNoticesRequireAdminKey(t *testing.T) {
	f := newFixture(t, auth.Config{})
	body := `{"title":"점검","content":"서버 점검","date":"2025-03-10"}`

	if code, b := f.do(t, request{method: "POST", uri: "/notifications", body: body}); code != 400 || message(t, b) != apperr.MsgTokenRequired {
		t.Fatalf("missing key: %d %s", code, b)
	}
	if code, b := f.do(t, request{method: "POST", uri: "/notifications", body: body, token: "nope"}); code != 403 || message(t, b) != apperr.MsgUnauthorized {
		t.Fatalf("wrong key: %d %s", code, b)
	}

	code, b := f.do(t, request{method: "POST", uri: "/notifications", body: body, token: adminKey})
	if code != 200 {
		t.Fatalf("create: %d %s", code, b)
	}
	var n models.Notice
	_ = json.Unmarshal(b, &n)
	if n.ID == "" {
		t.Fatalf("created notice has no id: %s", b)
	}

	code, b = f.do(t, request{method: "PUT", uri: "/notifications/" + n.ID, body: `{"title":"점검 완료","content":"끝","date":"2025-03-11"}`, token: adminKey})
	if code != 200 {
		t.Fatalf("update: %d %s", code, b)
	}

	code, b = f.do(t, request{method: "GET", uri: "/notifications"})
	if code != 200 {
		t.Fatalf("list: %d", code)
	}
	var list []models.Notice
	_ = json.Unmarshal(b, &list)
	want := []models.Notice{{ID: n.ID, Title: "점검 완료", Content: "끝", Date: "2025-03-11"}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}

	if code, _ := f.do(t, request{method: "DELETE", uri: "/notifications/missing", token: adminKey}); code != 404 {
		t.Fatalf("delete unknown = %d", code)
	}
	if code, _ := f.do(t, request{method: "DELETE", uri: "/notifications", token: adminKey}); code != 200 {
		t.Fatalf("clear = %d", code)
	}
	_, b = f.do(t, request{method: "GET", uri: "/notifications"})
	if strings.TrimSpace(string(b)) != "[]" {
		t.Fatalf("after clear = %s", b)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	f := newFixture(t, auth.Config{PerMinute: 2, Burst: 2})
	uri := "/notifications"
	for i := 0; i < 2; i++ {
		if code, _ := f.do(t, request{method: "GET", uri: uri}); code != 200 {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	code, b := f.do(t, request{method: "GET", uri: uri})
	if code != fasthttp.StatusTooManyRequests || message(t, b) != apperr.MsgTooManyRequests {
		t.Fatalf("third request = %d %s", code, b)
	}
	if code, _ := f.do(t, request{method: "GET", uri: uri, ip: "10.0.0.2"}); code != 200 {
		t.Fatalf("other client = %d", code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t, auth.Config{})
	f.meals.rows["20250310"] = []upstream.MealRow{{MealType: "중식", Date: "20250310", Dishes: "밥"}}
	f.do(t, request{method: "GET", uri: "/neis/meal?schoolCode=S&regionCode=R&year=2025&month=3&day=10"})

	code, b := f.do(t, request{method: "GET", uri: "/admin/popular-schools", token: adminKey})
	if code != 200 {
		t.Fatalf("popular = %d %s", code, b)
	}
	var pop popularSchoolsResponse
	_ = json.Unmarshal(b, &pop)
	wantPop := popularSchoolsResponse{
		StatsBasedSchools:    []popularSchool{{SchoolCode: "S", RegionCode: "R", RequestCount: 1}},
		AllPopularSchools:    []models.Entity{{SchoolCode: "S", RegionCode: "R"}},
		TotalStatsBasedCount: 1,
		TotalPopularCount:    1,
	}
	if diff := cmp.Diff(wantPop, pop); diff != "" {
		t.Fatalf("popular mismatch (-want +got):\n%s", diff)
	}

	if code, b := f.do(t, request{method: "POST", uri: "/admin/jobs/noop", token: adminKey}); code != 200 {
		t.Fatalf("trigger = %d %s", code, b)
	}
	if code, _ := f.do(t, request{method: "POST", uri: "/admin/jobs/missing", token: adminKey}); code != 404 {
		t.Fatalf("trigger unknown = %d", code)
	}
	code, b = f.do(t, request{method: "GET", uri: "/admin/jobs", token: adminKey})
	var status []schedule.Status
	_ = json.Unmarshal(b, &status)
	if code != 200 || len(status) != 1 || status[0].Name != "noop" || status[0].LastRun.IsZero() {
		t.Fatalf("jobs = %d %s", code, b)
	}

	code, b = f.do(t, request{method: "GET", uri: "/admin/stats", token: adminKey})
	var stats statsResponse
	_ = json.Unmarshal(b, &stats)
	if code != 200 || stats.Subscriptions["fcm_meal"] != 0 || len(stats.Collections) == 0 {
		t.Fatalf("stats = %d %s", code, b)
	}
}

func TestTimetableWeekdayValidation(t *testing.T) {
	f := newFixture(t, auth.Config{})
	code, b := f.do(t, request{method: "GET", uri: "/comcigan/timetable?schoolCode=41896&grade=1&class=3&weekday=2"})
	if code != 200 {
		t.Fatalf("day = %d %s", code, b)
	}
	if f.tt.got.Weekday != time.Tuesday || f.tt.got.Class != "3" {
		t.Fatalf("query = %+v", f.tt.got)
	}
	if code, b := f.do(t, request{method: "GET", uri: "/comcigan/timetable?schoolCode=41896&grade=1"}); code != 400 || message(t, b) != apperr.MsgClassRequired {
		t.Fatalf("missing class = %d %s", code, b)
	}
	if code, _ := f.do(t, request{method: "GET", uri: "/comcigan/timetable?schoolCode=41896&grade=1&class=3&weekday=6"}); code != 400 {
		t.Fatalf("saturday = %d", code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, auth.Config{})
	if code, b := f.do(t, request{method: "GET", uri: "/nope"}); code != 404 || message(t, b) != apperr.MsgNotFoundRoute {
		t.Fatalf("unknown route = %d %s", code, b)
	}
	if code, _ := f.do(t, request{method: "PATCH", uri: "/fcm/meal"}); code != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("wrong method = %d", code)
	}
	if code, _ := f.do(t, request{method: "GET", uri: "/fcm/meal/?token=x"}); code != 404 {
		t.Fatalf("trailing slash should route to the subscription handler, got %d", code)
	}
}

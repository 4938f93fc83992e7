package comcigan

import (
	"context"
	"net"
	"testing"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/upstream"

	"github.com/google/go-cmp/cmp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c := New(Config{BaseURL: "http://timetable.test/", Timeout: time.Second})
	c.SetDial(func(string) (net.Conn, error) { return ln.Dial() })
	return c
}

func TestDay(t *testing.T) {
	var weekday string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		weekday = string(ctx.QueryArgs().Peek("weekday"))
		ctx.SetBodyString(`[{"subject":"국어","teacher":"홍길*","changed":false},
			{"subject":"수학","teacher":"길홍*","changed":true,"originalSubject":"영어","originalTeacher":"김철*"}]`)
	})
	got, err := c.Day(context.Background(), upstream.TimetableQuery{SchoolCode: "41896", Grade: "1", Class: "3", Weekday: time.Tuesday})
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	want := []models.Period{
		{Subject: "국어", Teacher: "홍길*"},
		{Subject: "수학", Teacher: "길홍*", Changed: true, OriginalSubject: "영어", OriginalTeacher: "김철*"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Day mismatch (-want +got):\n%s", diff)
	}
	if weekday != "2" {
		t.Fatalf("weekday param = %q", weekday)
	}

	if _, err := c.Day(context.Background(), upstream.TimetableQuery{Weekday: time.Saturday}); !apperr.IsValidation(err) {
		t.Fatalf("weekend day should be rejected, got %v", err)
	}
}

func TestSearchDropsPlaceholder(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`[{"schoolName":"선린인터넷고","schoolCode":41896,"region":"서울"},{"schoolName":"없으면 추가 검색하세요","schoolCode":0,"region":""}]`)
	})
	got, err := c.SearchSchools(context.Background(), "선린")
	if err != nil {
		t.Fatalf("SearchSchools: %v", err)
	}
	if len(got) != 1 || got[0].SchoolCode != 41896 {
		t.Fatalf("unexpected schools %+v", got)
	}
}

func TestStatusMapping(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/classList":
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		default:
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		}
	})
	if _, err := c.ClassList(context.Background(), "1"); !apperr.IsNotFound(err) {
		t.Fatalf("want NotFound, got %v", err)
	}
	if _, err := c.Week(context.Background(), upstream.TimetableQuery{SchoolCode: "1", Grade: "1", Class: "1"}); !apperr.IsTransient(err) {
		t.Fatalf("want Transient, got %v", err)
	}
}

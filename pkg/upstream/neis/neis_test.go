package neis

import (
	"context"
	"net"
	"testing"
	"time"

	"slunch/pkg/apperr"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, pageSize int, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	c := New(Config{BaseURL: "http://neis.test/hub", APIKey: "k", Timeout: 500 * time.Millisecond, PageSize: pageSize})
	c.SetDial(func(string) (net.Conn, error) { return ln.Dial() })
	return c
}

const mealBody = `{"mealServiceDietInfo":[
 {"head":[{"list_total_count":1},{"RESULT":{"CODE":"INFO-000","MESSAGE":"정상 처리되었습니다."}}]},
 {"row":[{"ATPT_OFCDC_SC_CODE":"B10","SD_SCHUL_CODE":"7010569","MMEAL_SC_NM":"중식","MLSV_YMD":"20250310",
   "DDISH_NM":"기장밥<br/>돈까스 (1.5.6.10)","ORPLC_INFO":"쌀 : 국내산","CAL_INFO":"812.3 Kcal","NTR_INFO":"단백질(g) : 30.1"}]}
]}`

func TestMeals(t *testing.T) {
	var query string
	c := newTestClient(t, 100, func(ctx *fasthttp.RequestCtx) {
		query = string(ctx.QueryArgs().QueryString())
		if string(ctx.Path()) != "/hub/mealServiceDietInfo" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetBodyString(mealBody)
	})

	rows, err := c.Meals(context.Background(), "B10", "7010569", "20250310")
	if err != nil {
		t.Fatalf("Meals: %v", err)
	}
	if len(rows) != 1 || rows[0].MealType != "중식" || rows[0].Date != "20250310" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	args := fasthttp.Args{}
	args.Parse(query)
	for k, want := range map[string]string{"KEY": "k", "Type": "json", "MLSV_YMD": "20250310", "SD_SCHUL_CODE": "7010569", "pIndex": "1"} {
		if got := string(args.Peek(k)); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}
}

func TestNoDataIsNotFound(t *testing.T) {
	c := newTestClient(t, 100, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"RESULT":{"CODE":"INFO-200","MESSAGE":"해당하는 데이터가 없습니다."}}`)
	})
	_, err := c.Meals(context.Background(), "B10", "7010569", "20250315")
	if !apperr.IsNotFound(err) {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	c := newTestClient(t, 100, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})
	if _, err := c.Meals(context.Background(), "B10", "7010569", "20250310"); !apperr.IsTransient(err) {
		t.Fatalf("want Transient for 502, got %v", err)
	}

	slow := newTestClient(t, 100, func(ctx *fasthttp.RequestCtx) {
		time.Sleep(2 * time.Second)
	})
	if _, err := slow.Meals(context.Background(), "B10", "7010569", "20250310"); !apperr.IsTransient(err) {
		t.Fatalf("want Transient for timeout, got %v", err)
	}
}

func TestSchoolsPaginates(t *testing.T) {
	pages := 0
	c := newTestClient(t, 2, func(ctx *fasthttp.RequestCtx) {
		pages++
		switch string(ctx.QueryArgs().Peek("pIndex")) {
		case "1":
			ctx.SetBodyString(`{"schoolInfo":[{"head":[{"list_total_count":3},{"RESULT":{"CODE":"INFO-000"}}]},
				{"row":[{"SCHUL_NM":"가"},{"SCHUL_NM":"나"}]}]}`)
		default:
			ctx.SetBodyString(`{"schoolInfo":[{"head":[{"list_total_count":3},{"RESULT":{"CODE":"INFO-000"}}]},
				{"row":[{"SCHUL_NM":"다"}]}]}`)
		}
	})
	rows, err := c.Schools(context.Background(), "선린")
	if err != nil {
		t.Fatalf("Schools: %v", err)
	}
	if len(rows) != 3 || pages != 2 {
		t.Fatalf("got %d rows over %d pages", len(rows), pages)
	}
}

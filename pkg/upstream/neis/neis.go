// Package neis is a client for the NEIS open data hub: meals, academic
// schedules and school search.
package neis

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/state/logger"
	"slunch/pkg/upstream"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

const (
	DefaultBaseURL  = "https://open.neis.go.kr/hub/"
	defaultTimeout  = 10 * time.Second
	defaultPageSize = 100
	maxPages        = 10

	mealEndpoint     = "mealServiceDietInfo"
	scheduleEndpoint = "SchoolSchedule"
	schoolEndpoint   = "schoolInfo"

	codeOK     = "INFO-000"
	codeNoData = "INFO-200"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	PageSize int
}

type Client struct {
	http     *fasthttp.Client
	base     string
	key      string
	timeout  time.Duration
	pageSize int
	// CallHook observes every request; used for metrics.
	CallHook func(endpoint string, d time.Duration, err error)
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "slunch",
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
		},
		base:     cfg.BaseURL,
		key:      cfg.APIKey,
		timeout:  cfg.Timeout,
		pageSize: cfg.PageSize,
	}
}

// SetDial replaces the dialer. Tests point it at an in-memory listener.
func (c *Client) SetDial(dial func(addr string) (net.Conn, error)) {
	c.http.Dial = dial
}

func (c *Client) Meals(ctx context.Context, region, school, date string) ([]upstream.MealRow, error) {
	var rows []upstream.MealRow
	err := c.fetch(ctx, mealEndpoint, map[string]string{
		"ATPT_OFCDC_SC_CODE": region,
		"SD_SCHUL_CODE":      school,
		"MLSV_YMD":           date,
	}, func(raw json.RawMessage) error {
		var page []upstream.MealRow
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		rows = append(rows, page...)
		return nil
	})
	return rows, err
}

// Schedules takes a day (YYYYMMDD) or a month (YYYYMM).
func (c *Client) Schedules(ctx context.Context, region, school, date string) ([]upstream.ScheduleRow, error) {
	params := map[string]string{
		"ATPT_OFCDC_SC_CODE": region,
		"SD_SCHUL_CODE":      school,
	}
	if len(date) == 6 {
		params["AA_FROM_YMD"] = date + "01"
		params["AA_TO_YMD"] = date + "31"
	} else {
		params["AA_YMD"] = date
	}
	var rows []upstream.ScheduleRow
	err := c.fetch(ctx, scheduleEndpoint, params, func(raw json.RawMessage) error {
		var page []upstream.ScheduleRow
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		rows = append(rows, page...)
		return nil
	})
	return rows, err
}

func (c *Client) Schools(ctx context.Context, name string) ([]upstream.SchoolRow, error) {
	var rows []upstream.SchoolRow
	err := c.fetch(ctx, schoolEndpoint, map[string]string{"SCHUL_NM": name}, func(raw json.RawMessage) error {
		var page []upstream.SchoolRow
		if err := json.Unmarshal(raw, &page); err != nil {
			return err
		}
		rows = append(rows, page...)
		return nil
	})
	return rows, err
}

type result struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

type head struct {
	Total  int     `json:"list_total_count"`
	Result *result `json:"RESULT"`
}

// fetch pages through endpoint until every row announced by the head was
// read, handing each page of raw rows to add.
func (c *Client) fetch(ctx context.Context, endpoint string, params map[string]string, add func(json.RawMessage) error) error {
	start := time.Now()
	read := 0
	for page := 1; page <= maxPages; page++ {
		total, n, err := c.page(ctx, endpoint, params, page, add)
		if err != nil {
			c.observe(endpoint, start, err)
			return err
		}
		read += n
		if n < c.pageSize || read >= total {
			break
		}
	}
	c.observe(endpoint, start, nil)
	return nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	d := time.Since(start)
	if c.CallHook != nil {
		c.CallHook(endpoint, d, err)
	}
	if err != nil && !apperr.IsNotFound(err) {
		logger.Warn("neis_call_failed", "endpoint", endpoint, "duration", d, "error", err)
		return
	}
	logger.Debug("neis_call", "endpoint", endpoint, "duration", d)
}

func (c *Client) page(ctx context.Context, endpoint string, params map[string]string, page int, add func(json.RawMessage) error) (total, n int, err error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	if c.key != "" {
		args.Add("KEY", c.key)
	}
	args.Add("Type", "json")
	args.Add("pIndex", strconv.Itoa(page))
	args.Add("pSize", strconv.Itoa(c.pageSize))
	for k, v := range params {
		args.Add(k, v)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(c.base + endpoint + "?" + args.String())
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.http.DoTimeout(req, resp, budget(ctx, c.timeout)); err != nil {
		return 0, 0, apperr.Transient(err, "neis "+endpoint)
	}
	if sc := resp.StatusCode(); sc != fasthttp.StatusOK {
		err := errors.Newf("neis %s: http status %d", endpoint, sc)
		if sc >= 500 || sc == fasthttp.StatusTooManyRequests {
			return 0, 0, apperr.Transient(err, "neis "+endpoint)
		}
		return 0, 0, err
	}
	return decode(endpoint, resp.Body(), add)
}

// decode understands both shapes the hub answers with:
//
//	{"RESULT":{"CODE":"INFO-200","MESSAGE":"..."}}
//	{"<endpoint>":[{"head":[{"list_total_count":n},{"RESULT":{...}}]},{"row":[...]}]}
func decode(endpoint string, body []byte, add func(json.RawMessage) error) (total, n int, err error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return 0, 0, errors.Wrapf(err, "neis %s: decode", endpoint)
	}
	if raw, ok := top["RESULT"]; ok {
		var r result
		if err := json.Unmarshal(raw, &r); err != nil {
			return 0, 0, errors.Wrapf(err, "neis %s: decode result", endpoint)
		}
		return 0, 0, resultErr(endpoint, r)
	}
	raw, ok := top[endpoint]
	if !ok {
		return 0, 0, errors.Newf("neis %s: unexpected response", endpoint)
	}

	var sections []struct {
		Head []head         `json:"head"`
		Row  json.RawMessage `json:"row"`
	}
	if err := json.Unmarshal(raw, &sections); err != nil {
		return 0, 0, errors.Wrapf(err, "neis %s: decode sections", endpoint)
	}
	var rows json.RawMessage
	for _, s := range sections {
		for _, h := range s.Head {
			if h.Total > 0 {
				total = h.Total
			}
			if h.Result != nil && h.Result.Code != codeOK {
				return 0, 0, resultErr(endpoint, *h.Result)
			}
		}
		if len(s.Row) > 0 {
			rows = s.Row
		}
	}
	if len(rows) == 0 {
		return total, 0, nil
	}
	var count []json.RawMessage
	if err := json.Unmarshal(rows, &count); err != nil {
		return 0, 0, errors.Wrapf(err, "neis %s: decode rows", endpoint)
	}
	if err := add(rows); err != nil {
		return 0, 0, errors.Wrapf(err, "neis %s: decode rows", endpoint)
	}
	return total, len(count), nil
}

func resultErr(endpoint string, r result) error {
	switch {
	case r.Code == codeNoData:
		return apperr.NotFound(apperr.MsgNoData)
	case strings.HasPrefix(r.Code, "ERROR-5"), strings.HasPrefix(r.Code, "ERROR-6"):
		return apperr.Transient(errors.Newf("%s %s", r.Code, r.Message), "neis "+endpoint)
	default:
		return errors.Newf("neis %s: %s %s", endpoint, r.Code, r.Message)
	}
}

func budget(ctx context.Context, timeout time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			if left <= 0 {
				return time.Millisecond
			}
			return left
		}
	}
	return timeout
}

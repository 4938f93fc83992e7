// Package comcigan talks to the timetable gateway, a small companion service
// that scrapes the comcigan timetable site and answers in JSON.
package comcigan

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/state/logger"
	"slunch/pkg/upstream"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	http    *fasthttp.Client
	base    string
	timeout time.Duration
	// CallHook observes every request; used for metrics.
	CallHook func(endpoint string, d time.Duration, err error)
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "slunch",
			MaxIdleConnDuration: 30 * time.Second,
		},
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
	}
}

func (c *Client) SetDial(dial func(addr string) (net.Conn, error)) {
	c.http.Dial = dial
}

func (c *Client) args(q upstream.TimetableQuery) map[string]string {
	p := map[string]string{
		"schoolCode": q.SchoolCode,
		"grade":      q.Grade,
		"class":      q.Class,
	}
	if q.Weekday >= time.Monday && q.Weekday <= time.Friday {
		p["weekday"] = strconv.Itoa(int(q.Weekday))
	}
	if q.NextWeek {
		p["nextweek"] = "true"
	}
	return p
}

// Day returns the periods of one weekday. Weekday must be Monday to Friday.
func (c *Client) Day(ctx context.Context, q upstream.TimetableQuery) ([]models.Period, error) {
	if q.Weekday < time.Monday || q.Weekday > time.Friday {
		return nil, apperr.Validation("weekday must be between 1 and 5")
	}
	var out []models.Period
	err := c.get(ctx, "timetable", c.args(q), apperr.MsgTimetableNotFound, &out)
	return out, err
}

func (c *Client) Week(ctx context.Context, q upstream.TimetableQuery) ([][]models.Period, error) {
	q.Weekday = 0
	var out [][]models.Period
	err := c.get(ctx, "timetable", c.args(q), apperr.MsgTimetableNotFound, &out)
	return out, err
}

func (c *Client) ClassList(ctx context.Context, schoolCode string) ([]models.GradeClasses, error) {
	var out []models.GradeClasses
	err := c.get(ctx, "classList", map[string]string{"schoolCode": schoolCode}, apperr.MsgSchoolNotFound, &out)
	return out, err
}

// SearchSchools drops the placeholder entry (code 0) the site appends to
// every result list.
func (c *Client) SearchSchools(ctx context.Context, name string) ([]models.TimetableSchool, error) {
	var raw []models.TimetableSchool
	if err := c.get(ctx, "search", map[string]string{"schoolName": name}, apperr.MsgSchoolNotFound, &raw); err != nil {
		return nil, err
	}
	out := make([]models.TimetableSchool, 0, len(raw))
	for _, s := range raw {
		if s.SchoolCode == 0 {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, notFound string, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.CallHook != nil {
			c.CallHook(endpoint, time.Since(start), err)
		}
		if err != nil && !apperr.IsNotFound(err) {
			logger.Warn("timetable_call_failed", "endpoint", endpoint, "error", err)
		}
	}()

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	for k, v := range params {
		args.Add(k, v)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(c.base + "/" + endpoint + "?" + args.String())
	req.Header.SetMethod(fasthttp.MethodGet)

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = max(time.Until(dl), time.Millisecond)
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return apperr.Transient(err, "timetable "+endpoint)
	}

	switch sc := resp.StatusCode(); {
	case sc == fasthttp.StatusOK:
	case sc == fasthttp.StatusNotFound:
		return apperr.NotFound(notFound)
	case sc >= 500:
		return apperr.Transient(errors.Newf("http status %d", sc), "timetable "+endpoint)
	default:
		return errors.Newf("timetable %s: http status %d", endpoint, sc)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrapf(err, "timetable %s: decode", endpoint)
	}
	return nil
}

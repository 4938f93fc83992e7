// Package api exposes the meal, timetable, subscription, announcement and
// admin endpoints over fasthttp.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"slunch/internal/access"
	"slunch/internal/notice"
	"slunch/internal/precache"
	"slunch/internal/resolver"
	"slunch/internal/subscription"
	"slunch/pkg/api/auth"
	"slunch/pkg/api/router"
	"slunch/pkg/apperr"
	"slunch/pkg/schedule"
	"slunch/pkg/store"
	"slunch/pkg/telemetry"
	"slunch/pkg/upstream"
)

// Deps are built once by the app. Timetable, Precache, Jobs and Gatherer
// may be nil; their routes then answer 503.
type Deps struct {
	Store     *store.Store
	Resolver  *resolver.Resolver
	Timetable upstream.TimetableSource
	Subs      *subscription.Store
	Notices   *notice.Board
	Access    *access.Tracker
	Precache  *precache.Scheduler
	Jobs      *schedule.Scheduler
	Gateway   *auth.Gateway
	Gatherer  prometheus.Gatherer
}

type API struct {
	d Deps
}

func New(d Deps) *API {
	if d.Gateway == nil {
		d.Gateway = auth.NewGateway(auth.Config{}, nil)
	}
	return &API{d: d}
}

var errUnavailable = apperr.Transient(apperr.ErrTransient, "component disabled")

// RegisterRoutes wires every endpoint onto r.
func (a *API) RegisterRoutes(r *router.Router) {
	admin := a.d.Gateway.RequireAdmin

	// meals, calendar and school search
	r.GET("/neis/meal", a.Meal)
	r.GET("/neis/schedule", a.Schedule)
	r.GET("/neis/search", a.SearchSchools)

	// timetable provider
	r.GET("/comcigan/timetable", a.Timetable)
	r.GET("/comcigan/classList", a.ClassList)
	r.GET("/comcigan/search", a.TimetableSearch)

	// push subscriptions
	registerSubscriptions(r, "/fcm/meal", a.d.Subs.Meal)
	registerSubscriptions(r, "/fcm/timetable", a.d.Subs.Timetable)
	registerSubscriptions(r, "/fcm/keyword", a.d.Subs.Keyword)

	// announcements
	r.GET("/notifications", a.ListNotices)
	r.POST("/notifications", admin(a.CreateNotice))
	r.DELETE("/notifications", admin(a.ClearNotices))
	r.PUT("/notifications/{id}", admin(a.UpdateNotice))
	r.DELETE("/notifications/{id}", admin(a.DeleteNotice))

	// admin
	r.GET("/admin/popular-schools", admin(a.PopularSchools))
	r.POST("/admin/force-preload", admin(a.ForcePreload))
	r.GET("/admin/jobs", admin(a.JobStatus))
	r.POST("/admin/jobs/{name}", admin(a.TriggerJob))
	r.GET("/admin/stats", admin(a.Stats))

	if a.d.Gatherer != nil {
		r.GET("/metrics", telemetry.Handler(a.d.Gatherer))
	}
}

// Handler returns the routed handler behind the gateway. extra registers
// routes owned by the caller, such as health checks.
func (a *API) Handler(extra func(r *router.Router)) fasthttp.RequestHandler {
	r := router.New()
	if extra != nil {
		extra(r)
	}
	a.RegisterRoutes(r)
	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, apperr.MsgNotFoundRoute)
	})
	return a.d.Gateway.Middleware(r.Handler)
}

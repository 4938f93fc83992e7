package api

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"slunch/internal/precache"
	"slunch/pkg/api/router"
	"slunch/pkg/models"
	"slunch/pkg/schedule"
	"slunch/pkg/state/logger"
)

type popularSchool struct {
	SchoolCode   string `json:"schoolCode"`
	RegionCode   string `json:"regionCode"`
	RequestCount int    `json:"requestCount"`
}

type popularSchoolsResponse struct {
	StatsBasedSchools    []popularSchool `json:"statsBasedSchools"`
	AllPopularSchools    []models.Entity `json:"allPopularSchools"`
	TotalStatsBasedCount int             `json:"totalStatsBasedCount"`
	TotalPopularCount    int             `json:"totalPopularCount"`
}

// PopularSchools lists the access ranking next to the full precache target
// list (ranking plus subscribed schools).
func (a *API) PopularSchools(ctx *fasthttp.RequestCtx) {
	ranked, err := a.d.Access.Rank(router.QueryInt(ctx, "limit", 20))
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	resp := popularSchoolsResponse{
		StatsBasedSchools: make([]popularSchool, 0, len(ranked)),
		AllPopularSchools: []models.Entity{},
	}
	for _, st := range ranked {
		resp.StatsBasedSchools = append(resp.StatsBasedSchools, popularSchool{
			SchoolCode:   st.SchoolCode,
			RegionCode:   st.RegionCode,
			RequestCount: st.Count,
		})
	}
	if a.d.Precache != nil {
		targets, err := a.d.Precache.Targets()
		if err != nil {
			router.WriteError(ctx, err)
			return
		}
		if targets != nil {
			resp.AllPopularSchools = targets
		}
	}
	resp.TotalStatsBasedCount = len(resp.StatsBasedSchools)
	resp.TotalPopularCount = len(resp.AllPopularSchools)
	router.WriteJSON(ctx, resp)
}

type forcePreloadResponse struct {
	Message        string          `json:"message"`
	SchoolsCount   int             `json:"schoolsCount"`
	PreloadedCount int             `json:"preloadedCount"`
	Report         precache.Report `json:"report"`
}

// ForcePreload runs the precache batch now and waits for it.
func (a *API) ForcePreload(ctx *fasthttp.RequestCtx) {
	if a.d.Precache == nil {
		router.WriteError(ctx, errUnavailable)
		return
	}
	logger.AuditEvent("force_preload_requested", "remote", ctx.RemoteAddr().String())
	rep, err := a.d.Precache.Run(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	// cached days count as preloaded
	n := rep.Fetched + rep.Skipped
	router.WriteJSON(ctx, forcePreloadResponse{
		Message:        fmt.Sprintf("인기 학교 선제적 캐싱이 완료되었습니다. (%d건 처리)", n),
		SchoolsCount:   rep.Targets,
		PreloadedCount: n,
		Report:         rep,
	})
}

func (a *API) JobStatus(ctx *fasthttp.RequestCtx) {
	if a.d.Jobs == nil {
		router.WriteJSON(ctx, []schedule.Status{})
		return
	}
	router.WriteJSON(ctx, a.d.Jobs.Status())
}

// TriggerJob runs a scheduled job now and answers when it finishes.
func (a *API) TriggerJob(ctx *fasthttp.RequestCtx) {
	if a.d.Jobs == nil {
		router.WriteError(ctx, errUnavailable)
		return
	}
	name := router.PathParam(ctx, "name")
	if err := a.d.Jobs.Trigger(ctx, name); err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, map[string]string{"message": "ok", "job": name})
}

type collectionStat struct {
	Name  string `json:"name"`
	Keys  int    `json:"keys"`
	Bytes int64  `json:"bytes"`
}

type statsResponse struct {
	Collections   []collectionStat `json:"collections"`
	DiskUsage     uint64           `json:"diskUsage"`
	Subscriptions map[string]int   `json:"subscriptions"`
}

// Stats reports per-collection key counts and the store's disk usage.
func (a *API) Stats(ctx *fasthttp.RequestCtx) {
	stats, err := a.d.Store.Stats()
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	resp := statsResponse{
		Collections:   make([]collectionStat, 0, len(stats)),
		DiskUsage:     a.d.Store.DiskUsage(),
		Subscriptions: map[string]int{},
	}
	for _, st := range stats {
		resp.Collections = append(resp.Collections, collectionStat(st))
	}
	for _, c := range []interface {
		Name() string
		Count() (int, error)
	}{a.d.Subs.Meal, a.d.Subs.Timetable, a.d.Subs.Keyword} {
		n, err := c.Count()
		if err != nil {
			router.WriteError(ctx, err)
			return
		}
		resp.Subscriptions[c.Name()] = n
	}
	router.WriteJSON(ctx, resp)
}

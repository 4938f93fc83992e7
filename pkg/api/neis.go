package api

import (
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"

	"slunch/internal/resolver"
	"slunch/pkg/api/router"
	"slunch/pkg/apperr"
)

// entityParams reads schoolCode and regionCode in the order their errors
// are reported.
func entityParams(ctx *fasthttp.RequestCtx) (school, region string, err error) {
	school = router.Query(ctx, "schoolCode")
	region = router.Query(ctx, "regionCode")
	switch {
	case school == "":
		err = apperr.Validation(apperr.MsgSchoolCodeRequired)
	case region == "":
		err = apperr.Validation(apperr.MsgRegionCodeRequired)
	}
	return school, region, err
}

// dateParam builds YYYYMM or YYYYMMDD from year, month and the optional day.
func dateParam(ctx *fasthttp.RequestCtx) (string, error) {
	year := router.Query(ctx, "year")
	month := router.Query(ctx, "month")
	day := router.Query(ctx, "day")
	if year == "" {
		return "", apperr.Validation(apperr.MsgYearRequired)
	}
	if month == "" {
		return "", apperr.Validation(apperr.MsgMonthRequired)
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return "", apperr.Validation("invalid year %q", year)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", apperr.Validation("invalid month %q", month)
	}
	if day == "" {
		return fmt.Sprintf("%04d%02d", y, m), nil
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", apperr.Validation("invalid day %q", day)
	}
	return fmt.Sprintf("%04d%02d%02d", y, m, d), nil
}

// Meal serves GET /neis/meal.
func (a *API) Meal(ctx *fasthttp.RequestCtx) {
	school, region, err := entityParams(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	date, err := dateParam(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	views, err := a.d.Resolver.Meals(ctx, resolver.Query{Region: region, School: school, Date: date}, resolver.Options{
		ShowAllergy:   router.QueryBool(ctx, "showAllergy", false),
		ShowOrigin:    router.QueryBool(ctx, "showOrigin", false),
		ShowNutrition: router.QueryBool(ctx, "showNutrition", false),
	})
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, views)
}

// Schedule serves GET /neis/schedule.
func (a *API) Schedule(ctx *fasthttp.RequestCtx) {
	school, region, err := entityParams(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	date, err := dateParam(ctx)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	recs, err := a.d.Resolver.Schedules(ctx, region, school, date)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, recs)
}

// SearchSchools serves GET /neis/search.
func (a *API) SearchSchools(ctx *fasthttp.RequestCtx) {
	schools, err := a.d.Resolver.SearchSchools(ctx, router.Query(ctx, "schoolName"))
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, schools)
}

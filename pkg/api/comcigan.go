package api

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"slunch/pkg/api/router"
	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/upstream"
)

// Timetable serves GET /comcigan/timetable. With weekday (1..5) it returns
// one day, otherwise the whole week.
func (a *API) Timetable(ctx *fasthttp.RequestCtx) {
	if a.d.Timetable == nil {
		router.WriteError(ctx, errUnavailable)
		return
	}
	q := upstream.TimetableQuery{
		SchoolCode: router.Query(ctx, "schoolCode"),
		Grade:      router.Query(ctx, "grade"),
		Class:      router.Query(ctx, "class"),
		NextWeek:   router.QueryBool(ctx, "nextweek", false),
	}
	switch {
	case q.SchoolCode == "":
		router.WriteError(ctx, apperr.Validation(apperr.MsgSchoolCodeRequired))
		return
	case q.Grade == "":
		router.WriteError(ctx, apperr.Validation(apperr.MsgGradeRequired))
		return
	case q.Class == "":
		router.WriteError(ctx, apperr.Validation(apperr.MsgClassRequired))
		return
	}

	if wd := router.Query(ctx, "weekday"); wd != "" {
		n, err := strconv.Atoi(wd)
		if err != nil || n < 1 || n > 5 {
			router.WriteError(ctx, apperr.Validation("weekday must be 1 to 5"))
			return
		}
		q.Weekday = time.Weekday(n)
		periods, err := a.d.Timetable.Day(ctx, q)
		if err != nil {
			router.WriteError(ctx, err)
			return
		}
		if periods == nil {
			periods = []models.Period{}
		}
		router.WriteJSON(ctx, periods)
		return
	}

	week, err := a.d.Timetable.Week(ctx, q)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	if week == nil {
		week = [][]models.Period{}
	}
	router.WriteJSON(ctx, week)
}

// ClassList serves GET /comcigan/classList.
func (a *API) ClassList(ctx *fasthttp.RequestCtx) {
	if a.d.Timetable == nil {
		router.WriteError(ctx, errUnavailable)
		return
	}
	school := router.Query(ctx, "schoolCode")
	if school == "" {
		router.WriteError(ctx, apperr.Validation(apperr.MsgSchoolCodeRequired))
		return
	}
	list, err := a.d.Timetable.ClassList(ctx, school)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	router.WriteJSON(ctx, list)
}

// TimetableSearch serves GET /comcigan/search.
func (a *API) TimetableSearch(ctx *fasthttp.RequestCtx) {
	if a.d.Timetable == nil {
		router.WriteError(ctx, errUnavailable)
		return
	}
	name := router.Query(ctx, "schoolName")
	if name == "" {
		router.WriteError(ctx, apperr.Validation(apperr.MsgSchoolNameRequired))
		return
	}
	schools, err := a.d.Timetable.SearchSchools(ctx, name)
	if err != nil {
		router.WriteError(ctx, err)
		return
	}
	if schools == nil {
		schools = []models.TimetableSchool{}
	}
	router.WriteJSON(ctx, schools)
}

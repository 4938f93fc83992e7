// Package upstream declares the contracts of the remote data providers and
// the raw rows they return. Concrete clients live in the sub-packages.
package upstream

import (
	"context"
	"time"

	"slunch/pkg/models"
)

// MealRow is one meal service row as published by the provider. Text fields
// are "<br/>" joined lists.
type MealRow struct {
	RegionCode string `json:"ATPT_OFCDC_SC_CODE"`
	SchoolCode string `json:"SD_SCHUL_CODE"`
	SchoolName string `json:"SCHUL_NM"`
	MealType   string `json:"MMEAL_SC_NM"`
	Date       string `json:"MLSV_YMD"`
	Dishes     string `json:"DDISH_NM"`
	Origin     string `json:"ORPLC_INFO"`
	Calorie    string `json:"CAL_INFO"`
	Nutrition  string `json:"NTR_INFO"`
}

type ScheduleRow struct {
	Date  string `json:"AA_YMD"`
	Event string `json:"EVENT_NM"`
}

type SchoolRow struct {
	RegionCode string `json:"ATPT_OFCDC_SC_CODE"`
	RegionName string `json:"ATPT_OFCDC_SC_NM"`
	SchoolCode string `json:"SD_SCHUL_CODE"`
	SchoolName string `json:"SCHUL_NM"`
	SchoolKind string `json:"SCHUL_KND_SC_NM"`
}

// MealSource fetches meal rows. date is YYYYMMDD or YYYYMM. A definitive
// "no data" answer is reported as an apperr NotFound, timeouts and
// connection failures as apperr Transient.
type MealSource interface {
	Meals(ctx context.Context, region, school, date string) ([]MealRow, error)
}

// ScheduleSource fetches academic calendar rows for a day (YYYYMMDD) or a
// month (YYYYMM).
type ScheduleSource interface {
	Schedules(ctx context.Context, region, school, date string) ([]ScheduleRow, error)
}

type SchoolSource interface {
	Schools(ctx context.Context, name string) ([]SchoolRow, error)
}

// TimetableQuery addresses one class. Weekday is 1 (Monday) to 5; zero asks
// for the whole week.
type TimetableQuery struct {
	SchoolCode string
	Grade      string
	Class      string
	Weekday    time.Weekday
	NextWeek   bool
}

// TimetableSource is the class timetable provider.
type TimetableSource interface {
	Day(ctx context.Context, q TimetableQuery) ([]models.Period, error)
	Week(ctx context.Context, q TimetableQuery) ([][]models.Period, error)
	ClassList(ctx context.Context, schoolCode string) ([]models.GradeClasses, error)
	SearchSchools(ctx context.Context, name string) ([]models.TimetableSchool, error)
}

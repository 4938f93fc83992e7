package models

import "time"

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ScheduleRecord is one merged academic calendar entry.
type ScheduleRecord struct {
	Schedule string    `json:"schedule"`
	Date     DateRange `json:"date"`
}

// ScheduleCache is the persisted value of the schedule collection.
type ScheduleCache struct {
	Schedules  []ScheduleRecord `json:"schedules"`
	SchoolCode string           `json:"schoolCode"`
	RegionCode string           `json:"regionCode"`
	DateKey    string           `json:"dateKey"`
}

type School struct {
	SchoolName string `json:"schoolName"`
	SchoolCode string `json:"schoolCode"`
	Region     string `json:"region"`
	RegionCode string `json:"regionCode"`
}

// Entity is a school addressed by region and school code.
type Entity struct {
	SchoolCode string `json:"schoolCode"`
	RegionCode string `json:"regionCode"`
}

type AccessStat struct {
	SchoolCode   string    `json:"schoolCode"`
	RegionCode   string    `json:"regionCode"`
	Count        int       `json:"count"`
	LastAccessed time.Time `json:"lastAccessed"`
}

func (a AccessStat) Entity() Entity {
	return Entity{SchoolCode: a.SchoolCode, RegionCode: a.RegionCode}
}

// Period is one class period of a timetable day.
type Period struct {
	Subject         string `json:"subject"`
	Teacher         string `json:"teacher"`
	Changed         bool   `json:"changed"`
	OriginalSubject string `json:"originalSubject,omitempty"`
	OriginalTeacher string `json:"originalTeacher,omitempty"`
}

// GradeClasses lists the class numbers of one grade.
type GradeClasses struct {
	Grade   int   `json:"grade"`
	Classes []int `json:"classes"`
}

type TimetableSchool struct {
	SchoolName string `json:"schoolName"`
	SchoolCode int    `json:"schoolCode"`
	Region     string `json:"region"`
}

// Notice is an announcement shown in the app.
type Notice struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

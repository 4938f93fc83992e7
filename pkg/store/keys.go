package store

import "strings"

const (
	// notation dictionary for key formats:
	// <region> = office of education code (e.g. B10)
	// <school> = standard school code (e.g. 7010569)
	// <date>   = YYYY-MM-DD, <month> = YYYY-MM
	// Stored keys are "<collection>:<key>"; segments inside a key use "_".

	CollMeal       = "meal"              // <region>_<school>_<date> -> MealRecord
	CollSchedule   = "schedule"          // <region>_<school>_<date|month> -> []ScheduleRecord
	CollAccess     = "schoolAccess"      // <region>_<school> -> AccessStat
	CollSchool     = "school"            // <query> -> []<region>_<school>
	CollSchoolInfo = "schoolInformation" // <region>_<school> -> School
	CollFCMMeal    = "fcm_meal"          // <token> -> MealSubscription
	CollFCMTime    = "fcm_timetable"     // <token> -> TimetableSubscription
	CollFCMKeyword = "fcm_keyword"       // <token> -> KeywordSubscription
	CollFCMLegacy  = "fcm"               // <token> -> legacy meal subscription
	CollNotice     = "notifications"     // <uuidv7> -> Notice
)

// CacheKey identifies one cached day for one school.
func CacheKey(region, school, date string) string {
	return region + "_" + school + "_" + date
}

// MonthPrefix selects every cached day of month for one school.
func MonthPrefix(region, school, month string) string {
	return region + "_" + school + "_" + month + "-"
}

// EntityKey identifies a school independent of date.
func EntityKey(region, school string) string {
	return region + "_" + school
}

// ParseCacheKey splits a CacheKey. ok is false for keys without three segments.
func ParseCacheKey(k string) (region, school, date string, ok bool) {
	parts := strings.SplitN(k, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// ParseEntityKey splits an EntityKey.
func ParseEntityKey(k string) (region, school string, ok bool) {
	parts := strings.SplitN(k, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

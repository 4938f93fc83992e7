package parser

import (
	"sort"
	"strings"

	"slunch/pkg/models"
	"slunch/pkg/upstream"
)

// saturdayOff marks the recurring no-school Saturday, which is noise.
const saturdayOff = "토요휴업일"

// Schedules groups rows by day, joins same-day events with ", ", sorts by
// day and merges neighbouring days that carry the same label into one range.
func Schedules(rows []upstream.ScheduleRow) []models.ScheduleRecord {
	byDate := map[string][]string{}
	for _, row := range rows {
		event := strings.TrimSpace(row.Event)
		if event == "" || event == saturdayOff {
			continue
		}
		date, err := NormalizeDate(row.Date)
		if err != nil {
			continue
		}
		byDate[date] = append(byDate[date], event)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := []models.ScheduleRecord{}
	for _, d := range dates {
		label := strings.Join(byDate[d], ", ")
		if n := len(out); n > 0 && out[n-1].Schedule == label {
			out[n-1].Date.End = d
			continue
		}
		out = append(out, models.ScheduleRecord{
			Schedule: label,
			Date:     models.DateRange{Start: d, End: d},
		})
	}
	return out
}

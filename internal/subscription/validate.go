package subscription

import (
	"fmt"
	"strconv"
	"strings"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
)

// ValidateTime checks an H:MM or HH:MM clock and returns it zero padded.
func ValidateTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Validation(apperr.MsgTimeRequired)
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		// "-1:00" lands here as well
		if ok && strings.HasPrefix(hh, "-") {
			return "", apperr.Validation(apperr.MsgInvalidTimeHour)
		}
		return "", apperr.Validation(apperr.MsgInvalidTimeFormat)
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h < 0 || h > 23 {
		return "", apperr.Validation(apperr.MsgInvalidTimeHour)
	}
	if m < 0 || m > 59 {
		return "", apperr.Validation(apperr.MsgInvalidTimeMinute)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func required(v, msg string) error {
	if strings.TrimSpace(v) == "" {
		return apperr.Validation(msg)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateMeal(s models.MealSubscription) (models.MealSubscription, error) {
	if err := firstErr(
		required(s.Token, apperr.MsgTokenRequired),
		required(s.SchoolCode, apperr.MsgSchoolCodeRequired),
		required(s.RegionCode, apperr.MsgRegionCodeRequired),
	); err != nil {
		return s, err
	}
	t, err := ValidateTime(s.Time)
	s.Time = t
	return s, err
}

func validateTimetable(s models.TimetableSubscription) (models.TimetableSubscription, error) {
	if err := firstErr(
		required(s.Token, apperr.MsgTokenRequired),
		required(s.SchoolCode, apperr.MsgSchoolCodeRequired),
		required(s.Grade, apperr.MsgGradeRequired),
		required(s.Class, apperr.MsgClassRequired),
	); err != nil {
		return s, err
	}
	t, err := ValidateTime(s.Time)
	s.Time = t
	return s, err
}

func validateKeyword(s models.KeywordSubscription) (models.KeywordSubscription, error) {
	if err := firstErr(
		required(s.Token, apperr.MsgTokenRequired),
		required(s.SchoolCode, apperr.MsgSchoolCodeRequired),
		required(s.RegionCode, apperr.MsgRegionCodeRequired),
	); err != nil {
		return s, err
	}
	keywords := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return s, apperr.Validation(apperr.MsgKeywordsRequired)
	}
	s.Keywords = keywords
	t, err := ValidateTime(s.Time)
	s.Time = t
	return s, err
}

// Package parser turns the "<br/>" joined text fields of the meal provider
// into structured records. Every function is pure.
package parser

import (
	"strconv"
	"strings"

	"slunch/pkg/models"
	"slunch/pkg/upstream"
)

const (
	itemSep     = "<br/>"
	allergySep  = " ("
	pairSep     = " : "
	remarksFood = "비고"
	calorieUnit = "Kcal"
)

var allergyTypes = map[int]string{
	1:  "난류",
	2:  "우유",
	3:  "메밀",
	4:  "땅콩",
	5:  "대두",
	6:  "밀",
	7:  "고등어",
	8:  "게",
	9:  "새우",
	10: "돼지고기",
	11: "복숭아",
	12: "토마토",
	13: "아황산류",
	14: "호두",
	15: "닭고기",
	16: "쇠고기",
	17: "오징어",
	18: "조개류(굴, 전복, 홍합 포함)",
	19: "잣",
}

// AllergyType maps an allergy code to its label. Unknown codes map to "".
func AllergyType(code string) string {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	return allergyTypes[n]
}

// items splits raw on the item separator and drops blank segments.
func items(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, itemSep)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pair splits s on the first sep. Without sep the whole segment is the first
// field and the second is empty.
func pair(s, sep string) (string, string) {
	first, second, _ := strings.Cut(s, sep)
	return strings.TrimSpace(first), strings.TrimSpace(second)
}

// Dishes parses "밥<br/>우유 (2)<br/>돈까스 (1.5.6.10)".
func Dishes(raw string) []models.Dish {
	out := []models.Dish{}
	for _, item := range items(raw) {
		food, codes := pair(item, allergySep)
		dish := models.Dish{Food: food, Allergy: []models.Allergy{}}
		codes = strings.Replace(codes, ")", "", 1)
		if codes != "" {
			for _, code := range strings.Split(codes, ".") {
				code = strings.TrimSpace(code)
				if code == "" {
					continue
				}
				dish.Allergy = append(dish.Allergy, models.Allergy{Type: AllergyType(code), Code: code})
			}
		}
		out = append(out, dish)
	}
	return out
}

// Origins parses "쌀 : 국내산<br/>비고 : ...", dropping the remarks entry.
func Origins(raw string) []models.Origin {
	out := []models.Origin{}
	for _, item := range items(raw) {
		food, origin := pair(item, pairSep)
		if food == remarksFood {
			continue
		}
		out = append(out, models.Origin{Food: food, Origin: origin})
	}
	return out
}

// Nutrition parses "탄수화물(g) : 120.5<br/>...".
func Nutrition(raw string) []models.Nutrient {
	out := []models.Nutrient{}
	for _, item := range items(raw) {
		typ, amount := pair(item, pairSep)
		out = append(out, models.Nutrient{Type: typ, Amount: amount})
	}
	return out
}

// Calorie strips the unit: "812.3 Kcal" -> "812.3".
func Calorie(raw string) string {
	return strings.TrimSpace(strings.Replace(raw, calorieUnit, "", 1))
}

// Meal builds the persisted record for one upstream row.
func Meal(row upstream.MealRow, region, school string) (models.MealRecord, error) {
	date, err := NormalizeDate(row.Date)
	if err != nil {
		return models.MealRecord{}, err
	}
	rec := models.MealRecord{
		Date:       date,
		Meal:       Dishes(row.Dishes),
		Type:       strings.TrimSpace(row.MealType),
		Origin:     Origins(row.Origin),
		Calorie:    Calorie(row.Calorie),
		Nutrition:  Nutrition(row.Nutrition),
		SchoolCode: school,
		RegionCode: region,
	}
	rec.Normalize()
	return rec, nil
}

// Meals parses every row, skipping rows with an unusable date.
func Meals(rows []upstream.MealRow, region, school string) []models.MealRecord {
	out := make([]models.MealRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := Meal(row, region, school)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

package models

import (
	"encoding/json"
	"strings"
)

// Allergy is one allergen marker attached to a dish.
type Allergy struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type Dish struct {
	Food    string    `json:"food"`
	Allergy []Allergy `json:"allergy"`
}

type Origin struct {
	Food   string `json:"food"`
	Origin string `json:"origin"`
}

type Nutrient struct {
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

// MealRecord is the persisted form of one meal service for one school and day.
// Date is always YYYY-MM-DD and list fields are never nil.
type MealRecord struct {
	Date       string     `json:"date"`
	Meal       []Dish     `json:"meal"`
	Type       string     `json:"type"`
	Origin     []Origin   `json:"origin"`
	Calorie    string     `json:"calorie"`
	Nutrition  []Nutrient `json:"nutrition"`
	SchoolCode string     `json:"school_code"`
	RegionCode string     `json:"region_code"`
}

// FoodNames lists dish names in serving order.
func (m MealRecord) FoodNames() []string {
	out := make([]string, 0, len(m.Meal))
	for _, d := range m.Meal {
		if d.Food == "" {
			continue
		}
		out = append(out, d.Food)
	}
	return out
}

// Normalize replaces nil lists with empty ones.
func (m *MealRecord) Normalize() {
	if m.Meal == nil {
		m.Meal = []Dish{}
	}
	for i := range m.Meal {
		if m.Meal[i].Allergy == nil {
			m.Meal[i].Allergy = []Allergy{}
		}
	}
	if m.Origin == nil {
		m.Origin = []Origin{}
	}
	if m.Nutrition == nil {
		m.Nutrition = []Nutrient{}
	}
}

const StaleSuffix = " (stale)"

// IsStale reports whether the record was served from the fallback window.
func (m MealRecord) IsStale() bool {
	return strings.HasSuffix(m.Type, StaleSuffix)
}

// MealView is the projection returned to clients. Meal holds []Dish when
// allergies are requested and []string otherwise.
type MealView struct {
	Date      string     `json:"date"`
	Meal      any        `json:"meal"`
	Type      string     `json:"type"`
	Origin    []Origin   `json:"origin,omitempty"`
	Calorie   string     `json:"calorie"`
	Nutrition []Nutrient `json:"nutrition,omitempty"`
}

// MarshalJSON omits origin and nutrition when they are nil and keeps them as
// [] when they are empty but requested.
func (v MealView) MarshalJSON() ([]byte, error) {
	type wire struct {
		Date      string `json:"date"`
		Meal      any    `json:"meal"`
		Type      string `json:"type"`
		Origin    any    `json:"origin,omitempty"`
		Calorie   string `json:"calorie"`
		Nutrition any    `json:"nutrition,omitempty"`
	}
	w := wire{Date: v.Date, Meal: v.Meal, Type: v.Type, Calorie: v.Calorie}
	if v.Origin != nil {
		w.Origin = v.Origin
	}
	if v.Nutrition != nil {
		w.Nutrition = v.Nutrition
	}
	return json.Marshal(w)
}

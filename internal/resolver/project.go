package resolver

import "slunch/pkg/models"

// Project shapes a record for a client. Meal collapses to food names unless
// allergies are requested; origin and nutrition are omitted when off.
func Project(rec models.MealRecord, opts Options) models.MealView {
	v := models.MealView{
		Date:    rec.Date,
		Type:    rec.Type,
		Calorie: rec.Calorie,
	}
	if opts.ShowAllergy {
		dishes := rec.Meal
		if dishes == nil {
			dishes = []models.Dish{}
		}
		v.Meal = dishes
	} else {
		v.Meal = rec.FoodNames()
	}
	if opts.ShowOrigin {
		v.Origin = rec.Origin
		if v.Origin == nil {
			v.Origin = []models.Origin{}
		}
	}
	if opts.ShowNutrition {
		v.Nutrition = rec.Nutrition
		if v.Nutrition == nil {
			v.Nutrition = []models.Nutrient{}
		}
	}
	return v
}

func ProjectAll(recs []models.MealRecord, opts Options) []models.MealView {
	out := make([]models.MealView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Project(rec, opts))
	}
	return out
}

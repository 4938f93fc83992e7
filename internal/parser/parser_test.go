package parser

import (
	"testing"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/upstream"

	"github.com/google/go-cmp/cmp"
)

func TestDishes(t *testing.T) {
	got := Dishes("기장밥<br/>돈까스 (1.5.6.10)<br/>우유 (2)<br/>특식 (99)")
	want := []models.Dish{
		{Food: "기장밥", Allergy: []models.Allergy{}},
		{Food: "돈까스", Allergy: []models.Allergy{
			{Type: "난류", Code: "1"},
			{Type: "대두", Code: "5"},
			{Type: "밀", Code: "6"},
			{Type: "돼지고기", Code: "10"},
		}},
		{Food: "우유", Allergy: []models.Allergy{{Type: "우유", Code: "2"}}},
		{Food: "특식", Allergy: []models.Allergy{{Type: "", Code: "99"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Dishes mismatch (-want +got):\n%s", diff)
	}
}

func TestDishesDeterministic(t *testing.T) {
	raw := "현미밥<br/>된장국 (5.6.9)<br/>김치 (9.13)"
	if diff := cmp.Diff(Dishes(raw), Dishes(raw)); diff != "" {
		t.Fatalf("parsing is not deterministic:\n%s", diff)
	}
}

func TestOriginsDropsRemarks(t *testing.T) {
	got := Origins("쌀 : 국내산<br/>돼지고기 : 국내산<br/>비고 : 가공품 제외<br/>김치류")
	want := []models.Origin{
		{Food: "쌀", Origin: "국내산"},
		{Food: "돼지고기", Origin: "국내산"},
		{Food: "김치류", Origin: ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Origins mismatch (-want +got):\n%s", diff)
	}
}

func TestNutritionAndCalorie(t *testing.T) {
	got := Nutrition("탄수화물(g) : 120.5<br/>단백질(g) : 30.1")
	want := []models.Nutrient{{Type: "탄수화물(g)", Amount: "120.5"}, {Type: "단백질(g)", Amount: "30.1"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Nutrition mismatch (-want +got):\n%s", diff)
	}
	if c := Calorie(" 812.3 Kcal"); c != "812.3" {
		t.Fatalf("Calorie() = %q", c)
	}
}

func TestEmptyFieldsAreEmptyLists(t *testing.T) {
	rec, err := Meal(upstream.MealRow{Date: "20250310", MealType: "중식"}, "B10", "7010569")
	if err != nil {
		t.Fatalf("Meal: %v", err)
	}
	if rec.Meal == nil || rec.Origin == nil || rec.Nutrition == nil {
		t.Fatalf("nil list in %+v", rec)
	}
	if rec.Date != "2025-03-10" || rec.Calorie != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"20250310", "2025-03-10", true},
		{"2025-03-10", "2025-03-10", true},
		{"20251340", "", false},
		{"2025031", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeDate(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("NormalizeDate(%q) = %q, %v", tt.in, got, err)
		}
		if !tt.ok && !apperr.IsValidation(err) {
			t.Errorf("NormalizeDate(%q) expected validation error, got %v", tt.in, err)
		}
	}
	if m, err := NormalizeMonth("202503"); err != nil || m != "2025-03" {
		t.Fatalf("NormalizeMonth() = %q, %v", m, err)
	}
}

func TestSchedulesMerge(t *testing.T) {
	rows := []upstream.ScheduleRow{
		{Date: "20250305", Event: "중간고사"},
		{Date: "20250303", Event: "개학식"},
		{Date: "20250303", Event: "입학식"},
		{Date: "20250304", Event: "중간고사"},
		{Date: "20250308", Event: "토요휴업일"},
		{Date: "20250306", Event: "중간고사"},
		{Date: "20250310", Event: "개교기념일"},
	}
	got := Schedules(rows)
	want := []models.ScheduleRecord{
		{Schedule: "개학식, 입학식", Date: models.DateRange{Start: "2025-03-03", End: "2025-03-03"}},
		{Schedule: "중간고사", Date: models.DateRange{Start: "2025-03-04", End: "2025-03-06"}},
		{Schedule: "개교기념일", Date: models.DateRange{Start: "2025-03-10", End: "2025-03-10"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Schedules mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Schedule == got[i-1].Schedule {
			t.Fatalf("adjacent entries share label %q", got[i].Schedule)
		}
	}
}

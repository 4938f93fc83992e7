package models

type MealSubscription struct {
	Token      string `json:"token"`
	Time       string `json:"time"`
	SchoolCode string `json:"schoolCode"`
	RegionCode string `json:"regionCode"`
}

type TimetableSubscription struct {
	Token      string `json:"token"`
	Time       string `json:"time"`
	SchoolCode string `json:"schoolCode"`
	Grade      string `json:"grade"`
	Class      string `json:"class"`
}

type KeywordSubscription struct {
	Token      string   `json:"token"`
	Keywords   []string `json:"keywords"`
	Time       string   `json:"time"`
	SchoolCode string   `json:"schoolCode"`
	RegionCode string   `json:"regionCode"`
}

func (s MealSubscription) GetToken() string      { return s.Token }
func (s MealSubscription) GetTime() string       { return s.Time }
func (s TimetableSubscription) GetToken() string { return s.Token }
func (s TimetableSubscription) GetTime() string  { return s.Time }
func (s KeywordSubscription) GetToken() string   { return s.Token }
func (s KeywordSubscription) GetTime() string    { return s.Time }

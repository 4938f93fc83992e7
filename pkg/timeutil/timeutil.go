package timeutil

import (
	"sync"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	CompactLayout = "20060102"
	MonthLayout   = "200601"
	ClockLayout   = "15:04"
)

var (
	mu      sync.RWMutex
	loc     = time.Local
	nowFunc = time.Now
)

// SetLocation sets the zone used for calendar dates and HH:MM clocks.
func SetLocation(l *time.Location) {
	if l == nil {
		return
	}
	mu.Lock()
	loc = l
	mu.Unlock()
}

// LoadLocation resolves a zone name and installs it. Empty keeps the current zone.
func LoadLocation(name string) error {
	if name == "" {
		return nil
	}
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	SetLocation(l)
	return nil
}

func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// Now returns the current time in the configured location.
func Now() time.Time {
	mu.RLock()
	f, l := nowFunc, loc
	mu.RUnlock()
	return f().In(l)
}

// SetNowFunc overrides the clock and returns a restore func. Intended for tests.
func SetNowFunc(f func() time.Time) func() {
	mu.Lock()
	prev := nowFunc
	nowFunc = f
	mu.Unlock()
	return func() {
		mu.Lock()
		nowFunc = prev
		mu.Unlock()
	}
}

// Date formats t as YYYY-MM-DD.
func Date(t time.Time) string { return t.Format(DateLayout) }

// Compact formats t as YYYYMMDD, the upstream wire format.
func Compact(t time.Time) string { return t.Format(CompactLayout) }

// Clock formats t as HH:MM.
func Clock(t time.Time) string { return t.Format(ClockLayout) }

// ParseDate accepts YYYY-MM-DD or YYYYMMDD in the configured location.
func ParseDate(s string) (time.Time, error) {
	layout := DateLayout
	if len(s) == len(CompactLayout) {
		layout = CompactLayout
	}
	return time.ParseInLocation(layout, s, Location())
}

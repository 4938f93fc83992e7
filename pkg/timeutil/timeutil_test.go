package timeutil

import (
	"testing"
	"time"
)

func TestNowUsesConfiguredLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	prevLoc := Location()
	SetLocation(seoul)
	defer SetLocation(prevLoc)

	restore := SetNowFunc(func() time.Time {
		return time.Date(2025, 3, 9, 22, 30, 0, 0, time.UTC)
	})
	defer restore()

	now := Now()
	if got := Date(now); got != "2025-03-10" {
		t.Fatalf("Date(Now()) = %q, want 2025-03-10", got)
	}
	if got := Clock(now); got != "07:30" {
		t.Fatalf("Clock(Now()) = %q, want 07:30", got)
	}
	if got := Compact(now); got != "20250310" {
		t.Fatalf("Compact(Now()) = %q", got)
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2025-03-10", "20250310"} {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", in, err)
		}
		if Date(d) != "2025-03-10" {
			t.Fatalf("ParseDate(%q) = %v", in, d)
		}
	}
	if _, err := ParseDate("2025/03/10"); err == nil {
		t.Fatalf("expected error for slash date")
	}
}

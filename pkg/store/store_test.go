package store

import (
	"fmt"
	"testing"

	"slunch/pkg/apperr"

	"github.com/google/go-cmp/cmp"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCollectionGetPutExists(t *testing.T) {
	s := openTest(t)
	meal := s.Collection(CollMeal)

	if _, err := meal.Get("B10_7010569_2025-03-10"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	ok, err := meal.Exists("B10_7010569_2025-03-10")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}

	if err := meal.Put("B10_7010569_2025-03-10", []byte(`{"date":"2025-03-10"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := meal.Get("B10_7010569_2025-03-10")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"date":"2025-03-10"}` {
		t.Fatalf("Get() = %s", got)
	}
	if ok, _ := meal.Exists("B10_7010569_2025-03-10"); !ok {
		t.Fatalf("expected key to exist")
	}

	if err := meal.Remove("B10_7010569_2025-03-10"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := meal.Remove("B10_7010569_2025-03-10"); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	s := openTest(t)
	a := s.Collection("fcm")
	b := s.Collection("fcm_meal")

	_ = a.Put("T1", []byte("legacy"))
	_ = b.Put("T1", []byte("meal"))

	keys, err := a.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if diff := cmp.Diff([]string{"T1"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	if err := a.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := a.Count(); n != 0 {
		t.Fatalf("expected empty collection, got %d", n)
	}
	if n, _ := b.Count(); n != 1 {
		t.Fatalf("clear leaked into sibling collection, count %d", n)
	}
}

func TestScanMonthPrefix(t *testing.T) {
	s := openTest(t)
	meal := s.Collection(CollMeal)
	for _, d := range []string{"2025-02-28", "2025-03-14", "2025-03-10", "2025-04-01"} {
		_ = meal.Put(CacheKey("B10", "7010569", d), []byte(d))
	}
	_ = meal.Put(CacheKey("B10", "7010570", "2025-03-11"), []byte("other school"))

	var got []string
	err := meal.Scan(MonthPrefix("B10", "7010569", "2025-03"), func(k string, v []byte) error {
		got = append(got, string(v))
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if diff := cmp.Diff([]string{"2025-03-10", "2025-03-14"}, got); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeBounds(t *testing.T) {
	s := openTest(t)
	c := s.Collection("r")
	for i := 0; i < 5; i++ {
		_ = c.Put(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}
	var got []string
	_ = c.Range("k1", "k3", func(k string, _ []byte) error {
		got = append(got, k)
		return nil
	})
	if diff := cmp.Diff([]string{"k1", "k2"}, got); diff != "" {
		t.Fatalf("range mismatch (-want +got):\n%s", diff)
	}

	stop := fmt.Errorf("stop")
	n := 0
	err := c.All(func(string, []byte) error {
		n++
		return stop
	})
	if err != stop || n != 1 {
		t.Fatalf("callback error should stop iteration: n=%d err=%v", n, err)
	}
}

func TestJSONHelpersAndStats(t *testing.T) {
	s := openTest(t)
	c := s.Collection(CollAccess)
	type stat struct {
		Count int `json:"count"`
	}
	if err := c.PutJSON("B10_7010569", stat{Count: 7}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	var got stat
	if err := c.GetJSON("B10_7010569", &got); err != nil || got.Count != 7 {
		t.Fatalf("GetJSON() = %+v, %v", got, err)
	}
	_ = s.Collection(CollMeal).Put("x", []byte("1"))

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	names := make([]string, 0, len(stats))
	for _, st := range stats {
		names = append(names, st.Name)
		if st.Keys != 1 {
			t.Errorf("%s: keys = %d, want 1", st.Name, st.Keys)
		}
	}
	if diff := cmp.Diff([]string{CollMeal, CollAccess}, names); diff != "" {
		t.Fatalf("stats names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCacheKey(t *testing.T) {
	r, sc, d, ok := ParseCacheKey("B10_7010569_2025-03-10")
	if !ok || r != "B10" || sc != "7010569" || d != "2025-03-10" {
		t.Fatalf("ParseCacheKey() = %q %q %q %v", r, sc, d, ok)
	}
	if _, _, _, ok := ParseCacheKey("B10_7010569"); ok {
		t.Fatalf("two segments must not parse as a cache key")
	}
	if got := prefixEnd("ab"); got != "ac" {
		t.Fatalf("prefixEnd() = %q", got)
	}
}

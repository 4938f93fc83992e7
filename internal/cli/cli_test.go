package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"slunch/internal/access"
	"slunch/internal/subscription"
	"slunch/pkg/models"
	"slunch/pkg/state"
	"slunch/pkg/store"
)

func seed(t *testing.T, dir string, fn func(s *store.Store)) {
	t.Helper()
	s, err := store.Open(state.StorePath(dir), store.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	fn(s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func seedLegacy(t *testing.T, s *store.Store) {
	t.Helper()
	legacy := s.Collection(store.CollFCMLegacy)
	puts := map[string]any{
		"tok-new":     models.MealSubscription{Token: "tok-new", Time: "07:30", SchoolCode: "7010569", RegionCode: "B10"},
		"tok-old":     models.MealSubscription{Token: "tok-old", Time: "08:00", SchoolCode: "7010569", RegionCode: "B10"},
		"tok-partial": map[string]string{"token": "tok-partial", "time": "07:00"},
	}
	for k, v := range puts {
		if err := legacy.PutJSON(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := legacy.Put("tok-garbage", []byte("{")); err != nil {
		t.Fatal(err)
	}
	if _, err := subscription.New(s).Meal.Create(models.MealSubscription{Token: "tok-old", Time: "12:00", SchoolCode: "1", RegionCode: "J10"}); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateLegacyFCM(t *testing.T) {
	s, err := store.Open(t.TempDir(), store.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	seedLegacy(t, s)

	dry, err := migrateLegacyFCM(s, true, true)
	if err != nil {
		t.Fatal(err)
	}
	want := migrateReport{Scanned: 4, Migrated: 1, Existing: 1, Incomplete: 1, Undecoded: 1}
	if diff := cmp.Diff(want, dry); diff != "" {
		t.Fatalf("dry run (-want +got):\n%s", diff)
	}
	if n, _ := s.Collection(store.CollFCMMeal).Count(); n != 1 {
		t.Fatalf("dry run wrote: fcm_meal has %d", n)
	}

	rep, err := migrateLegacyFCM(s, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Fatalf("migrate (-want +got):\n%s", diff)
	}

	subs := subscription.New(s)
	got, err := subs.Meal.Get("tok-new")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(models.MealSubscription{Token: "tok-new", Time: "07:30", SchoolCode: "7010569", RegionCode: "B10"}, got); diff != "" {
		t.Fatalf("migrated (-want +got):\n%s", diff)
	}
	// existing subscriptions win
	if old, _ := subs.Meal.Get("tok-old"); old.Time != "12:00" {
		t.Fatalf("existing overwritten: %+v", old)
	}
	if n, _ := s.Collection(store.CollFCMLegacy).Count(); n != 0 {
		t.Fatalf("legacy left %d keys", n)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, func(s *store.Store) {
		seedLegacy(t, s)
		tr := access.New(s, access.Options{MinCount: 1})
		for i := 0; i < 3; i++ {
			if err := tr.RecordAccess("B10", "7010569"); err != nil {
				t.Fatal(err)
			}
		}
		if err := tr.RecordAccess("J10", "7530560"); err != nil {
			t.Fatal(err)
		}
	})

	out := run(t, "inspect", dir)
	for _, want := range []string{"fcm_meal", "schoolAccess", "total", "disk usage"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect missing %q:\n%s", want, out)
		}
	}

	out = run(t, "popular", dir, "--min-count", "2")
	if !strings.Contains(out, "7010569") || strings.Contains(out, "7530560") {
		t.Fatalf("popular:\n%s", out)
	}
	out = run(t, "popular", dir, "--all")
	if !strings.Contains(out, "7530560") {
		t.Fatalf("popular --all:\n%s", out)
	}

	out = run(t, "migrate-fcm", dir)
	if !strings.Contains(out, "migrated 1") {
		t.Fatalf("migrate-fcm: %s", out)
	}

	out = run(t, "prune", dir, "--dry-run")
	if !strings.Contains(out, `"dryRun": true`) || !strings.Contains(out, `"skipped": false`) {
		t.Fatalf("prune: %s", out)
	}
}

func TestDataDirFallsBackToEnv(t *testing.T) {
	t.Setenv("SLUNCH_DB_PATH", "/srv/slunch")
	if got := dataDir(nil); got != "/srv/slunch" {
		t.Fatalf("dataDir = %q", got)
	}
	if got := dataDir([]string{"./db"}); got != "./db" {
		t.Fatalf("dataDir = %q", got)
	}
}

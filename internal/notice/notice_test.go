package notice

import (
	"testing"

	"slunch/pkg/apperr"
	"slunch/pkg/models"
	"slunch/pkg/store"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func newBoard(t *testing.T) *Board {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s)
}

func TestCreateAssignsVersion7IDs(t *testing.T) {
	b := newBoard(t)
	n, err := b.Create(models.Notice{Title: "점검", Content: "서버 점검", Date: "2025-03-08T05:52:06.583Z"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, err := uuid.Parse(n.ID)
	if err != nil || id.Version() != 7 {
		t.Fatalf("id %q: version %v, err %v", n.ID, id.Version(), err)
	}
}

func TestCreateValidation(t *testing.T) {
	b := newBoard(t)
	for _, n := range []models.Notice{
		{Content: "c", Date: "2025-03-08"},
		{Title: "t", Date: "2025-03-08"},
		{Title: "t", Content: "c"},
	} {
		if _, err := b.Create(n); !apperr.IsValidation(err) {
			t.Errorf("Create(%+v) = %v, want validation error", n, err)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	b := newBoard(t)
	for _, d := range []string{"2025-03-01T00:00:00Z", "2025-03-08T05:52:06.583Z", "2025-03-05", "someday"} {
		if _, err := b.Create(models.Notice{Title: d, Content: "c", Date: d}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	list, err := b.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var dates []string
	for _, n := range list {
		dates = append(dates, n.Date)
	}
	want := []string{"2025-03-08T05:52:06.583Z", "2025-03-05", "2025-03-01T00:00:00Z", "someday"}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateDeleteClear(t *testing.T) {
	b := newBoard(t)
	n, _ := b.Create(models.Notice{Title: "a", Content: "c", Date: "2025-03-01"})

	if _, err := b.Update("missing", models.Notice{Title: "x", Content: "c", Date: "2025-03-01"}); !apperr.IsNotFound(err) {
		t.Fatalf("Update(missing) = %v", err)
	}
	upd, err := b.Update(n.ID, models.Notice{Title: "b", Content: "c2", Date: "2025-03-02"})
	if err != nil || upd.ID != n.ID || upd.Title != "b" {
		t.Fatalf("Update = %+v, %v", upd, err)
	}

	if err := b.Delete("missing"); !apperr.IsNotFound(err) {
		t.Fatalf("Delete(missing) = %v", err)
	}
	if err := b.Delete(n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, _ = b.Create(models.Notice{Title: "a", Content: "c", Date: "2025-03-01"})
	_, _ = b.Create(models.Notice{Title: "b", Content: "c", Date: "2025-03-02"})
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, _ := b.List()
	if len(list) != 0 {
		t.Fatalf("Clear left %d notices", len(list))
	}
}

package schedule

import (
	"context"
	"testing"
	"time"

	"slunch/pkg/apperr"
	"slunch/pkg/timeutil"

	"github.com/cockroachdb/errors"
)

func TestAddValidates(t *testing.T) {
	s := New(nil)
	noop := func(context.Context) error { return nil }
	if err := s.Add(Job{Name: "bad", Cron: "61 * * * *", Run: noop}); !apperr.IsValidation(err) {
		t.Fatalf("invalid cron: %v", err)
	}
	if err := s.Add(Job{Name: "", Cron: "* * * * *", Run: noop}); !apperr.IsValidation(err) {
		t.Fatalf("missing name: %v", err)
	}
	if err := s.Add(Job{Name: "a", Cron: "30 5 * * *", Run: noop}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Job{Name: "a", Cron: "30 5 * * *", Run: noop}); !apperr.IsConflict(err) {
		t.Fatalf("duplicate: %v", err)
	}
}

func TestTriggerRunsAndRecordsStatus(t *testing.T) {
	restore := timeutil.SetNowFunc(func() time.Time {
		return time.Date(2025, 3, 10, 5, 0, 0, 0, timeutil.Location())
	})
	defer restore()

	s := New(nil)
	calls := 0
	boom := errors.New("boom")
	_ = s.Add(Job{Name: "precache", Cron: "30 5 * * *", Run: func(context.Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}})

	if err := s.Trigger(context.Background(), "precache"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if err := s.Trigger(context.Background(), "precache"); !errors.Is(err, boom) {
		t.Fatalf("Trigger = %v, want boom", err)
	}
	if err := s.Trigger(context.Background(), "nope"); !apperr.IsNotFound(err) {
		t.Fatalf("unknown job: %v", err)
	}

	st := s.Status()
	if len(st) != 1 || st[0].LastErr != "boom" || st[0].Running {
		t.Fatalf("status = %+v", st)
	}
	wantNext := time.Date(2025, 3, 10, 5, 30, 0, 0, timeutil.Location())
	if !st[0].Next.Equal(wantNext) {
		t.Fatalf("next = %v, want %v", st[0].Next, wantNext)
	}
}

func TestTriggerWhileRunningConflicts(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	_ = s.Add(Job{Name: "slow", Cron: "* * * * *", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "slow") }()
	<-started

	if err := s.Trigger(context.Background(), "slow"); !apperr.IsConflict(err) {
		t.Fatalf("overlapping trigger: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
}

func TestStartStops(t *testing.T) {
	s := New(nil)
	_ = s.Add(Job{Name: "weekly", Cron: "0 3 * * 0", Run: func(context.Context) error { return nil }})
	cancel := s.Start(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loops did not stop")
	}
}

// Package schedule runs named cron jobs. Each job gets its own loop and never
// overlaps with itself; a run that is still going when the next tick fires
// makes that tick a no-op.
package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"slunch/pkg/apperr"
	"slunch/pkg/state/logger"
	"slunch/pkg/telemetry"
	"slunch/pkg/timeutil"
)

type Job struct {
	Name string
	// Cron is a five-field expression evaluated in the service time zone.
	Cron string
	Run  func(ctx context.Context) error
}

type entry struct {
	job     Job
	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// Status is a point-in-time view of a job, for the admin surface.
type Status struct {
	Name    string    `json:"name"`
	Cron    string    `json:"cron"`
	Running bool      `json:"running"`
	LastRun time.Time `json:"lastRun,omitempty"`
	LastErr string    `json:"lastError,omitempty"`
	Next    time.Time `json:"next,omitempty"`
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*entry
	metrics *telemetry.Metrics
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(m *telemetry.Metrics) *Scheduler {
	return &Scheduler{jobs: map[string]*entry{}, metrics: m}
}

// Add registers a job. Jobs added after Start are not scheduled.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return apperr.Validation("job needs a name and a run func")
	}
	if !gronx.IsValid(j.Cron) {
		return apperr.Validation("job %s: invalid cron expression %q", j.Name, j.Cron)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.Name]; ok {
		return apperr.Conflict("job %s already registered", j.Name)
	}
	s.jobs[j.Name] = &entry{job: j}
	return nil
}

// Start launches one loop per job. The returned cancel stops every loop; use
// Wait to block until in-flight runs return.
func (s *Scheduler) Start(ctx context.Context) context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.jobs {
		logger.Info("job_scheduled", "job", e.job.Name, "cron", e.job.Cron)
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.loop(s.ctx, e)
		}(e)
	}
	return s.cancel
}

func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		now := timeutil.Now()
		next, err := gronx.NextTickAfter(e.job.Cron, now, false)
		if err != nil {
			logger.Error("job_nexttick_failed", "job", e.job.Name, "cron", e.job.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := next.Sub(now)
		if wait <= 0 {
			s.run(ctx, e)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			s.run(ctx, e)
		case <-ctx.Done():
			return
		}
	}
}

// run executes the job unless it is already running and reports whether it
// ran.
func (s *Scheduler) run(ctx context.Context, e *entry) (bool, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		s.metrics.Job(e.job.Name, "skipped", 0)
		logger.Warn("job_overlap_skipped", "job", e.job.Name)
		return false, nil
	}
	e.running = true
	e.mu.Unlock()

	start := time.Now()
	err := e.job.Run(ctx)
	d := time.Since(start)

	e.mu.Lock()
	e.running = false
	e.lastRun = timeutil.Now()
	e.lastErr = err
	e.mu.Unlock()

	if err != nil {
		s.metrics.Job(e.job.Name, "error", d)
		logger.Error("job_run_failed", "job", e.job.Name, "duration", d, "error", err)
		return true, err
	}
	s.metrics.Job(e.job.Name, "ok", d)
	logger.Debug("job_run_done", "job", e.job.Name, "duration", d)
	return true, nil
}

// Trigger runs a job now, outside its schedule. A job that is already
// running yields a Conflict.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return apperr.NotFound("unknown job %s", name)
	}
	logger.AuditEvent("job_triggered", "job", name)
	ran, err := s.run(ctx, e)
	if !ran {
		return apperr.Conflict("job %s is already running", name)
	}
	return err
}

// Status lists the jobs by name.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	now := timeutil.Now()
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := Status{Name: e.job.Name, Cron: e.job.Cron, Running: e.running, LastRun: e.lastRun}
		if e.lastErr != nil {
			st.LastErr = e.lastErr.Error()
		}
		e.mu.Unlock()
		if next, err := gronx.NextTickAfter(e.job.Cron, now, false); err == nil {
			st.Next = next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

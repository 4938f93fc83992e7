package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slunch/pkg/timeutil"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace times the steps of one job run. Attrs carry the run's counters.
type Trace struct {
	Name     string         `json:"name"`
	Start    time.Time      `json:"start"`
	Steps    []Step         `json:"steps"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	TotalMS  float64        `json:"total_ms"`
	lastMark time.Time
	tr       *Tracer
}

// Tracer writes finished traces to one JSONL file per trace name.
type Tracer struct {
	dir              string
	mu               sync.Mutex
	files            map[string]*os.File
	buffers          map[string]*bufio.Writer
	traces           chan *Trace
	stopCh           chan struct{}
	stopOnce         sync.Once
	wg               sync.WaitGroup
	flushInt         time.Duration
	maxFileSizeBytes int64
	bufferSize       int
}

// NewTracer starts the background writer.
func NewTracer(dir string, bufferSize, queueCapacity int, flushInterval time.Duration, maxFileSize int64) (*Tracer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	t := &Tracer{
		dir:              dir,
		files:            make(map[string]*os.File),
		buffers:          make(map[string]*bufio.Writer),
		traces:           make(chan *Trace, queueCapacity),
		stopCh:           make(chan struct{}),
		flushInt:         flushInterval,
		maxFileSizeBytes: maxFileSize,
		bufferSize:       bufferSize,
	}
	t.wg.Add(1)
	go t.writerLoop()
	return t, nil
}

// Track starts a trace. A nil Tracer hands out traces that are never written.
func (t *Tracer) Track(name string) *Trace {
	now := timeutil.Now()
	return &Trace{
		Name:     name,
		Start:    now,
		lastMark: now,
		tr:       t,
	}
}

// Mark records the time since the previous mark.
func (tr *Trace) Mark(label string) {
	now := timeutil.Now()
	delta := now.Sub(tr.lastMark).Seconds() * 1000
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: delta})
	tr.lastMark = now
}

func (tr *Trace) Set(key string, v any) {
	if tr.Attrs == nil {
		tr.Attrs = map[string]any{}
	}
	tr.Attrs[key] = v
}

// Finish enqueues the trace. Safe to call more than once.
func (tr *Trace) Finish() {
	if tr.tr == nil {
		return
	}
	tr.TotalMS = time.Since(tr.Start).Seconds() * 1000

	var sum float64
	for _, s := range tr.Steps {
		sum += s.Duration
	}
	if remaining := tr.TotalMS - sum; remaining > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: remaining})
	}

	select {
	case tr.tr.traces <- tr:
	default:
		// queue full; drop rather than stall a job
	}
	tr.tr = nil
}

func (t *Tracer) writerLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.flushInt)
	defer ticker.Stop()

	for {
		select {
		case tr := <-t.traces:
			t.write(tr)

		case <-ticker.C:
			t.flush(true)

		case <-t.stopCh:
			t.drain()
			t.flush(false)
			t.mu.Lock()
			for _, f := range t.files {
				f.Sync()
				f.Close()
			}
			t.mu.Unlock()
			return
		}
	}
}

func (t *Tracer) drain() {
	for {
		select {
		case tr := <-t.traces:
			t.write(tr)
		default:
			return
		}
	}
}

func (t *Tracer) write(tr *Trace) {
	if tr == nil {
		return
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return
	}
	t.mu.Lock()
	b := t.getBufferFor(tr.Name)
	b.Write(data)
	b.WriteByte('\n')
	t.mu.Unlock()
}

func (t *Tracer) flush(rotate bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, b := range t.buffers {
		b.Flush()
		f := t.files[name]
		if f == nil || !rotate || t.maxFileSizeBytes <= 0 {
			continue
		}
		if fi, err := f.Stat(); err == nil && fi.Size() > t.maxFileSizeBytes {
			f.Close()
			os.Remove(f.Name())
			newF, err := os.OpenFile(f.Name(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				delete(t.files, name)
				delete(t.buffers, name)
				continue
			}
			t.files[name] = newF
			t.buffers[name] = bufio.NewWriterSize(newF, t.bufferSize)
			fmt.Fprintf(os.Stderr, "telemetry: truncated %s (size exceeded %d bytes)\n", name, t.maxFileSizeBytes)
		}
	}
}

func (t *Tracer) getBufferFor(op string) *bufio.Writer {
	if b, ok := t.buffers[op]; ok {
		return b
	}
	path := filepath.Join(t.dir, fmt.Sprintf("%s.jsonl", op))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: failed to open %s: %v\n", path, err)
		return bufio.NewWriter(os.Stdout)
	}
	b := bufio.NewWriterSize(f, t.bufferSize)
	t.files[op] = f
	t.buffers[op] = b
	return b
}

// Close stops the writer after draining queued traces.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
	})
}

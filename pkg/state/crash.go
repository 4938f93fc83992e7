package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"slunch/pkg/state/logger"
)

// FailedOp is one line of the failed-op journal.
type FailedOp struct {
	Timestamp time.Time         `json:"timestamp"`
	Key       string            `json:"key"`
	Op        string            `json:"op"`
	Error     string            `json:"error"`
	Retries   int               `json:"retries"`
	Metadata  map[string]string `json:"metadata"`
}

// FailedOpWriter appends failed operations to daily JSONL files.
type FailedOpWriter struct {
	mu          sync.Mutex
	basePath    string
	current     *os.File
	currentDate string
	now         func() time.Time
}

func NewFailedOpWriter(basePath string) *FailedOpWriter {
	return &FailedOpWriter{
		basePath: basePath,
		now:      time.Now,
	}
}

func journalName(date string) string {
	return fmt.Sprintf("failed_ops_%s.jsonl", date)
}

// WriteFailedOp records op against key. retries is the number of attempts made.
func (fw *FailedOpWriter) WriteFailedOp(op, key string, retries int, err error, meta map[string]string) error {
	if fw == nil {
		return nil
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if err := os.MkdirAll(fw.basePath, 0o700); err != nil {
		return fmt.Errorf("failed to create failed_ops directory: %w", err)
	}

	now := fw.now()
	date := now.Format("2006-01-02")
	if fw.currentDate != date || fw.current == nil {
		if fw.current != nil {
			fw.current.Close()
		}
		file, openErr := os.OpenFile(filepath.Join(fw.basePath, journalName(date)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if openErr != nil {
			return fmt.Errorf("failed to open failed_ops file: %w", openErr)
		}
		fw.current = file
		fw.currentDate = date
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	failedOp := FailedOp{
		Timestamp: now,
		Key:       key,
		Op:        op,
		Error:     msg,
		Retries:   retries,
		Metadata:  meta,
	}

	data, marshalErr := json.Marshal(failedOp)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal failed op: %w", marshalErr)
	}
	if _, writeErr := fw.current.Write(append(data, '\n')); writeErr != nil {
		return fmt.Errorf("failed to write failed op: %w", writeErr)
	}

	logger.Warn("failed_op_written", "op", op, "key", key, "error", msg)
	return nil
}

func (fw *FailedOpWriter) Close() error {
	if fw == nil {
		return nil
	}
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.current != nil {
		err := fw.current.Close()
		fw.current = nil
		return err
	}
	return nil
}

// ReadFailedOps loads every journal entry under basePath, oldest file first.
func ReadFailedOps(basePath string) ([]FailedOp, error) {
	files, err := filepath.Glob(filepath.Join(basePath, "failed_ops_*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []FailedOp
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var op FailedOp
			if err := dec.Decode(&op); err != nil {
				return out, fmt.Errorf("decode %s: %w", filepath.Base(f), err)
			}
			out = append(out, op)
		}
	}
	return out, nil
}

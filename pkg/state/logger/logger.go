package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var Log *slog.Logger
var Audit *slog.Logger

var auditFile *os.File

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the console logger. When logsDir is non-empty an audit sink
// for admin actions is attached under it.
func Init(level string, logsDir string) {
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)}))
	if strings.TrimSpace(logsDir) != "" {
		attachAuditLogger(logsDir)
	}
}

// InitWriter points the logger at w. Used by tests and the CLI.
func InitWriter(level string, w io.Writer) {
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
}

func attachAuditLogger(logsDir string) {
	fname := filepath.Join(logsDir, "audit.log")
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit log file: %v\n", err)
		return
	}
	auditFile = f
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", fname)
}

// AuditEvent records an admin action in the audit sink and the console log.
func AuditEvent(event string, args ...any) {
	if Audit != nil {
		Audit.Info(event, args...)
	}
	Info(event, args...)
}

func Sync() {
	if auditFile != nil {
		_ = auditFile.Sync()
		_ = auditFile.Close()
		auditFile = nil
		Audit = nil
	}
}

func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

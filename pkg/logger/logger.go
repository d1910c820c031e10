package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var Log *slog.Logger

// audit is an optional dedicated audit logger writing JSON records to a
// file sink. When nil, audit events fall back to the main logger.
var audit *slog.Logger

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Init initializes the global slog logger with a text handler. The sink
// and level can be overridden via COMMSDB_LOG_SINK ("file:/path") and
// COMMSDB_LOG_LEVEL for tests and production.
func Init() {
	InitWithLevel(os.Getenv("COMMSDB_LOG_LEVEL"))
}

// InitWithLevel initializes the global logger honoring the provided
// level string ("debug", "info", "warn", "error"). An empty level falls
// back to the COMMSDB_LOG_LEVEL environment variable.
func InitWithLevel(level string) {
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("COMMSDB_LOG_LEVEL")
	}
	lv := parseLevel(level)

	if sink := os.Getenv("COMMSDB_LOG_SINK"); strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			Log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lv}))
			return
		}
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

// AttachAuditFileSink configures a JSON-file audit logger writing to
// <auditDir>/audit.log. If the file cannot be opened the function
// returns an error and leaves the sink unset.
func AttachAuditFileSink(auditDir string) error {
	if auditDir == "" {
		return fmt.Errorf("empty audit dir")
	}
	// Refuse symlinked audit paths to avoid TOCTOU surprises.
	if fi, err := os.Lstat(auditDir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink: %s", auditDir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("audit path exists and is not a directory: %s", auditDir)
		}
	}
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	fname := filepath.Join(auditDir, "audit.log")
	// Rotate oversized files on open rather than mid-write.
	if fi, err := os.Stat(fname); err == nil {
		const maxSize = 10 * 1024 * 1024
		if fi.Size() > maxSize {
			bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
			_ = os.Rename(fname, bak)
		}
	}
	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	// Initial marker so consumers (and tests) can observe the sink is live.
	audit.Info("audit_sink_attached", "path", fname)
	return nil
}

// Audit emits an audit record for an actor performing an action. Extra
// key/value pairs carry the action details (recipient, subject, ...).
func Audit(action, actor, actorRole string, args ...any) {
	kv := append([]any{"actor", actor, "role", actorRole}, args...)
	if audit != nil {
		audit.Info(action, kv...)
		return
	}
	if Log != nil {
		Log.Info("audit_"+action, kv...)
	}
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

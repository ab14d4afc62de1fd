// Package logging provides structured logging for git-theta using slog.
//
// Usage:
//
//	if err := logging.Init(logging.Options{Level: "debug"}); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithParam(ctx, "layers.3.weight")
//	logging.Info(ctx, "cleaning parameter", slog.String("update_type", "dense"))
package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/git-theta/theta/internal/paths"
)

// LogLevelEnvVar is the environment variable that controls log level.
const LogLevelEnvVar = "GIT_THETA_LOG_LEVEL"

// LogsDir is the directory where log files are stored, relative to the
// Git private directory.
const LogsDir = "theta/logs"

var (
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
	mu           sync.RWMutex
)

// Options configures Init.
type Options struct {
	// Level sets the log level when GIT_THETA_LOG_LEVEL is unset or
	// empty; the environment variable takes precedence. If both are
	// empty, "info" is the default.
	Level string
	// Name identifies the log file, e.g. the sub-command name
	// ("clean", "smudge", "post-commit"). Logs are written to
	// <git-dir>/theta/logs/<name>.log.
	Name string
}

// Init initializes the process-wide logger, writing JSON logs to
// <git-dir>/theta/logs/<name>.log. Falls back to stderr if the log file
// cannot be created or the repository root cannot be found.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	levelStr := os.Getenv(LogLevelEnvVar)
	if levelStr == "" {
		levelStr = opts.Level
	}
	level := parseLogLevel(levelStr)

	gitDir, err := paths.GitDir()
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logsPath := filepath.Join(gitDir, LogsDir)
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	name := opts.Name
	if name == "" {
		name = "theta"
	}
	logFilePath := filepath.Join(logsPath, name+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // name is a fixed sub-command identifier
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)

	return nil
}

// Close flushes and closes the log file, if one is open. Safe to call
// multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs a message with duration_ms computed from start. Intended
// for use with defer:
//
//	defer logging.LogDuration(ctx, slog.LevelDebug, "clean finished", time.Now())
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	durationMs := time.Since(start).Milliseconds()
	allAttrs := make([]any, 0, len(attrs)+1)
	allAttrs = append(allAttrs, slog.Int64("duration_ms", durationMs))
	allAttrs = append(allAttrs, attrs...)
	log(ctx, level, msg, allAttrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	allAttrs = append(allAttrs, attrsFromContext(ctx)...)
	allAttrs = append(allAttrs, attrs...)

	l.Log(context.Background(), level, msg, allAttrs...)
}

func attrsFromContext(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var attrs []any
	if v, ok := ctx.Value(paramKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("param", v))
	}
	if v, ok := ctx.Value(pathKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("path", v))
	}
	if v, ok := ctx.Value(updateTypeKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("update_type", v))
	}
	if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("component", v))
	}
	return attrs
}

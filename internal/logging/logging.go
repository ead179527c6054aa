package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// Setup installs a JSON logger on stdout as the slog default.
// level is one of DEBUG, INFO, WARN, ERROR; anything else means INFO.
func Setup(level string) {
	slog.SetDefault(New(os.Stdout, level))
}

// New returns a JSON logger writing to w. ERROR-level records carry a
// stack trace.
func New(w io.Writer, level string) *slog.Logger {
	json := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	return slog.New(&stackHandler{Handler: json, min: slog.LevelError})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exit is replaced in tests.
var exit = os.Exit

// Fatal reports a startup failure of the server or migrate command (bad
// configuration, unreachable storage, listener error) through the default
// logger and terminates the process with status 1.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	exit(1)
}

// maxStackBytes bounds the goroutine dump attached to one record.
const maxStackBytes = 4096

// stackHandler attaches the calling goroutine's stack to records at or above
// min, so a failed repository call or 500 response can be traced to its
// handler without a debugger.
type stackHandler struct {
	slog.Handler
	min slog.Level
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.min {
		buf := make([]byte, maxStackBytes)
		r.AddAttrs(slog.String("stacktrace", string(buf[:runtime.Stack(buf, false)])))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h *stackHandler) WithGroup(name string) slog.Handler {
	return &stackHandler{Handler: h.Handler.WithGroup(name), min: h.min}
}

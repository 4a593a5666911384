package app

import (
	"io"
	"log/slog"
	"os"

	"lawncare/internal/types"
)

// NewSlog creates a JSON slog.Logger on stdout at the given level.
func NewSlog(level string) *slog.Logger {
	return newSlog(os.Stdout, level)
}

func newSlog(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// slogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger has
// Info, Error and Warn already, but its With returns *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

// NewLogger adapts l to types.Logger.
func NewLogger(l *slog.Logger) types.Logger {
	return &slogAdapter{logger: l}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

// Package blog is a thin leveled-logging shim shaped like mcuboot's
// BOOT_LOG_DBG/INF/WRN/ERR macros, built on top of log/slog.
package blog

import (
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
)

// Logger mirrors the four log levels the original bootloader uses.
type Logger struct {
	l *slog.Logger
}

// New returns a Logger writing text-formatted records to w at the given level.
func New(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{l: slog.New(h)}
}

// Default returns a Logger writing to stderr at Info level.
func Default() *Logger {
	return New(os.Stderr, slog.LevelInfo)
}

func (lg *Logger) Dbg(msg string, args ...any) { lg.l.Debug(msg, args...) }
func (lg *Logger) Inf(msg string, args ...any) { lg.l.Info(msg, args...) }
func (lg *Logger) Wrn(msg string, args ...any) { lg.l.Warn(msg, args...) }
func (lg *Logger) Err(msg string, args ...any) { lg.l.Error(msg, args...) }

// Size renders a byte count the way the teacher formats human-readable sizes.
func Size(n uint64) string {
	return humanize.Bytes(n)
}

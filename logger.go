package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

func parseLevel(verbosity string) slog.Level {
	switch verbosity {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, verbosity string) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	level := parseLevel(verbosity)
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			NoColor:   noColor,
			Level:     level,
			AddSource: level < slog.LevelInfo,
		}),
	)
}

// SetupLogger installs the default logger writing to stderr.
func SetupLogger(verbosity string) {
	slog.SetDefault(newLogger(os.Stderr, verbosity))
}

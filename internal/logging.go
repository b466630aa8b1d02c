package internal

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the application logger. The json format writes to w,
// the text format writes a console log to stderr, coloured when stderr is
// a terminal.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	if cfg.LogFormat == LogFormatText {
		return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

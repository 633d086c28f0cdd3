package logger

import (
	"log/slog"
	"os"
)

// New returns the application logger: slog text output to stdout.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

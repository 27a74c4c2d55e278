package logger

import (
	"log/slog"
	"os"
)

// New returns the structured JSON logger the service runs with.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

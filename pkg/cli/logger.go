package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/getmockd/statemock/pkg/logging"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the operational logger. When logFile is set every record
// is also written to it as JSON.
func newLogger(stderr io.Writer, level, format, logFile string) (*slog.Logger, io.Closer, error) {
	cfg := logging.Config{
		Level:  logging.ParseLevel(level),
		Format: logging.ParseFormat(format),
		Output: stderr,
	}
	if logFile == "" {
		return logging.New(cfg), nopCloser{}, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	cfg.Tee = []slog.Handler{slog.NewJSONHandler(f, &slog.HandlerOptions{Level: cfg.Level})}
	return logging.New(cfg), f, nil
}

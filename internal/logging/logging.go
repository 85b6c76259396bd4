package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs a text slog handler on stderr at the given level
// ("debug", "info", "warn", "error").
func Init(level string) error {
	return initLogging(os.Stderr, level)
}

func initLogging(w io.Writer, level string) error {
	if level == "" {
		level = "info"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})))
	return nil
}

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/model"
)

// setupLogging points the standard logrus logger at the configured file.
// The board owns the terminal, so nothing is written to stderr.
func setupLogging(cfg model.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	if cfg.File == "" {
		log.SetOutput(io.Discard)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}
	log.SetOutput(f)
	return logFile{f}, nil
}

// logFile hands logging back to stderr before the file goes away.
type logFile struct {
	f *os.File
}

func (l logFile) Close() error {
	log.SetOutput(os.Stderr)
	return l.f.Close()
}

// Package logging builds the process logger.
//
// stdout carries the MCP protocol, so log output never goes there.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// FileName is the log file created inside Options.Dir.
const FileName = "castkeeper.log"

// Options selects level, format and an optional log directory.
type Options struct {
	Level  string
	Format string
	Dir    string
}

// New returns a configured logger and a closer for any opened file. The
// closer is always non-nil.
func New(opts Options, stderr io.Writer) (*logrus.Logger, func() error, error) {
	noop := func() error { return nil }
	if stderr == nil {
		stderr = os.Stderr
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, noop, err
	}

	log := logrus.New()
	log.SetLevel(level)
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		return nil, noop, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	if strings.TrimSpace(opts.Dir) == "" {
		log.SetOutput(stderr)
		return log, noop, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("logging: create log dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(opts.Dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, noop, fmt.Errorf("logging: open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(stderr, file))
	return log, file.Close, nil
}

func parseLevel(raw string) (logrus.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}

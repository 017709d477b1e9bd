// Package logging holds the process-wide structured logger and the
// CUPS-style access log of outgoing HTTP exchanges.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DebugEnv turns on debug logging when set to any non-empty value.
const DebugEnv = "CUPSBRIDGE_DEBUG"

type Config struct {
	// ErrorLog is a file path, "stderr", "stdout" or "none".
	ErrorLog  string
	AccessLog string
	MaxSize   int64
	Level     string
}

type manager struct {
	errorLog  *RotatingFile
	accessLog *RotatingFile
	logger    zerolog.Logger
}

var (
	globalMu sync.RWMutex
	global   = manager{logger: newLogger(os.Stderr, defaultLevel())}
)

func defaultLevel() zerolog.Level {
	if strings.TrimSpace(os.Getenv(DebugEnv)) != "" {
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure installs the error and access logs. An empty level falls back to
// CUPSBRIDGE_DEBUG.
func Configure(cfg Config) {
	level := defaultLevel()
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = parsed
		}
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	_ = global.errorLog.Close()
	_ = global.accessLog.Close()
	global.errorLog = NewRotatingFile(cfg.ErrorLog, cfg.MaxSize)
	global.accessLog = NewRotatingFile(cfg.AccessLog, cfg.MaxSize)
	var w io.Writer = os.Stderr
	if cfg.ErrorLog != "" {
		w = global.errorLog
	}
	global.logger = newLogger(w, level)
}

// Console switches the logger to human-readable output on w.
func Console(w io.Writer, level zerolog.Level) zerolog.Logger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).Level(level).With().Timestamp().Logger()
	globalMu.Lock()
	global.logger = l
	globalMu.Unlock()
	return l
}

// Logger returns the process logger.
func Logger() zerolog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global.logger
}

// Component returns the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

func Access(line string) {
	globalMu.RLock()
	logger := global.accessLog
	globalMu.RUnlock()
	if logger != nil {
		_ = logger.WriteLine(line)
	}
}

// Package logging wraps zerolog behind the small logging surface the rest of
// the engine uses. Console output goes to stderr; an optional JSON sink can
// be attached for post-run inspection of skipped files.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	logger  zerolog.Logger
	logFile *os.File
)

func init() {
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

// Setup configures the global logger. When logPath is non-empty a JSON log
// file is appended alongside the console writer; debug enables debug-level
// events.
func Setup(logPath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		writers = append(writers, f)
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// Close releases the optional file sink.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// DebugLog logs a formatted debug message.
func DebugLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// LogInfo logs a formatted info message.
func LogInfo(format string, args ...interface{}) {
	logger.Info().Msgf(format, args...)
}

// LogWarning logs a formatted warning.
func LogWarning(format string, args ...interface{}) {
	logger.Warn().Msgf(format, args...)
}

// LogError logs a formatted error.
func LogError(format string, args ...interface{}) {
	logger.Error().Msgf(format, args...)
}

// LogImageProcessed records the outcome of processing one screenshot.
func LogImageProcessed(path string, success bool, errMsg string) {
	if success {
		logger.Debug().Str("path", path).Msg("processed")
	} else {
		logger.Warn().Str("path", path).Str("error", errMsg).Msg("skipped")
	}
}

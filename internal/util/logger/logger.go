// Package logger provides the module's structured logging, built on
// log/slog with per-subsystem level control.
//
// Usage:
//
//	package discovery
//
//	import "github.com/dep2p/go-dht/internal/util/logger"
//
//	var log = logger.Logger("discovery")
//
//	func foo() {
//	    log.Info("peer discovered", "peer", peerID, "count", len(peers))
//	    log.Warn("fragment decode failed", "index", idx, "err", err)
//	}
//
// Environment configuration:
//
//	# default level info, discovery subsystem at debug
//	KADHT_LOG_LEVEL=discovery=debug,info
//
//	# JSON output
//	KADHT_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers caches one *slog.Logger per subsystem.
	loggers sync.Map // map[string]*slog.Logger

	// handlers caches one handler per subsystem, for runtime level changes.
	handlers sync.Map // map[string]*subsystemHandler

	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
)

// Logger returns the Logger for subsystem, configured from KADHT_LOG_LEVEL.
// Repeated calls with the same subsystem return the same instance.
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	level := cfg.LevelForSubsystem(subsystem)

	handler := newHandler(subsystem, level, cfg.Format)
	sl := slog.New(handler)

	actual, _ := loggers.LoadOrStore(subsystem, sl)
	if h, ok := handler.(*subsystemHandler); ok {
		handlers.Store(subsystem, h)
	}

	return actual.(*slog.Logger)
}

// GlobalLogger returns the logger for subsystem-less log lines.
func GlobalLogger() *slog.Logger {
	globalLoggerOnce.Do(func() {
		globalLogger = Logger("dht")
	})
	return globalLogger
}

// SetLevel adjusts a single subsystem's level at runtime.
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel adjusts every known subsystem's level at runtime.
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard returns a logger that drops everything — for tests that don't
// want log noise.
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With returns subsystem's logger pre-bound with args.
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// Debug logs at debug level on subsystem.
func Debug(subsystem, msg string, args ...any) { Logger(subsystem).Debug(msg, args...) }

// Info logs at info level on subsystem.
func Info(subsystem, msg string, args ...any) { Logger(subsystem).Info(msg, args...) }

// Warn logs at warn level on subsystem.
func Warn(subsystem, msg string, args ...any) { Logger(subsystem).Warn(msg, args...) }

// Error logs at error level on subsystem.
func Error(subsystem, msg string, args ...any) { Logger(subsystem).Error(msg, args...) }

// SetOutput redirects every logger's output, including ones already
// created — the handlers read through a dynamicWriter.
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

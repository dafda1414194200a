package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// globalOutput is the writer every subsystem handler reads through.
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex

	// recordsTotal counts emitted records by subsystem and level, wired to
	// a caller-supplied registry via RegisterMetrics. Nil until then, in
	// which case every handler's Handle skips the increment.
	recordsTotal   *prometheus.CounterVec
	recordsTotalMu sync.RWMutex
)

// RegisterMetrics wires a dht_log_records_total counter, labeled by
// subsystem and level, into reg. Subsystems running hot decode loops
// (wire) and subsystems that only log on state transitions (discovery,
// dhtnode) both flow through the same counter, so a single query
// distinguishes "many low-severity packets" from "one recurring error."
func RegisterMetrics(reg prometheus.Registerer) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dht_log_records_total",
		Help: "Log records emitted, by subsystem and level.",
	}, []string{"subsystem", "level"})
	reg.MustRegister(c)

	recordsTotalMu.Lock()
	recordsTotal = c
	recordsTotalMu.Unlock()
}

// dynamicWriter looks up globalOutput on every Write, so SetOutput affects
// loggers that already exist.
type dynamicWriter struct{}

func (w *dynamicWriter) Write(p []byte) (n int, err error) {
	globalOutputMu.RLock()
	output := globalOutput
	globalOutputMu.RUnlock()
	return output.Write(p)
}

// subsystemHandler is an slog.Handler with a runtime-adjustable level. It
// also feeds recordsTotal, so the logging and metrics paths can never
// drift apart about what actually got emitted.
type subsystemHandler struct {
	subsystem string
	level     slog.Level
	inner     slog.Handler
	mu        sync.RWMutex
}

func newHandler(subsystem string, level slog.Level, format LogFormat) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: ConfigFromEnv().AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	output := &dynamicWriter{}

	var inner slog.Handler
	if format == FormatJSON {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}

	inner = inner.WithAttrs([]slog.Attr{
		slog.String("subsystem", subsystem),
	})

	return &subsystemHandler{
		subsystem: subsystem,
		level:     level,
		inner:     inner,
	}
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return level >= h.level
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	recordsTotalMu.RLock()
	c := recordsTotal
	recordsTotalMu.RUnlock()
	if c != nil {
		c.WithLabelValues(h.subsystem, levelToString(r.Level)).Inc()
	}
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{
		subsystem: h.subsystem,
		level:     h.level,
		inner:     h.inner.WithAttrs(attrs),
	}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{
		subsystem: h.subsystem,
		level:     h.level,
		inner:     h.inner.WithGroup(name),
	}
}

// SetLevel adjusts this handler's level at runtime.
func (h *subsystemHandler) SetLevel(level slog.Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// discardHandler drops everything — used by Discard() in tests.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardHandler returns a handler that drops every record.
func DiscardHandler() slog.Handler {
	return discardHandler{}
}

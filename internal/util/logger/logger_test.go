package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)

	log := Logger("test")
	log.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected log message in buffer, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value in buffer, got: %s", output)
	}
	if !strings.Contains(output, "subsystem=test") {
		t.Errorf("expected subsystem=test in buffer, got: %s", output)
	}
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test2")

	buf := &bytes.Buffer{}
	SetOutput(buf)

	// Writing through a logger created before the switch must still land
	// in the new buffer — handlers read globalOutput dynamically.
	log.Info("after switch", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "after switch") {
		t.Errorf("expected log message in buffer, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value in buffer, got: %s", output)
	}
}

// wire gets a quieter out-of-the-box level than a subsystem with no
// baseline entry, since its decode path logs once per received packet.
func TestLevelForSubsystem_UsesDomainBaseline(t *testing.T) {
	cfg := &Config{DefaultLevel: slog.LevelDebug, SubsystemLevels: map[string]slog.Level{}}

	if got := cfg.LevelForSubsystem("wire"); got != slog.LevelWarn {
		t.Errorf("expected wire baseline warn, got %v", got)
	}
	if got := cfg.LevelForSubsystem("unrecognized"); got != slog.LevelDebug {
		t.Errorf("expected unbaselined subsystem to fall back to DefaultLevel, got %v", got)
	}

	cfg.SubsystemLevels["wire"] = slog.LevelDebug
	if got := cfg.LevelForSubsystem("wire"); got != slog.LevelDebug {
		t.Errorf("expected explicit override to beat the baseline, got %v", got)
	}
}

func TestRegisterMetrics_CountsEmittedRecords(t *testing.T) {
	ResetConfig()
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)

	buf := &bytes.Buffer{}
	SetOutput(buf)
	Logger("metrics-test").Info("hello")

	got := testutil.ToFloat64(recordsTotal.WithLabelValues("metrics-test", "info"))
	if got != 1 {
		t.Errorf("expected 1 recorded log, got %v", got)
	}
}

// Config parsing for the logger package, driven by environment variables:
//   - KADHT_LOG_LEVEL: subsystem=level,subsystem=level,defaultLevel
//     e.g. discovery=debug,wire=warn,info
//   - KADHT_LOG_FORMAT: text or json
//   - KADHT_LOG_ADD_SOURCE: true or false
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogFormat is the handler output format.
type LogFormat int

const (
	// FormatText is the default, human-readable format.
	FormatText LogFormat = iota
	// FormatJSON emits one JSON object per line.
	FormatJSON
)

// Config holds the resolved logging configuration.
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	Format          LogFormat
	AddSource       bool
}

// subsystemBaseline sets each subsystem's out-of-the-box verbosity before
// any KADHT_LOG_LEVEL override is applied. wire decodes run once per
// received packet and get noisy under normal traffic, so it starts
// quieter than the subsystems that only log on state transitions.
var subsystemBaseline = map[string]slog.Level{
	"wire":      slog.LevelWarn,
	"discovery": slog.LevelInfo,
	"dhtnode":   slog.LevelInfo,
}

// LevelForSubsystem returns the configured level for subsystem: an
// explicit KADHT_LOG_LEVEL entry wins, then subsystem's own baseline, then
// DefaultLevel.
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	if level, ok := subsystemBaseline[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv parses and caches the configuration from the environment.
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		configCache = parseConfig()
	})
	return configCache
}

func parseConfig() *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
		AddSource:       false,
	}

	if levelStr := os.Getenv("KADHT_LOG_LEVEL"); levelStr != "" {
		parseLevelConfig(cfg, levelStr)
	}

	if formatStr := os.Getenv("KADHT_LOG_FORMAT"); formatStr != "" {
		switch strings.ToLower(formatStr) {
		case "json":
			cfg.Format = FormatJSON
		default:
			cfg.Format = FormatText
		}
	}

	if addSourceStr := os.Getenv("KADHT_LOG_ADD_SOURCE"); addSourceStr != "" {
		cfg.AddSource = addSourceStr != "false" && addSourceStr != "0"
	}

	return cfg
}

// parseLevelConfig parses "subsystem=level,subsystem=level,defaultLevel".
func parseLevelConfig(cfg *Config, levelStr string) {
	parts := strings.Split(levelStr, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "=") {
			kv := strings.SplitN(part, "=", 2)
			if len(kv) == 2 {
				subsystem := strings.TrimSpace(kv[0])
				levelName := strings.TrimSpace(kv[1])
				if level, ok := parseLevel(levelName); ok {
					cfg.SubsystemLevels[subsystem] = level
				}
			}
		} else if level, ok := parseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig clears the cached configuration — test-only.
func ResetConfig() {
	configOnce = sync.Once{}
	configCache = nil
}

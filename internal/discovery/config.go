package discovery

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/jbenet/goprocess"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultPort is the UDP port both multicast groups are joined on unless
// overridden.
const DefaultPort uint16 = 8888

// Config configures a Service.
type Config struct {
	// Port is the UDP port joined on both multicast groups.
	Port uint16

	// Reactor is the parent goprocess.Process the Service's receive loops
	// are spawned under. A nil Reactor makes the Service its own root
	// (Owned); a non-nil Reactor makes it a child of caller-owned
	// lifecycle management (Borrowed).
	Reactor goprocess.Process

	// Logger receives discovery diagnostics. Defaults to the package
	// logger's "discovery" subsystem.
	Logger *slog.Logger

	// Clock drives the connectivity-change backoff timer. Defaults to the
	// real wall clock; tests inject a clock.NewMock().
	Clock clock.Clock

	// Registerer receives discovery metrics if non-nil. A nil Registerer
	// disables metrics entirely.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config with DefaultPort; every other field,
// including Clock, is left at its zero value for New to fill in (New
// defaults a nil Clock to the real clock).
func DefaultConfig() Config {
	return Config{Port: DefaultPort}
}

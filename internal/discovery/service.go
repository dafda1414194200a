package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/jbenet/goprocess"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dht/internal/util/logger"
	"github.com/dep2p/go-dht/pkg/types"
)

// Service owns one domainDiscovery per address family and fans every
// registration call out to whichever families are up. A family that
// failed to bind is silently skipped by every operation — New only fails
// if both did.
type Service struct {
	proc   goprocess.Process
	v4     *domainDiscovery
	v6     *domainDiscovery
	log    *slog.Logger
	closed atomic.Bool
}

// New constructs a Service, binding and joining both multicast groups.
// Per-family bind failures are logged and that family is left nil; New
// only returns an error if neither family could be started.
func New(cfg Config) (*Service, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Logger("discovery")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	var proc goprocess.Process
	if cfg.Reactor != nil {
		proc = goprocess.WithParent(cfg.Reactor) // Borrowed: lifecycle follows the caller's reactor
	} else {
		proc = goprocess.WithParent(goprocess.Background()) // Owned: the Service is its own root
	}

	met := newMetrics(cfg.Registerer)

	// Binding and joining the two multicast groups are independent; run them
	// concurrently so one family's setup latency doesn't delay the other.
	var v4, v6 *domainDiscovery
	var err4, err6 error
	var g errgroup.Group
	g.Go(func() error {
		v4, err4 = newDomainDiscovery(types.FamilyInet4, cfg.Port, cfg.Clock, cfg.Logger, met)
		if err4 != nil {
			cfg.Logger.Error("starting IPv4 discovery", "err", err4)
			v4 = nil
		}
		return nil
	})
	g.Go(func() error {
		v6, err6 = newDomainDiscovery(types.FamilyInet6, cfg.Port, cfg.Clock, cfg.Logger, met)
		if err6 != nil {
			cfg.Logger.Error("starting IPv6 discovery", "err", err6)
			v6 = nil
		}
		return nil
	})
	g.Wait()

	if v4 == nil && v6 == nil {
		proc.Close()
		return nil, fmt.Errorf("%w: ipv4: %v, ipv6: %v", ErrBothFamiliesFailed, err4, err6)
	}

	if v4 != nil {
		v4.run(proc)
	}
	if v6 != nil {
		v6.run(proc)
	}

	return &Service{proc: proc, v4: v4, v6: v6, log: cfg.Logger}, nil
}

func (s *Service) families() []*domainDiscovery {
	var out []*domainDiscovery
	if s.v4 != nil {
		out = append(out, s.v4)
	}
	if s.v6 != nil {
		out = append(out, s.v6)
	}
	return out
}

func (s *Service) familyFor(family types.Family) (*domainDiscovery, error) {
	switch family {
	case types.FamilyInet4:
		if s.v4 == nil {
			return nil, ErrFamilyUnavailable
		}
		return s.v4, nil
	case types.FamilyInet6:
		if s.v6 == nil {
			return nil, ErrFamilyUnavailable
		}
		return s.v6, nil
	default:
		return nil, ErrFamilyUnavailable
	}
}

// StartDiscovery registers name's listener on every available family and
// starts probing for it. A no-op once the Service has been stopped.
func (s *Service) StartDiscovery(name string, cb DiscoveredFunc) {
	if s.closed.Load() {
		return
	}
	for _, d := range s.families() {
		d.startDiscovery(name, cb)
	}
}

// StopDiscovery unregisters name from every family. It reports whether any
// family had it registered.
func (s *Service) StopDiscovery(name string) bool {
	if s.closed.Load() {
		return false
	}
	stopped := false
	for _, d := range s.families() {
		if d.stopDiscovery(name) {
			stopped = true
		}
	}
	return stopped
}

// StartPublish announces payload under name on every available family.
func (s *Service) StartPublish(name string, payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var err error
	for _, d := range s.families() {
		err = multierr.Append(err, d.startPublish(name, payload))
	}
	return err
}

// StartPublishFamily announces payload under name on a single family only.
func (s *Service) StartPublishFamily(family types.Family, name string, payload []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	d, err := s.familyFor(family)
	if err != nil {
		return err
	}
	return d.startPublish(name, payload)
}

// StopPublish removes name from every family's announcement.
func (s *Service) StopPublish(name string) bool {
	if s.closed.Load() {
		return false
	}
	stopped := false
	for _, d := range s.families() {
		ok, err := d.stopPublish(name)
		if err != nil {
			s.log.Error("rebuilding announcement buffer", "name", name, "err", err)
		}
		if ok {
			stopped = true
		}
	}
	return stopped
}

// StopPublishFamily removes name from a single family's announcement.
func (s *Service) StopPublishFamily(family types.Family, name string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	d, err := s.familyFor(family)
	if err != nil {
		return false, err
	}
	ok, err := d.stopPublish(name)
	return ok, err
}

// ConnectivityChanged rejoins both multicast groups and re-announces.
func (s *Service) ConnectivityChanged() {
	if s.closed.Load() {
		return
	}
	for _, d := range s.families() {
		d.connectivityChanged()
	}
}

// StopConnectivityChanged cancels the pending backoff timer on every
// family and resets the ladder to its floor.
func (s *Service) StopConnectivityChanged() {
	if s.closed.Load() {
		return
	}
	for _, d := range s.families() {
		d.stopConnectivityChanged()
	}
}

// Stop marks every family's listener and publisher idle and tears down the
// owned process tree; a Borrowed Service (constructed with a Reactor)
// leaves the reactor itself running for its owner to close. Stop is
// idempotent — every call after the first is a no-op.
func (s *Service) Stop() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	for _, d := range s.families() {
		d.stop()
	}
	s.proc.Close()
}

// LocalAddr exposes the bound socket address for family, used by tests
// that need to target probes precisely.
func (s *Service) LocalAddr(family types.Family) (net.Addr, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	d, err := s.familyFor(family)
	if err != nil {
		return nil, err
	}
	return d.localAddr(), nil
}

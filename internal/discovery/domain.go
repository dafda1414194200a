package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	tec "github.com/jbenet/go-temp-err-catcher"
	"github.com/jbenet/goprocess"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/dep2p/go-dht/pkg/types"
)

const (
	multicastAddrIPv4 = "239.192.0.1"
	multicastAddrIPv6 = "ff08::101"

	maxDatagramSize = 64 * 1024
)

// DiscoveredFunc receives one announcement entry matched to a registered
// service name, along with the sender's endpoint.
type DiscoveredFunc func(payload []byte, from types.SocketAddress)

// multicastJoiner is the subset of *ipv4.PacketConn / *ipv6.PacketConn used
// to (re)join the group on an explicit interface when the default route
// has no multicast-capable interface.
type multicastJoiner interface {
	JoinGroup(ifi *net.Interface, group net.Addr) error
}

// domainDiscovery is one address family's discovery socket and state.
// Two mutexes guard disjoint state and are never held across a network
// call: discoveryMu covers callbacks+drunning, publishMu covers
// messages+cachedBuf+lrunning.
type domainDiscovery struct {
	family types.Family
	log    *slog.Logger
	met    *metrics

	conn      net.PacketConn
	joiner    multicastJoiner
	groupAddr *net.UDPAddr

	discoveryMu sync.Mutex
	callbacks   map[string]DiscoveredFunc
	drunning    bool

	publishMu sync.Mutex
	messages  map[string][]byte
	cachedBuf []byte
	lrunning  bool

	backoff *connectivityBackoff
	catcher tec.TempErrCatcher
}

// newDomainDiscovery binds and joins the multicast group for one family.
// A failure here is non-fatal to the caller (Service.New logs it and
// disables that family) but fatal to this instance's construction.
func newDomainDiscovery(family types.Family, port uint16, clk clock.Clock, log *slog.Logger, met *metrics) (*domainDiscovery, error) {
	network, bindAddr, mcastAddr := "udp4", fmt.Sprintf(":%d", port), multicastAddrIPv4
	if family == types.FamilyInet6 {
		network, mcastAddr = "udp6", multicastAddrIPv6
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), network, bindAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", network, err)
	}

	group := net.ParseIP(mcastAddr)
	groupAddr := &net.UDPAddr{IP: group, Port: int(port)}

	var joiner multicastJoiner
	if family == types.FamilyInet4 {
		j := ipv4.NewPacketConn(pc)
		joiner = j
	} else {
		j := ipv6.NewPacketConn(pc)
		joiner = j
	}

	if err := joiner.JoinGroup(nil, groupAddr); err != nil {
		// Some platforms have no default multicast route; fall back to the
		// first multicast-capable interface found.
		ifi, ferr := firstMulticastInterface()
		if ferr != nil || joiner.JoinGroup(ifi, groupAddr) != nil {
			pc.Close()
			return nil, fmt.Errorf("join group %s: %w", mcastAddr, err)
		}
	}

	d := &domainDiscovery{
		family:    family,
		log:       log,
		met:       met,
		conn:      pc,
		joiner:    joiner,
		groupAddr: groupAddr,
		callbacks: map[string]DiscoveredFunc{},
		messages:  map[string][]byte{},
		backoff:   newConnectivityBackoff(clk),
	}
	d.catcher.IsTemp = func(err error) bool {
		ne, ok := err.(net.Error)
		return ok && ne.Timeout()
	}
	return d, nil
}

func firstMulticastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		return &ifi, nil
	}
	return nil, fmt.Errorf("no multicast-capable interface found")
}

func (d *domainDiscovery) familyLabel() string {
	if d.family == types.FamilyInet6 {
		return "ip6"
	}
	return "ip4"
}

// localAddr exposes the bound socket's address, used by tests that target
// probes at this instance directly.
func (d *domainDiscovery) localAddr() net.Addr {
	return d.conn.LocalAddr()
}

// run spawns the receive loop as a child of proc, tearing the socket down
// when proc closes: the socket's lifetime follows the process tree, not a
// bare goroutine.
func (d *domainDiscovery) run(parent goprocess.Process) goprocess.Process {
	return parent.Go(func(p goprocess.Process) {
		go func() {
			<-p.Closing()
			d.conn.Close()
		}()
		d.recvLoop()
	})
}

func (d *domainDiscovery) recvLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := d.conn.ReadFrom(buf)
		if err != nil {
			if d.catcher.IsTemporary(err) {
				continue
			}
			return
		}
		d.handlePacket(buf[:n], from)
	}
}

func (d *domainDiscovery) handlePacket(buf []byte, from net.Addr) {
	isProbe, entries, err := parseIncoming(buf)
	if err != nil {
		d.log.Debug("dropping unrecognized discovery packet", "from", from, "err", err)
		d.met.incDecodeError(d.familyLabel())
		return
	}

	sender := sockaddrFromNetAddr(from)

	if isProbe {
		d.met.incProbeReceived(d.familyLabel())
		d.publishTo(from)
		return
	}

	for name, raw := range entries {
		cb := d.lookupCallback(name)
		if cb == nil {
			continue
		}
		d.met.incAnnounceReceived(d.familyLabel())
		cb([]byte(raw), sender)
	}
}

// lookupCallback copies the handle out under discoveryMu and returns it for
// the caller to invoke unlocked, so the lock is never held across a
// callback invocation.
func (d *domainDiscovery) lookupCallback(name string) DiscoveredFunc {
	d.discoveryMu.Lock()
	defer d.discoveryMu.Unlock()
	if !d.drunning {
		return nil
	}
	return d.callbacks[name]
}

func sockaddrFromNetAddr(a net.Addr) types.SocketAddress {
	udp, ok := a.(*net.UDPAddr)
	if !ok {
		return types.SocketAddress{}
	}
	return types.SocketAddressFromUDP(udp)
}

// startDiscovery registers or replaces name's listener and ensures the
// receive loop has been started (the loop itself is started once by run();
// startDiscovery only flips drunning and sends the initial probe).
func (d *domainDiscovery) startDiscovery(name string, cb DiscoveredFunc) {
	d.discoveryMu.Lock()
	d.callbacks[name] = cb
	first := !d.drunning
	d.drunning = true
	d.discoveryMu.Unlock()

	if first {
		d.query(d.groupAddr)
	}
}

// stopDiscovery unregisters name; once the registry is empty the listener
// goes idle.
func (d *domainDiscovery) stopDiscovery(name string) bool {
	d.discoveryMu.Lock()
	defer d.discoveryMu.Unlock()
	if _, ok := d.callbacks[name]; !ok {
		return false
	}
	delete(d.callbacks, name)
	if len(d.callbacks) == 0 {
		d.drunning = false
	}
	return true
}

// startPublish stores payload under name, rebuilds the cached announcement
// buffer, and announces immediately.
func (d *domainDiscovery) startPublish(name string, payload []byte) error {
	d.publishMu.Lock()
	d.messages[name] = payload
	if err := d.reloadMessages(); err != nil {
		d.publishMu.Unlock()
		return err
	}
	d.lrunning = true
	d.publishMu.Unlock()

	d.publishTo(d.groupAddr)
	return nil
}

// stopPublish removes name; if the registry becomes empty the publisher
// goes idle, otherwise the cached buffer is rebuilt.
func (d *domainDiscovery) stopPublish(name string) (bool, error) {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()
	if _, ok := d.messages[name]; !ok {
		return false, nil
	}
	delete(d.messages, name)
	if len(d.messages) == 0 {
		d.lrunning = false
		d.cachedBuf = nil
		return true, nil
	}
	return true, d.reloadMessages()
}

func (d *domainDiscovery) reloadMessages() error {
	buf, err := encodeAnnouncement(d.messages)
	if err != nil {
		return err
	}
	d.cachedBuf = buf
	return nil
}

// stop marks both the listener and publisher idle. In-flight receives are
// allowed to complete naturally; the socket itself is closed by the owning
// goprocess teardown (run()).
func (d *domainDiscovery) stop() {
	d.discoveryMu.Lock()
	d.drunning = false
	d.discoveryMu.Unlock()

	d.publishMu.Lock()
	d.lrunning = false
	d.publishMu.Unlock()

	d.backoff.stop()
}

// reDiscover rejoins the multicast group (in case the interface set
// changed) and re-probes it.
func (d *domainDiscovery) reDiscover() {
	if err := d.joiner.JoinGroup(nil, d.groupAddr); err != nil {
		d.log.Warn("could not rejoin multicast group", "group", d.groupAddr, "err", err)
	}
	d.query(d.groupAddr)
}

// connectivityChanged rejoins the group, announces, and schedules the
// backoff ladder's next self-triggered re-announcement.
func (d *domainDiscovery) connectivityChanged() {
	d.backoff.trigger(func() {
		d.reDiscover()
		d.publishTo(d.groupAddr)
	})
}

func (d *domainDiscovery) stopConnectivityChanged() {
	d.backoff.stop()
}

func (d *domainDiscovery) query(to net.Addr) {
	d.discoveryMu.Lock()
	running := d.drunning
	d.discoveryMu.Unlock()
	if !running {
		return
	}

	data, err := encodeProbe()
	if err != nil {
		d.log.Error("encoding probe", "err", err)
		return
	}
	if _, err := d.conn.WriteTo(data, to); err != nil {
		d.log.Warn("sending probe", "to", to, "err", err)
		return
	}
	d.met.incProbeSent(d.familyLabel())
}

func (d *domainDiscovery) publishTo(to net.Addr) {
	d.publishMu.Lock()
	running := d.lrunning
	buf := d.cachedBuf
	d.publishMu.Unlock()
	if !running {
		return
	}

	if _, err := d.conn.WriteTo(buf, to); err != nil {
		d.log.Warn("sending announcement", "to", to, "err", err)
		return
	}
	d.met.incAnnounceSent(d.familyLabel())
}

func (d *domainDiscovery) close() error {
	return d.conn.Close()
}

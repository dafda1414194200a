package types

import "net"

// Family identifies the address family carried by a SocketAddress.
type Family uint8

const (
	// FamilyUnset marks a SocketAddress with no family set (the zero value).
	FamilyUnset Family = iota
	// FamilyInet4 is IPv4.
	FamilyInet4
	// FamilyInet6 is IPv6.
	FamilyInet6
)

// SocketAddress is a tagged union of an IPv4 or IPv6 endpoint. The zero
// value is the unset address.
type SocketAddress struct {
	family Family
	ip     [16]byte // IPv4 stored in the first 4 bytes when family == FamilyInet4
	port   uint16
}

// SocketAddressFromUDP builds a SocketAddress from a *net.UDPAddr.
func SocketAddressFromUDP(a *net.UDPAddr) SocketAddress {
	var sa SocketAddress
	if a == nil {
		return sa
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		sa.family = FamilyInet4
		copy(sa.ip[:4], ip4)
	} else if ip6 := a.IP.To16(); ip6 != nil {
		sa.family = FamilyInet6
		copy(sa.ip[:], ip6)
	}
	sa.port = uint16(a.Port)
	return sa
}

// FromRawSockaddr decodes the wire "sa" field: a 4-byte buffer is an IPv4
// in_addr, a 16-byte buffer an IPv6 in6_addr, port left at zero. Any other
// length is not an error — the caller should simply drop the field and
// leave the address at its zero value.
func FromRawSockaddr(b []byte) (SocketAddress, bool) {
	var sa SocketAddress
	switch len(b) {
	case 4:
		sa.family = FamilyInet4
		copy(sa.ip[:4], b)
		return sa, true
	case 16:
		sa.family = FamilyInet6
		copy(sa.ip[:], b)
		return sa, true
	default:
		return SocketAddress{}, false
	}
}

// Family reports the address family.
func (s SocketAddress) Family() Family { return s.family }

// IsUnset reports whether no family has been set.
func (s SocketAddress) IsUnset() bool { return s.family == FamilyUnset }

// Port returns the port, or zero if unset.
func (s SocketAddress) Port() uint16 { return s.port }

// ZeroPort returns a copy of s with the port cleared — used when embedding a
// peer's self-reported address inside a message.
func (s SocketAddress) ZeroPort() SocketAddress {
	s.port = 0
	return s
}

// WithPort returns a copy of s with the port set.
func (s SocketAddress) WithPort(port uint16) SocketAddress {
	s.port = port
	return s
}

// IP returns the net.IP representation, or nil if unset.
func (s SocketAddress) IP() net.IP {
	switch s.family {
	case FamilyInet4:
		ip := make(net.IP, 4)
		copy(ip, s.ip[:4])
		return ip
	case FamilyInet6:
		ip := make(net.IP, 16)
		copy(ip, s.ip[:])
		return ip
	default:
		return nil
	}
}

// Raw4 returns the raw 4-byte IPv4 representation and true, if the family is
// IPv4.
func (s SocketAddress) Raw4() ([4]byte, bool) {
	var b [4]byte
	if s.family != FamilyInet4 {
		return b, false
	}
	copy(b[:], s.ip[:4])
	return b, true
}

// Raw16 returns the raw 16-byte IPv6 representation and true, if the family
// is IPv6.
func (s SocketAddress) Raw16() ([16]byte, bool) {
	if s.family != FamilyInet6 {
		return [16]byte{}, false
	}
	return s.ip, true
}

// UDPAddr converts s to a *net.UDPAddr, or nil if unset.
func (s SocketAddress) UDPAddr() *net.UDPAddr {
	ip := s.IP()
	if ip == nil {
		return nil
	}
	return &net.UDPAddr{IP: ip, Port: int(s.port)}
}

// String renders a host:port representation, or "" when unset.
func (s SocketAddress) String() string {
	if s.IsUnset() {
		return ""
	}
	return s.UDPAddr().String()
}

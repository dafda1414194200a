package discovery

import "errors"

var (
	// ErrBothFamiliesFailed is returned by New when neither the IPv4 nor
	// the IPv6 socket could be bound.
	ErrBothFamiliesFailed = errors.New("discovery: neither IPv4 nor IPv6 could be started")

	// ErrFamilyUnavailable is returned by family-qualified operations when
	// that family's domainDiscovery never started.
	ErrFamilyUnavailable = errors.New("discovery: address family not available")

	// ErrClosed is returned by operations called after Stop.
	ErrClosed = errors.New("discovery: service stopped")
)

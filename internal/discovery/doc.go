// Package discovery implements dual-stack LAN peer discovery over IP
// multicast: a probe/announce protocol encoded the same way as the RPC
// wire codec, used by nodes to find each other on a local network without
// any bootstrap list.
//
// One domainDiscovery runs per address family (IPv4 group 239.192.0.1,
// IPv6 group ff08::101); Service fans registration calls out to whichever
// families started successfully.
package discovery

// Package types defines the shared wire-level primitives used by the DHT
// message codec and the LAN peer-discovery service: Fingerprint (160-bit
// identifiers), SocketAddress (a tagged IPv4/IPv6 endpoint), Blob
// (length-prefixed byte vectors) and the minimal Value/Node shapes the codec
// decodes into.
//
// This is the lowest-level package in the module — it imports nothing else
// from this repo.
package types

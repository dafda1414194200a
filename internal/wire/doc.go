// Package wire implements the DHT RPC message codec: decoding inbound
// datagrams into a ParsedMessage and encoding outbound requests/replies,
// using the compact binary object encoding (MessagePack family).
//
// The envelope and argument keys, the kind-discrimination priority, the
// value-fragment reassembly rules and the error taxonomy all follow the
// wire contract of an existing deployed DHT — every key name, including the
// historical "fileds" misspelling, is load-bearing and must round-trip
// verbatim.
package wire

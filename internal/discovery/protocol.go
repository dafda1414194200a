package discovery

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"
)

// probeAtom is the wire shape of a discovery probe: the bare string "q".
// Receiving it — while a local publisher is active — triggers an
// immediate unicast announcement back to the sender.
const probeAtom = "q"

var errUnrecognizedPacket = errors.New("discovery: packet is neither a probe atom nor an announcement map")

// parseIncoming classifies one received datagram: either the probe atom
// (isProbe=true, entries=nil) or an announcement map of service name to opaque
// payload. Any other shape is logged and ignored rather than tearing down
// the socket, and reported via errUnrecognizedPacket.
func parseIncoming(buf []byte) (isProbe bool, entries map[string]msgpack.RawMessage, err error) {
	var s string
	if err := msgpack.Unmarshal(buf, &s); err == nil {
		if s == probeAtom {
			return true, nil, nil
		}
		return false, nil, errUnrecognizedPacket
	}

	var m map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(buf, &m); err == nil {
		return false, m, nil
	}

	return false, nil, errUnrecognizedPacket
}

func encodeProbe() ([]byte, error) {
	return msgpack.Marshal(probeAtom)
}

// encodeAnnouncement builds the cached announcement buffer from the
// registry of published payloads, each of which is already msgpack-encoded
// by the caller — reusing the raw bytes without a re-encode round trip.
func encodeAnnouncement(messages map[string][]byte) ([]byte, error) {
	entries := make(map[string]msgpack.RawMessage, len(messages))
	for name, payload := range messages {
		entries[name] = msgpack.RawMessage(payload)
	}
	return msgpack.Marshal(entries)
}

package wire

import (
	"github.com/dep2p/go-dht/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Append merges the fragment chunks carried by block (a decoded ValueData
// message) into m's own reassembly state.
//
// A chunk is accepted only when its offset equals the current buffer
// length for that slot and the slot isn't already full; anything else —
// including an out-of-order fragment — is silently dropped. Append returns
// true iff at least one byte of any slot advanced.
func (m *ParsedMessage) Append(block *ParsedMessage) bool {
	advanced := false
	for idx, chunk := range block.ValueParts {
		slot, ok := m.ValueParts[idx]
		if !ok || uint32(len(slot.Buffer)) >= slot.Total {
			continue
		}
		if chunk.Total != uint32(len(slot.Buffer)) {
			// out-of-order packet; reassembly gaps are not tracked
			continue
		}
		if len(chunk.Buffer) == 0 {
			continue
		}
		slot.Buffer = append(slot.Buffer, chunk.Buffer...)
		advanced = true
	}
	return advanced
}

// Complete reports whether every slot's buffer has reached its declared
// total. On success each buffer is decoded as a self-contained Value and
// appended to m.Values, and m becomes immutable.
func (m *ParsedMessage) Complete() bool {
	for _, slot := range m.ValueParts {
		if slot.Total > uint32(len(slot.Buffer)) {
			return false
		}
	}
	for idx, slot := range m.ValueParts {
		v, err := types.Value{}.Decode(msgpack.RawMessage(slot.Buffer))
		if err != nil {
			// a malformed fragment payload is a per-entry decode failure,
			// not fatal for the message; it is simply not added to Values.
			log.Debug("reassembled fragment failed to decode as a value", "index", idx, "err", ErrValueDecode)
			continue
		}
		m.Values = append(m.Values, v)
	}
	m.done = true
	return true
}

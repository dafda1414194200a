package wire

import (
	"time"

	"github.com/dep2p/go-dht/pkg/types"
)

// MessageType discriminates the eleven RPC message kinds sharing one
// envelope (plus MessageTypeUnknown for the zero value).
type MessageType uint8

// Message kinds. The decoder tests them in a fixed priority order that
// differs from the declaration order below: Error, Reply, ValueData,
// ValueUpdate, then the seven query verbs.
const (
	MessageTypeUnknown MessageType = iota
	MessageTypePing
	MessageTypeFindNode
	MessageTypeGetValues
	MessageTypeAnnounceValue
	MessageTypeListen
	MessageTypeRefresh
	MessageTypeUpdateValue
	MessageTypeReply
	MessageTypeError
	MessageTypeValueData
	MessageTypeValueUpdate
)

// String renders the MessageType for logging.
func (k MessageType) String() string {
	switch k {
	case MessageTypePing:
		return "ping"
	case MessageTypeFindNode:
		return "find_node"
	case MessageTypeGetValues:
		return "get_values"
	case MessageTypeAnnounceValue:
		return "announce_value"
	case MessageTypeListen:
		return "listen"
	case MessageTypeRefresh:
		return "refresh"
	case MessageTypeUpdateValue:
		return "update_value"
	case MessageTypeReply:
		return "reply"
	case MessageTypeError:
		return "error"
	case MessageTypeValueData:
		return "value_data"
	case MessageTypeValueUpdate:
		return "value_update"
	default:
		return "unknown"
	}
}

// Want is a bitset over requested address families. -1 (WantUnset) means
// "unset, infer from sender family".
type Want int32

const (
	// WantUnset is the wire "-1" sentinel: no preference stated.
	WantUnset Want = -1
	// Want4 requests IPv4 nodes.
	Want4 Want = 1 << 0
	// Want6 requests IPv6 nodes.
	Want6 Want = 1 << 1
)

// MaxValueSize bounds the size of a single Value. It is a deployment
// constant left mutable so an embedding binary can tune it; the codec only
// ever enforces declared size <= MaxValueSize+32.
var MaxValueSize uint32 = 56 * 1024

// FarFuture is the saturating sentinel used for CreatedAt when the "c"
// argument is absent.
var FarFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// FragmentPart is one entry of the wire-level value_parts map. Its Total
// field is overloaded by the message kind it was decoded from:
// on an AnnounceValue-style declaration it is the declared total size of a
// fresh slot; on a raw, not-yet-merged ValueData block it is instead the
// byte offset of that one chunk within the eventual buffer. Append()
// resolves the ambiguity by only ever reading Total from the accumulator's
// own slots and using the block's Total purely as an offset to validate
// against.
type FragmentPart struct {
	Total  uint32
	Buffer types.Blob
}

// FieldValueIndex is one stride of a "fileds" projection.
type FieldValueIndex struct {
	Fields []string
	Values [][]byte
}

// QueryFilter is the nested predicate carried in argQuery ("a.q"). Its
// semantics belong to the routing layer; the codec only needs to
// round-trip it.
type QueryFilter struct {
	Field string
	Op    byte
	Value []byte
}

// ParsedMessage is the central codec output.
type ParsedMessage struct {
	Kind MessageType

	SenderID  types.Fingerprint
	NetworkID uint32
	IsClient  bool

	InfoHash types.Fingerprint
	Target   types.Fingerprint

	TransactionID uint32
	SocketID      uint32

	Token types.Blob

	ValueID   uint64
	CreatedAt time.Time

	Nodes4Raw types.Blob
	Nodes6Raw types.Blob

	Values       []types.Value
	RefreshedIDs []uint64
	ExpiredIDs   []uint64

	FieldIndex []FieldValueIndex

	// ValueParts is the fragment-reassembly state, keyed by fragment index.
	ValueParts map[uint32]*FragmentPart

	Query QueryFilter

	Want Want

	ErrorCode uint16

	UserAgent string
	Version   int32

	FromAddr types.SocketAddress

	done bool // true once Complete() has returned true
}

// IsDone reports whether Complete() has already succeeded, after which the
// message must not be mutated further.
func (m *ParsedMessage) IsDone() bool { return m.done }

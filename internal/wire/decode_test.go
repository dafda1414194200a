package wire

import (
	"net"
	"testing"
	"time"

	"github.com/dep2p/go-dht/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecode_KindDiscrimination(t *testing.T) {
	tests := []struct {
		name     string
		envelope map[string]interface{}
		want     MessageType
	}{
		{"ping", map[string]interface{}{"y": "q", "q": "ping", "a": map[string]interface{}{}}, MessageTypePing},
		{"find", map[string]interface{}{"y": "q", "q": "find", "a": map[string]interface{}{}}, MessageTypeFindNode},
		{"get", map[string]interface{}{"y": "q", "q": "get", "a": map[string]interface{}{}}, MessageTypeGetValues},
		{"put", map[string]interface{}{"y": "q", "q": "put", "a": map[string]interface{}{}}, MessageTypeAnnounceValue},
		{"listen", map[string]interface{}{"y": "q", "q": "listen", "a": map[string]interface{}{}}, MessageTypeListen},
		{"refresh", map[string]interface{}{"y": "q", "q": "refresh", "a": map[string]interface{}{}}, MessageTypeRefresh},
		{"update-query", map[string]interface{}{"y": "q", "q": "update", "a": map[string]interface{}{}}, MessageTypeUpdateValue},
		{"reply", map[string]interface{}{"r": map[string]interface{}{}}, MessageTypeReply},
		{"error", map[string]interface{}{"e": []interface{}{404}}, MessageTypeError},
		{"value-data", map[string]interface{}{"p": map[uint32]interface{}{}}, MessageTypeValueData},
		{"value-update", map[string]interface{}{"u": map[string]interface{}{}}, MessageTypeValueUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := msgpack.Marshal(tt.envelope)
			require.NoError(t, err)

			m, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Kind)
		})
	}
}

// e takes priority over r/p/u even when several keys are present at once.
func TestDecode_KindPriority_ErrorWinsOverReply(t *testing.T) {
	envelope := map[string]interface{}{
		"e": []interface{}{1},
		"r": map[string]interface{}{"sid": 7},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, m.Kind)
}

func TestDecode_UnknownShape_IsMalformed(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"t": 1})
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecode_BadQueryVerb_IsMalformed(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"y": "q", "q": "bogus", "a": map[string]interface{}{}})
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecode_MissingArgsOnQuery_IsMalformed(t *testing.T) {
	data, err := msgpack.Marshal(map[string]interface{}{"y": "q", "q": "ping"})
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

// A Ping query round-trips through Encode/Decode with its identifying
// fields intact.
func TestRoundTrip_Ping(t *testing.T) {
	sender, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x11))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:          MessageTypePing,
		TransactionID: 42,
		SenderID:      sender,
		SocketID:      7,
		CreatedAt:     FarFuture,
		Want:          WantUnset,
		ValueParts:    map[uint32]*FragmentPart{},
	}

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, MessageTypePing, decoded.Kind)
	assert.Equal(t, uint32(42), decoded.TransactionID)
	assert.True(t, decoded.SenderID.Equal(sender))
	assert.Equal(t, uint32(7), decoded.SocketID)
}

// Every query verb round-trips its identifying args through Encode/Decode.
func TestRoundTrip_FindNode(t *testing.T) {
	target, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x22))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:       MessageTypeFindNode,
		Target:     target,
		Want:       Want4 | Want6,
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeFindNode, decoded.Kind)
	assert.True(t, decoded.Target.Equal(target))
	assert.Equal(t, Want4|Want6, decoded.Want)
}

func TestRoundTrip_GetValues(t *testing.T) {
	infoHash, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x33))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:       MessageTypeGetValues,
		InfoHash:   infoHash,
		Query:      QueryFilter{Field: "owner", Op: 1, Value: []byte("alice")},
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeGetValues, decoded.Kind)
	assert.True(t, decoded.InfoHash.Equal(infoHash))
	assert.Equal(t, original.Query, decoded.Query)
}

func TestRoundTrip_AnnounceValue(t *testing.T) {
	infoHash, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x44))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:       MessageTypeAnnounceValue,
		InfoHash:   infoHash,
		Token:      types.Blob("tok"),
		Values:     []types.Value{{ID: 5, Data: types.Blob("payload")}},
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeAnnounceValue, decoded.Kind)
	assert.True(t, decoded.InfoHash.Equal(infoHash))
	assert.Equal(t, original.Token, decoded.Token)
	require.Len(t, decoded.Values, 1)
	assert.Equal(t, types.Blob("payload"), decoded.Values[0].Data)
}

func TestRoundTrip_Listen(t *testing.T) {
	infoHash, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x55))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:       MessageTypeListen,
		InfoHash:   infoHash,
		SocketID:   3,
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeListen, decoded.Kind)
	assert.True(t, decoded.InfoHash.Equal(infoHash))
	assert.Equal(t, uint32(3), decoded.SocketID)
}

func TestRoundTrip_Refresh(t *testing.T) {
	original := &ParsedMessage{
		Kind:         MessageTypeRefresh,
		RefreshedIDs: []uint64{1, 2, 3},
		CreatedAt:    FarFuture,
		ValueParts:   map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeRefresh, decoded.Kind)
	assert.Equal(t, []uint64{1, 2, 3}, decoded.RefreshedIDs)
}

// MessageTypeUpdateValue is the "update" query verb, distinct from the
// MessageTypeValueUpdate "u"-keyed kind below — they must not collide on
// the wire.
func TestRoundTrip_UpdateValue(t *testing.T) {
	original := &ParsedMessage{
		Kind:       MessageTypeUpdateValue,
		ValueID:    99,
		ExpiredIDs: []uint64{7},
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeUpdateValue, decoded.Kind)
	assert.Equal(t, uint64(99), decoded.ValueID)
	assert.Equal(t, []uint64{7}, decoded.ExpiredIDs)
}

func TestRoundTrip_Reply(t *testing.T) {
	sender, err := types.FingerprintFromBytes(bytesOfLen(types.FingerprintSize, 0x66))
	require.NoError(t, err)

	original := &ParsedMessage{
		Kind:       MessageTypeReply,
		SenderID:   sender,
		Nodes4Raw:  types.Blob("nodes4"),
		Nodes6Raw:  types.Blob("nodes6"),
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeReply, decoded.Kind)
	assert.True(t, decoded.SenderID.Equal(sender))
	assert.Equal(t, original.Nodes4Raw, decoded.Nodes4Raw)
	assert.Equal(t, original.Nodes6Raw, decoded.Nodes6Raw)
}

func TestRoundTrip_Error(t *testing.T) {
	original := &ParsedMessage{
		Kind:       MessageTypeError,
		ErrorCode:  404,
		Token:      types.Blob("tok"),
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeError, decoded.Kind)
	assert.Equal(t, uint16(404), decoded.ErrorCode)
	assert.Equal(t, original.Token, decoded.Token)
}

func TestRoundTrip_ValueData(t *testing.T) {
	original := &ParsedMessage{
		Kind: MessageTypeValueData,
		ValueParts: map[uint32]*FragmentPart{
			0: {Total: 5, Buffer: types.Blob("hello")},
		},
		CreatedAt: FarFuture,
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeValueData, decoded.Kind)
	require.Contains(t, decoded.ValueParts, uint32(0))
	assert.Equal(t, uint32(5), decoded.ValueParts[0].Total)
	assert.Equal(t, types.Blob("hello"), decoded.ValueParts[0].Buffer)
}

// MessageTypeValueUpdate is the "u"-keyed kind, distinct from the
// MessageTypeUpdateValue query verb above.
func TestRoundTrip_ValueUpdate(t *testing.T) {
	original := &ParsedMessage{
		Kind:       MessageTypeValueUpdate,
		ValueID:    12,
		Token:      types.Blob("tok"),
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, MessageTypeValueUpdate, decoded.Kind)
	assert.Equal(t, uint64(12), decoded.ValueID)
	assert.Equal(t, original.Token, decoded.Token)
}

// UserAgent, NetworkID and IsClient live in the shared envelope header,
// while Version and CreatedAt travel in the query's args; all five survive
// a round trip.
func TestRoundTrip_EnvelopeHeaderFields(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	original := &ParsedMessage{
		Kind:       MessageTypePing,
		UserAgent:  "dht-node/1",
		Version:    7,
		NetworkID:  0xBEEF,
		IsClient:   true,
		CreatedAt:  createdAt,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	assert.Equal(t, "dht-node/1", decoded.UserAgent)
	assert.Equal(t, int32(7), decoded.Version)
	assert.Equal(t, uint32(0xBEEF), decoded.NetworkID)
	assert.True(t, decoded.IsClient)
	assert.True(t, decoded.CreatedAt.Equal(createdAt))
}

// A peer-reported socket address round-trips through the "sa" field.
func TestRoundTrip_FromAddr(t *testing.T) {
	udpAddr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 6881}
	original := &ParsedMessage{
		Kind:       MessageTypeReply,
		FromAddr:   types.SocketAddressFromUDP(udpAddr).ZeroPort(),
		CreatedAt:  FarFuture,
		ValueParts: map[uint32]*FragmentPart{},
	}

	decoded := roundTrip(t, original)
	require.False(t, decoded.FromAddr.IsUnset())
	assert.Equal(t, types.FamilyInet4, decoded.FromAddr.Family())
	assert.Equal(t, original.FromAddr.IP(), decoded.FromAddr.IP())
}

func roundTrip(t *testing.T, original *ParsedMessage) *ParsedMessage {
	t.Helper()
	data, err := Encode(original)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	return decoded
}

// A value declared across two ValueData fragments reassembles once both
// chunks have arrived, in order.
func TestFragmentReassembly_InOrder(t *testing.T) {
	v := types.Value{ID: 9, Data: types.Blob("hello fragment world")}
	payload, err := msgpack.Marshal(v)
	require.NoError(t, err)
	require.True(t, len(payload) > 10, "need a payload long enough to split")

	half := len(payload) / 2

	acc := &ParsedMessage{
		Kind:       MessageTypeReply,
		ValueParts: map[uint32]*FragmentPart{0: {Total: uint32(len(payload))}},
	}

	block1 := &ParsedMessage{ValueParts: map[uint32]*FragmentPart{
		0: {Total: 0, Buffer: types.Blob(payload[:half])},
	}}
	block2 := &ParsedMessage{ValueParts: map[uint32]*FragmentPart{
		0: {Total: uint32(half), Buffer: types.Blob(payload[half:])},
	}}

	assert.True(t, acc.Append(block1))
	assert.False(t, acc.Complete())
	assert.True(t, acc.Append(block2))
	assert.True(t, acc.Complete())
	require.Len(t, acc.Values, 1)
	assert.Equal(t, v.Data, acc.Values[0].Data)
	assert.True(t, acc.IsDone())
}

// A fragment that arrives out of order (wrong offset) is dropped, not
// merged — and does not advance the slot.
func TestFragmentReassembly_OutOfOrderDropped(t *testing.T) {
	payload := []byte("0123456789")
	acc := &ParsedMessage{ValueParts: map[uint32]*FragmentPart{
		0: {Total: uint32(len(payload))},
	}}

	// offset 5 is claimed before any bytes have arrived (should be 0).
	stray := &ParsedMessage{ValueParts: map[uint32]*FragmentPart{
		0: {Total: 5, Buffer: types.Blob(payload[5:])},
	}}

	assert.False(t, acc.Append(stray))
	assert.Equal(t, 0, len(acc.ValueParts[0].Buffer))
	assert.False(t, acc.Complete())
}

// A peer-reported address of the wrong byte length is dropped rather
// than surfaced as a decode error.
func TestDecode_BadPeerAddressLength_SilentlyDropped(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{"sa": []byte{1, 2, 3, 4, 5, 6, 7}},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, m.FromAddr.IsUnset())
}

func TestDecode_OversizeValueDeclaration_Skipped(t *testing.T) {
	oldMax := MaxValueSize
	MaxValueSize = 16
	defer func() { MaxValueSize = oldMax }()

	envelope := map[string]interface{}{
		"r": map[string]interface{}{"values": []interface{}{1000}},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, m.ValueParts)
}

func TestDecode_Fileds_StrideDecoding(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{
			"fileds": map[string]interface{}{
				"f": []string{"owner", "id"},
				"v": [][]byte{[]byte("alice"), []byte("1"), []byte("bob"), []byte("2")},
			},
		},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, m.FieldIndex, 2)
	assert.Equal(t, []string{"owner", "id"}, m.FieldIndex[0].Fields)
	assert.Equal(t, []byte("alice"), m.FieldIndex[0].Values[0])
	assert.Equal(t, []byte("bob"), m.FieldIndex[1].Values[0])
}

func TestDecode_FiledsMissingNames_IsMalformed(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{
			"fileds": map[string]interface{}{"v": [][]byte{}},
		},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecode_ValuesTakesPriorityOverFileds(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{
			"values": []interface{}{},
			"fileds": map[string]interface{}{
				"f": []string{"owner"},
				"v": [][]byte{[]byte("alice")},
			},
		},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, m.FieldIndex)
}

func TestDecode_WantBitset(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{"w": []int{wantFamilyInet4, wantFamilyInet6}},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Want4|Want6, m.Want)
}

func TestDecode_WantNotArray_IsMalformed(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{"w": "nope"},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecode_TransactionID_BinaryShape(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{},
		"t": []byte{0x00, 0x00, 0x01, 0x2c},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	m, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12c), m.TransactionID)
}

func TestDecode_TransactionID_BadBinaryLength_IsMalformed(t *testing.T) {
	envelope := map[string]interface{}{
		"r": map[string]interface{}{},
		"t": []byte{0x01, 0x02},
	}
	data, err := msgpack.Marshal(envelope)
	require.NoError(t, err)

	_, err = Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func bytesOfLen(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

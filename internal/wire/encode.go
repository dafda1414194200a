package wire

import (
	"github.com/dep2p/go-dht/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes m back into a wire envelope such that decoding the
// result is semantically equivalent to m. It is the inverse of Decode for
// every MessageType except the caller is responsible for not re-encoding a
// ParsedMessage produced by a partial fragment merge — encode a completed
// message instead (IsDone).
func Encode(m *ParsedMessage) ([]byte, error) {
	envelope := map[string]interface{}{}

	if m.TransactionID != 0 {
		envelope[keyTID] = m.TransactionID
	}
	if m.UserAgent != "" {
		envelope[keyUA] = m.UserAgent
	}
	if m.NetworkID != 0 {
		envelope[keyNetID] = m.NetworkID
	}
	if m.IsClient {
		envelope[keyClient] = m.IsClient
	}

	switch m.Kind {
	case MessageTypeValueData:
		entries := map[uint32]map[string]interface{}{}
		for idx, part := range m.ValueParts {
			entries[idx] = map[string]interface{}{
				fragOffset: part.Total,
				fragData:   []byte(part.Buffer),
			}
		}
		envelope[keyValue] = entries

	case MessageTypeError:
		envelope[keyError] = []interface{}{m.ErrorCode}
		if args := buildArgs(m); len(args) > 0 {
			envelope[keyArgs] = args
		}

	case MessageTypeReply:
		envelope[keyReply] = buildArgs(m)

	case MessageTypeValueUpdate:
		envelope[keyUpdate] = buildArgs(m)

	default:
		verb, err := verbForKind(m.Kind)
		if err != nil {
			return nil, err
		}
		envelope[keyKind] = "q"
		envelope[keyQuery] = verb
		envelope[keyArgs] = buildArgs(m)
	}

	return msgpack.Marshal(envelope)
}

func verbForKind(k MessageType) (string, error) {
	switch k {
	case MessageTypePing:
		return queryPing, nil
	case MessageTypeFindNode:
		return queryFind, nil
	case MessageTypeGetValues:
		return queryGet, nil
	case MessageTypeAnnounceValue:
		return queryPut, nil
	case MessageTypeListen:
		return queryListen, nil
	case MessageTypeRefresh:
		return queryRefresh, nil
	case MessageTypeUpdateValue:
		return queryUpdate, nil
	default:
		return "", malformed("y")
	}
}

func buildArgs(m *ParsedMessage) map[string]interface{} {
	args := map[string]interface{}{}

	if m.SocketID != 0 {
		args[argSocketID] = m.SocketID
	}
	if !m.SenderID.IsEmpty() {
		args[argID] = m.SenderID
	}
	if !m.InfoHash.IsEmpty() {
		args[argInfoHash] = m.InfoHash
	}
	if !m.Target.IsEmpty() {
		args[argTarget] = m.Target
	}
	if m.Query.Field != "" {
		args[argQuery] = map[string]interface{}{
			"field": m.Query.Field,
			"op":    m.Query.Op,
			"value": m.Query.Value,
		}
	}
	if len(m.Token) > 0 {
		args[argToken] = []byte(m.Token)
	}
	if m.ValueID != 0 {
		args[argValueID] = m.ValueID
	}
	if len(m.Nodes4Raw) > 0 {
		args[argNodes4] = []byte(m.Nodes4Raw)
	}
	if len(m.Nodes6Raw) > 0 {
		args[argNodes6] = []byte(m.Nodes6Raw)
	}
	if !m.CreatedAt.IsZero() && !m.CreatedAt.Equal(FarFuture) {
		args[argCreation] = m.CreatedAt.Unix()
	}
	if !m.FromAddr.IsUnset() {
		args[argAddress] = sockaddrRaw(m.FromAddr)
	}
	if len(m.Values) > 0 || len(m.ValueParts) > 0 {
		values := make([]interface{}, 0, len(m.Values)+len(m.ValueParts))
		for _, v := range m.Values {
			values = append(values, v)
		}
		for _, part := range m.ValueParts {
			values = append(values, part.Total)
		}
		args[argValues] = values
	}
	if len(m.ExpiredIDs) > 0 {
		args[argExpired] = m.ExpiredIDs
	}
	if len(m.RefreshedIDs) > 0 {
		args[argRefreshed] = m.RefreshedIDs
	}
	if len(m.FieldIndex) > 0 {
		args[argFields] = encodeFields(m.FieldIndex)
	}
	if m.Want != WantUnset {
		families := []int{}
		if m.Want&Want4 != 0 {
			families = append(families, wantFamilyInet4)
		}
		if m.Want&Want6 != 0 {
			families = append(families, wantFamilyInet6)
		}
		args[argWant] = families
	}
	if m.Version != 0 {
		args[argVersion] = m.Version
	}

	return args
}

func sockaddrRaw(sa types.SocketAddress) []byte {
	if b, ok := sa.Raw4(); ok {
		return b[:]
	}
	if b, ok := sa.Raw16(); ok {
		return b[:]
	}
	return nil
}

func encodeFields(idx []FieldValueIndex) map[string]interface{} {
	if len(idx) == 0 {
		return nil
	}
	fields := idx[0].Fields
	values := make([][]byte, 0, len(idx)*len(fields))
	for _, row := range idx {
		values = append(values, row.Values...)
	}
	return map[string]interface{}{
		fieldsNames:  fields,
		fieldsValues: values,
	}
}

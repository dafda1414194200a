package wire

import (
	"time"

	"github.com/dep2p/go-dht/internal/util/logger"
	"github.com/dep2p/go-dht/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

var log = logger.Logger("wire")

// address-family tags accepted in the "w" want array. These mirror the
// values a Linux peer reports via AF_INET/AF_INET6 rather than importing
// golang.org/x/sys/unix here, so the codec stays buildable on every GOOS.
const (
	wantFamilyInet4 = 2
	wantFamilyInet6 = 10
)

// Decode parses one wire envelope into a ParsedMessage.
//
// Kind discrimination follows a fixed priority so that a message carrying
// more than one top-level key is never ambiguous: e (Error), then r
// (Reply), then p (ValueData), then u (ValueUpdate), then the "q" verb. A
// shape that matches none of these is ErrMalformedMessage.
func Decode(data []byte) (*ParsedMessage, error) {
	envelope, err := decodeRawMap(msgpack.RawMessage(data))
	if err != nil {
		return nil, malformed("envelope")
	}

	m := &ParsedMessage{
		CreatedAt:  FarFuture,
		Want:       WantUnset,
		ValueParts: map[uint32]*FragmentPart{},
	}

	if raw, ok := envelope[keyTID]; ok {
		tid, err := decodeTID(raw)
		if err != nil {
			return nil, malformed("t")
		}
		m.TransactionID = tid
	}
	if raw, ok := envelope[keyUA]; ok {
		if s, err := decodeString(raw); err == nil {
			m.UserAgent = s
		}
	}
	if raw, ok := envelope[keyNetID]; ok {
		if n, err := decodeUint64(raw); err == nil {
			m.NetworkID = uint32(n)
		}
	}
	if raw, ok := envelope[keyClient]; ok {
		if b, err := decodeBool(raw); err == nil {
			m.IsClient = b
		}
	}

	var queryVerb string
	if raw, ok := envelope[keyQuery]; ok {
		s, err := decodeString(raw)
		if err != nil {
			return nil, malformed("q")
		}
		queryVerb = s
	}

	switch {
	case hasKey(envelope, keyError):
		m.Kind = MessageTypeError
		if err := decodeErrorArray(m, envelope[keyError]); err != nil {
			return nil, err
		}
		if raw, ok := envelope[keyArgs]; ok {
			argMap, err := decodeRawMap(raw)
			if err != nil {
				return nil, malformed("a")
			}
			if err := decodeArgs(m, argMap); err != nil {
				return nil, err
			}
		}
		return m, nil

	case hasKey(envelope, keyReply):
		m.Kind = MessageTypeReply
		return m, decodeRequiredArgs(m, envelope, keyReply)

	case hasKey(envelope, keyValue):
		m.Kind = MessageTypeValueData
		return decodeValueData(m, envelope[keyValue])

	case hasKey(envelope, keyUpdate):
		m.Kind = MessageTypeValueUpdate
		return m, decodeRequiredArgs(m, envelope, keyUpdate)

	default:
		if raw, ok := envelope[keyKind]; ok {
			s, err := decodeString(raw)
			if err != nil || s != "q" {
				return nil, malformed("y")
			}
		}
		switch queryVerb {
		case queryPing:
			m.Kind = MessageTypePing
		case queryFind:
			m.Kind = MessageTypeFindNode
		case queryGet:
			m.Kind = MessageTypeGetValues
		case queryPut:
			m.Kind = MessageTypeAnnounceValue
		case queryListen:
			m.Kind = MessageTypeListen
		case queryRefresh:
			m.Kind = MessageTypeRefresh
		case queryUpdate:
			m.Kind = MessageTypeUpdateValue
		default:
			return nil, malformed("y")
		}
		return m, decodeRequiredArgs(m, envelope, keyArgs)
	}
}

func hasKey(envelope map[string]msgpack.RawMessage, key string) bool {
	_, ok := envelope[key]
	return ok
}

func decodeRequiredArgs(m *ParsedMessage, envelope map[string]msgpack.RawMessage, key string) error {
	raw, ok := envelope[key]
	if !ok {
		return malformed(key)
	}
	argMap, err := decodeRawMap(raw)
	if err != nil {
		return malformed(key)
	}
	return decodeArgs(m, argMap)
}

func decodeErrorArray(m *ParsedMessage, raw msgpack.RawMessage) error {
	var arr []msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return malformed("e")
	}
	code, err := decodeUint64(arr[0])
	if err != nil {
		return malformed("e")
	}
	m.ErrorCode = uint16(code)
	return nil
}

func decodeValueData(m *ParsedMessage, raw msgpack.RawMessage) (*ParsedMessage, error) {
	var entries map[uint32]map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &entries); err != nil {
		return nil, malformed("p")
	}
	for idx, fields := range entries {
		oRaw, hasO := fields[fragOffset]
		dRaw, hasD := fields[fragData]
		if !hasO || !hasD {
			continue
		}
		offset, err := decodeUint64(oRaw)
		if err != nil {
			continue
		}
		blob, err := decodeBlob(dRaw)
		if err != nil {
			continue
		}
		m.ValueParts[idx] = &FragmentPart{Total: uint32(offset), Buffer: blob}
	}
	return m, nil
}

// decodeArgs fills m from the a/r/u argument map. Only four shapes are
// structurally required — t, e, fileds.f, w — and can fail the whole
// message; everything else is parsed best-effort and silently skipped per
// entry on failure.
func decodeArgs(m *ParsedMessage, args map[string]msgpack.RawMessage) error {
	_, hasValues := args[argValues]

	for key, raw := range args {
		switch key {
		case argSocketID:
			if v, err := decodeTID(raw); err == nil {
				m.SocketID = v
			}
		case argID:
			if fp, err := decodeFingerprintRaw(raw); err == nil {
				m.SenderID = fp
			}
		case argInfoHash:
			if fp, err := decodeFingerprintRaw(raw); err == nil {
				m.InfoHash = fp
			}
		case argTarget:
			if fp, err := decodeFingerprintRaw(raw); err == nil {
				m.Target = fp
			}
		case argQuery:
			if qf, err := decodeQueryFilter(raw); err == nil {
				m.Query = qf
			}
		case argToken:
			if b, err := decodeBlob(raw); err == nil {
				m.Token = b
			}
		case argValueID:
			if v, err := decodeUint64(raw); err == nil {
				m.ValueID = v
			}
		case argNodes4:
			if b, err := decodeBlob(raw); err == nil {
				m.Nodes4Raw = b
			}
		case argNodes6:
			if b, err := decodeBlob(raw); err == nil {
				m.Nodes6Raw = b
			}
		case argCreation:
			if sec, err := decodeInt64(raw); err == nil {
				m.CreatedAt = time.Unix(sec, 0).UTC()
			}
		case argAddress:
			handleSA(m, raw)
		case argValues:
			handleValues(m, raw)
		case argExpired:
			if ids, err := decodeUint64Array(raw); err == nil {
				m.ExpiredIDs = ids
			}
		case argRefreshed:
			if ids, err := decodeUint64Array(raw); err == nil {
				m.RefreshedIDs = ids
			}
		case argFields:
			if hasValues {
				// values takes priority over fileds when both are present.
				continue
			}
			if err := handleFields(m, raw); err != nil {
				return err
			}
		case argWant:
			if err := handleWant(m, raw); err != nil {
				return err
			}
		case argVersion:
			if v, err := decodeInt64(raw); err == nil {
				m.Version = int32(v)
			}
		}
	}
	return nil
}

func decodeQueryFilter(raw msgpack.RawMessage) (QueryFilter, error) {
	var qf struct {
		Field string `msgpack:"field"`
		Op    byte   `msgpack:"op"`
		Value []byte `msgpack:"value"`
	}
	if err := msgpack.Unmarshal(raw, &qf); err != nil {
		return QueryFilter{}, err
	}
	return QueryFilter{Field: qf.Field, Op: qf.Op, Value: qf.Value}, nil
}

func handleSA(m *ParsedMessage, raw msgpack.RawMessage) {
	b, err := decodeBlob(raw)
	if err != nil {
		return
	}
	if sa, ok := types.FromRawSockaddr(b); ok {
		m.FromAddr = sa
	}
}

// handleValues resolves the dual shape of each "values" array entry:
// an integer declares a fresh fragment slot's total size; anything else is
// decoded as a self-contained Value. Per-entry failures are skipped, never
// fatal to the message.
func handleValues(m *ParsedMessage, raw msgpack.RawMessage) {
	var arr []msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &arr); err != nil {
		return
	}
	for i, entryRaw := range arr {
		v, err := decodeInterfaceValue(entryRaw)
		if err != nil {
			continue
		}
		switch v.(type) {
		case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
			total, err := decodeUint64(entryRaw)
			if err != nil {
				continue
			}
			registerFragmentDecl(m, uint32(i), total)
		default:
			val, err := types.Value{}.Decode(entryRaw)
			if err != nil {
				log.Debug("skipping undecodable inline value", "index", i, "err", ErrValueDecode)
				continue
			}
			m.Values = append(m.Values, val)
		}
	}
}

func registerFragmentDecl(m *ParsedMessage, idx uint32, total uint64) {
	if total > uint64(MaxValueSize)+32 {
		log.Debug("dropping oversize fragment declaration", "index", idx, "total", total, "err", ErrOversizeValue)
		return
	}
	if _, exists := m.ValueParts[idx]; exists {
		// first declaration wins on a redeclared index.
		return
	}
	m.ValueParts[idx] = &FragmentPart{Total: uint32(total)}
}

func handleFields(m *ParsedMessage, raw msgpack.RawMessage) error {
	obj, err := decodeRawMap(raw)
	if err != nil {
		return malformed("fileds")
	}
	fRaw, hasF := obj[fieldsNames]
	if !hasF {
		return malformed("fileds")
	}
	var fields []string
	if err := msgpack.Unmarshal(fRaw, &fields); err != nil {
		return malformed("fileds")
	}

	vRaw, hasV := obj[fieldsValues]
	if !hasV || len(fields) == 0 {
		return nil
	}
	var values []msgpack.RawMessage
	if err := msgpack.Unmarshal(vRaw, &values); err != nil {
		return nil
	}
	stride := len(fields)
	count := len(values) / stride
	for i := 0; i < count; i++ {
		idx := FieldValueIndex{Fields: append([]string(nil), fields...)}
		for j := 0; j < stride; j++ {
			var b []byte
			if err := msgpack.Unmarshal(values[i*stride+j], &b); err == nil {
				idx.Values = append(idx.Values, b)
			} else {
				idx.Values = append(idx.Values, nil)
			}
		}
		m.FieldIndex = append(m.FieldIndex, idx)
	}
	return nil
}

func handleWant(m *ParsedMessage, raw msgpack.RawMessage) error {
	var arr []msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &arr); err != nil {
		return malformed("w")
	}
	m.Want = 0
	for _, famRaw := range arr {
		fam, err := decodeInt64(famRaw)
		if err != nil {
			continue
		}
		switch fam {
		case wantFamilyInet4:
			m.Want |= Want4
		case wantFamilyInet6:
			m.Want |= Want6
		}
	}
	return nil
}

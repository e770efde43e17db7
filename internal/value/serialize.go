package value

import (
	"encoding/binary"
	"math"

	"github.com/oriys/novafabric/internal/ferrors"
)

// Format selects the serialization form for Container.Serialize.
type Format int

const (
	// FormatBinary is the compact, self-describing wire form (primary).
	FormatBinary Format = iota
	// FormatText is the human-readable secondary form (key=value lines).
	FormatText
)

// DefaultMaxDepth bounds nested-container recursion.
const DefaultMaxDepth = 32

// tag bytes for the binary wire form. A container may nest other
// containers as values, so values and the Kind enum share one alphabet.
const (
	tagNull Kind = iota
	tagBool
	tagInt8
	tagInt16
	tagInt32
	tagInt64
	tagUint8
	tagUint16
	tagUint32
	tagUint64
	tagFloat32
	tagFloat64
	tagString
	tagBytes
	tagContainer
)

// Serialize encodes the container in the requested format.
func (c *Container) Serialize(format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return c.serializeText(), nil
	default:
		buf := make([]byte, 0, 64*len(c.order))
		return c.appendBinary(buf), nil
	}
}

func (c *Container) appendBinary(buf []byte) []byte {
	for _, e := range c.order {
		buf = appendVarint(buf, uint64(len(e.key)))
		buf = append(buf, e.key...)
		buf = append(buf, byte(e.val.Kind))
		buf = appendValueBinary(buf, e.val)
	}
	return buf
}

func appendValueBinary(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return buf
	case KindBool:
		if v.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindInt8:
		return append(buf, byte(v.Int))
	case KindInt16:
		tmp := make([]byte, 2)
		binary.LittleEndian.PutUint16(tmp, uint16(v.Int))
		return append(buf, tmp...)
	case KindInt32:
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(v.Int))
		return append(buf, tmp...)
	case KindInt64:
		tmp := make([]byte, 8)
		binary.LittleEndian.PutUint64(tmp, uint64(v.Int))
		return append(buf, tmp...)
	case KindUint8:
		return append(buf, byte(v.Uint))
	case KindUint16:
		tmp := make([]byte, 2)
		binary.LittleEndian.PutUint16(tmp, uint16(v.Uint))
		return append(buf, tmp...)
	case KindUint32:
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, uint32(v.Uint))
		return append(buf, tmp...)
	case KindUint64:
		tmp := make([]byte, 8)
		binary.LittleEndian.PutUint64(tmp, v.Uint)
		return append(buf, tmp...)
	case KindFloat32:
		tmp := make([]byte, 4)
		binary.LittleEndian.PutUint32(tmp, math.Float32bits(v.Float32))
		return append(buf, tmp...)
	case KindFloat64:
		tmp := make([]byte, 8)
		binary.LittleEndian.PutUint64(tmp, math.Float64bits(v.Float64))
		return append(buf, tmp...)
	case KindString:
		buf = appendVarint(buf, uint64(len(v.Str)))
		return append(buf, v.Str...)
	case KindBytes:
		buf = appendVarint(buf, uint64(len(v.Bytes)))
		return append(buf, v.Bytes...)
	case KindContainer:
		var nested []byte
		if v.Container != nil {
			nested = v.Container.appendBinary(nil)
		}
		buf = appendVarint(buf, uint64(len(nested)))
		return append(buf, nested...)
	default:
		return buf
	}
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Deserialize parses a binary-form container, failing with InvalidPayload
// on unknown tag, truncated stream, or nesting beyond maxDepth (0 = use
// DefaultMaxDepth).
func Deserialize(data []byte, maxDepth int) (*Container, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	// The top-level container itself counts as depth 1.
	c, rest, err := deserializeBinary(data, maxDepth-1)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ferrors.New(ferrors.InvalidPayload, "value.Deserialize", "trailing bytes after container")
	}
	return c, nil
}

func deserializeBinary(data []byte, depth int) (*Container, []byte, error) {
	c := New()
	for len(data) > 0 {
		keyLen, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, nil, ferrors.New(ferrors.InvalidPayload, "value.deserializeBinary", "truncated key length")
		}
		data = data[n:]
		if uint64(len(data)) < keyLen {
			return nil, nil, ferrors.New(ferrors.InvalidPayload, "value.deserializeBinary", "truncated key bytes")
		}
		key := string(data[:keyLen])
		data = data[keyLen:]

		if len(data) < 1 {
			return nil, nil, ferrors.New(ferrors.InvalidPayload, "value.deserializeBinary", "truncated tag")
		}
		kind := Kind(data[0])
		data = data[1:]

		v, rest, err := decodeValue(kind, data, depth)
		if err != nil {
			return nil, nil, err
		}
		data = rest
		c.Add(key, v)
	}
	return c, data, nil
}

func decodeValue(kind Kind, data []byte, depth int) (Value, []byte, error) {
	need := func(n int) error {
		if len(data) < n {
			return ferrors.New(ferrors.InvalidPayload, "value.decodeValue", "truncated value")
		}
		return nil
	}
	switch kind {
	case KindNull:
		return Null(), data, nil
	case KindBool:
		if err := need(1); err != nil {
			return Value{}, nil, err
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindInt8:
		if err := need(1); err != nil {
			return Value{}, nil, err
		}
		return Int8(int8(data[0])), data[1:], nil
	case KindInt16:
		if err := need(2); err != nil {
			return Value{}, nil, err
		}
		return Int16(int16(binary.LittleEndian.Uint16(data))), data[2:], nil
	case KindInt32:
		if err := need(4); err != nil {
			return Value{}, nil, err
		}
		return Int32(int32(binary.LittleEndian.Uint32(data))), data[4:], nil
	case KindInt64:
		if err := need(8); err != nil {
			return Value{}, nil, err
		}
		return Int64(int64(binary.LittleEndian.Uint64(data))), data[8:], nil
	case KindUint8:
		if err := need(1); err != nil {
			return Value{}, nil, err
		}
		return Uint8(data[0]), data[1:], nil
	case KindUint16:
		if err := need(2); err != nil {
			return Value{}, nil, err
		}
		return Uint16(binary.LittleEndian.Uint16(data)), data[2:], nil
	case KindUint32:
		if err := need(4); err != nil {
			return Value{}, nil, err
		}
		return Uint32(binary.LittleEndian.Uint32(data)), data[4:], nil
	case KindUint64:
		if err := need(8); err != nil {
			return Value{}, nil, err
		}
		return Uint64(binary.LittleEndian.Uint64(data)), data[8:], nil
	case KindFloat32:
		if err := need(4); err != nil {
			return Value{}, nil, err
		}
		return Float32Val(math.Float32frombits(binary.LittleEndian.Uint32(data))), data[4:], nil
	case KindFloat64:
		if err := need(8); err != nil {
			return Value{}, nil, err
		}
		return Float64Val(math.Float64frombits(binary.LittleEndian.Uint64(data))), data[8:], nil
	case KindString:
		n, rest, err := readLenPrefixed(data)
		if err != nil {
			return Value{}, nil, err
		}
		return String(string(n)), rest, nil
	case KindBytes:
		n, rest, err := readLenPrefixed(data)
		if err != nil {
			return Value{}, nil, err
		}
		cp := make([]byte, len(n))
		copy(cp, n)
		return Bytes(cp), rest, nil
	case KindContainer:
		if depth <= 0 {
			return Value{}, nil, ferrors.New(ferrors.InvalidPayload, "value.decodeValue", "max container depth exceeded")
		}
		nestedBytes, rest, err := readLenPrefixed(data)
		if err != nil {
			return Value{}, nil, err
		}
		nested, trailing, err := deserializeBinary(nestedBytes, depth-1)
		if err != nil {
			return Value{}, nil, err
		}
		if len(trailing) != 0 {
			return Value{}, nil, ferrors.New(ferrors.InvalidPayload, "value.decodeValue", "trailing bytes in nested container")
		}
		return Nested(nested), rest, nil
	default:
		return Value{}, nil, ferrors.New(ferrors.InvalidPayload, "value.decodeValue", "unknown value tag")
	}
}

func readLenPrefixed(data []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, ferrors.New(ferrors.InvalidPayload, "value.readLenPrefixed", "truncated length")
	}
	data = data[n:]
	if uint64(len(data)) < length {
		return nil, nil, ferrors.New(ferrors.InvalidPayload, "value.readLenPrefixed", "truncated payload")
	}
	return data[:length], data[length:], nil
}

// serializeText renders the human-readable secondary form: one key=value
// line per entry, in insertion order.
func (c *Container) serializeText() []byte {
	var buf []byte
	for _, e := range c.order {
		buf = append(buf, e.key...)
		buf = append(buf, '=')
		buf = append(buf, renderText(e.val)...)
		buf = append(buf, '\n')
	}
	return buf
}

func renderText(v Value) string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return itoa(v.Int)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return utoa(v.Uint)
	case KindFloat32:
		return ftoa(float64(v.Float32))
	case KindFloat64:
		return ftoa(v.Float64)
	case KindString:
		return v.Str
	case KindBytes:
		return string(v.Bytes)
	case KindContainer:
		return "{container}"
	default:
		return ""
	}
}

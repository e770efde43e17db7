package message

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/value"
)

// Magic is the 4-byte wire tag identifying a novafabric envelope frame.
const Magic = "NVFB"

// CurrentVersion is the wire format version produced by Encode. Version 2
// (legacy) omitted task-only fields; Decode accepts both.
const CurrentVersion uint16 = 3

const fieldSep = 0x1F

// Encode renders the envelope in the canonical wire image: a fixed
// metadata header followed by the payload container's binary form.
func Encode(env *Envelope) ([]byte, error) {
	meta := encodeMetadata(env)

	payload, err := env.Payload.Serialize(value.FormatBinary)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.InvalidPayload, "message.Encode", err)
	}

	body := make([]byte, 0, 2+2+4+len(meta)+len(payload))
	body = appendUint16(body, CurrentVersion)
	body = appendUint16(body, 0) // reserved
	body = appendUint32(body, uint32(len(meta)))
	body = append(body, meta...)
	body = append(body, payload...)

	out := make([]byte, 0, 4+4+len(body))
	out = append(out, Magic...)
	out = appendUint32(out, uint32(len(body)))
	out = append(out, body...)
	return out, nil
}

// Decode parses a wire frame produced by Encode. It accepts both the
// current version and the legacy version 2 frame (which has no task
// fields to omit in the first place at this layer, so decoding is
// identical; the version is still validated to catch malformed frames).
func Decode(data []byte) (*Envelope, error) {
	if len(data) < 8 {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "frame too short")
	}
	if string(data[:4]) != Magic {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "bad magic")
	}
	totalLen := binary.BigEndian.Uint32(data[4:8])
	body := data[8:]
	if uint64(len(body)) < uint64(totalLen) {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "truncated frame")
	}
	body = body[:totalLen]

	if len(body) < 8 {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "truncated header")
	}
	version := binary.BigEndian.Uint16(body[0:2])
	if version != 2 && version != CurrentVersion {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "unsupported version")
	}
	metaLen := binary.BigEndian.Uint32(body[4:8])
	body = body[8:]
	if uint64(len(body)) < uint64(metaLen) {
		return nil, ferrors.New(ferrors.InvalidPayload, "message.Decode", "truncated metadata")
	}
	metaBytes := body[:metaLen]
	payloadBytes := body[metaLen:]

	env, err := decodeMetadata(metaBytes)
	if err != nil {
		return nil, err
	}

	payload, err := value.Deserialize(payloadBytes, 0)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.InvalidPayload, "message.Decode", err)
	}
	env.Payload = payload
	return env, nil
}

// encodeMetadata renders id/topic/.../headers as key=value pairs separated
// by 0x1F.
func encodeMetadata(env *Envelope) []byte {
	var b strings.Builder
	writeKV(&b, "id", env.ID)
	writeKV(&b, "topic", env.Topic)
	writeKV(&b, "source", env.Source)
	writeKV(&b, "target", env.Target)
	writeKV(&b, "correlation_id", env.CorrelationID)
	writeKV(&b, "trace_id", env.TraceID)
	writeKV(&b, "type", string(env.Type))
	writeKV(&b, "priority", strconv.Itoa(int(env.Priority)))
	writeKV(&b, "timestamp", strconv.FormatInt(env.Timestamp.UnixNano(), 10))
	writeKV(&b, "ttl", strconv.FormatInt(int64(env.TTL), 10))
	for k, v := range env.Headers {
		writeKV(&b, "header."+k, v)
	}
	return []byte(b.String())
}

func writeKV(b *strings.Builder, key, val string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(val)
	b.WriteByte(fieldSep)
}

func decodeMetadata(data []byte) (*Envelope, error) {
	env := &Envelope{Headers: make(map[string]string)}
	fields := strings.Split(string(data), string(rune(fieldSep)))
	for _, f := range fields {
		if f == "" {
			continue
		}
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return nil, ferrors.New(ferrors.InvalidPayload, "message.decodeMetadata", "malformed metadata field")
		}
		key, val := kv[0], kv[1]
		switch {
		case key == "id":
			env.ID = val
		case key == "topic":
			env.Topic = val
		case key == "source":
			env.Source = val
		case key == "target":
			env.Target = val
		case key == "correlation_id":
			env.CorrelationID = val
		case key == "trace_id":
			env.TraceID = val
		case key == "type":
			env.Type = Type(val)
		case key == "priority":
			p, err := strconv.Atoi(val)
			if err != nil {
				return nil, ferrors.New(ferrors.InvalidPayload, "message.decodeMetadata", "bad priority")
			}
			env.Priority = Priority(p)
		case key == "timestamp":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, ferrors.New(ferrors.InvalidPayload, "message.decodeMetadata", "bad timestamp")
			}
			env.Timestamp = time.Unix(0, n)
		case key == "ttl":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, ferrors.New(ferrors.InvalidPayload, "message.decodeMetadata", "bad ttl")
			}
			env.TTL = time.Duration(n)
		case strings.HasPrefix(key, "header."):
			env.Headers[strings.TrimPrefix(key, "header.")] = val
		}
	}
	return env, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.BigEndian.PutUint16(tmp, v)
	return append(buf, tmp...)
}

func appendUint32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

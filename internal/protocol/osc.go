package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// OSCArg is one typed positional argument of an outgoing OSC message.
// Supported tags follow OSC 1.0: 'i' int32, 'f' float32, 's' string.
type OSCArg struct {
	Tag   byte
	Value any
}

// OSCInt builds an int32 argument.
func OSCInt(v int) OSCArg { return OSCArg{Tag: 'i', Value: int32(v)} }

// OSCFloat builds a float32 argument.
func OSCFloat(v float64) OSCArg { return OSCArg{Tag: 'f', Value: float32(v)} }

// OSCString builds a string argument.
func OSCString(v string) OSCArg { return OSCArg{Tag: 's', Value: v} }

// oscPad writes s as a null-terminated string padded to a 4-byte boundary.
func oscPad(s string) []byte {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// BuildOSCMessage encodes a standard OSC 1.0 message: padded address,
// padded type tag string (","+tags), then big-endian argument payloads.
func BuildOSCMessage(address string, args ...OSCArg) ([]byte, error) {
	msg := oscPad(address)
	var tags strings.Builder
	tags.WriteByte(',')
	for _, a := range args {
		tags.WriteByte(a.Tag)
	}
	msg = append(msg, oscPad(tags.String())...)
	for _, a := range args {
		switch a.Tag {
		case 's':
			s, ok := a.Value.(string)
			if !ok {
				return nil, fmt.Errorf("protocol: osc 's' arg is %T", a.Value)
			}
			msg = append(msg, oscPad(s)...)
		case 'i':
			i, ok := a.Value.(int32)
			if !ok {
				return nil, fmt.Errorf("protocol: osc 'i' arg is %T", a.Value)
			}
			msg = binary.BigEndian.AppendUint32(msg, uint32(i))
		case 'f':
			f, ok := a.Value.(float32)
			if !ok {
				return nil, fmt.Errorf("protocol: osc 'f' arg is %T", a.Value)
			}
			msg = binary.BigEndian.AppendUint32(msg, math.Float32bits(f))
		default:
			return nil, fmt.Errorf("protocol: unsupported osc tag %q", a.Tag)
		}
	}
	return msg, nil
}

// EncodeBase64URL encodes data as URL-safe base64 without padding. The
// bridge device mangles '+', '/' and '=' in OSC symbols, so every JSON
// payload crossing the bridge uses this alphabet.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes URL-safe base64, tolerating missing padding.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// DecodeBridgePacket extracts the JSON document carried by an inbound
// bridge datagram. The bridge's udpsend emits the payload as the OSC
// address symbol, so the packet is not a well-formed OSC message: the
// first null-terminated string is a base64 blob (or, for older bridge
// versions, raw JSON). Decoding tries, in order: URL-safe base64,
// standard base64, raw JSON, then the whole packet stripped of nulls.
func DecodeBridgePacket(data []byte, v any) error {
	address := leadingString(data)

	if tryDecodePayload(address, v) {
		return nil
	}

	// Last resort: strip every null, drop the trailing type-tag comma.
	cleaned := strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", ""))
	cleaned = strings.TrimSpace(strings.TrimRight(cleaned, ","))
	if tryDecodePayload(cleaned, v) {
		return nil
	}
	return fmt.Errorf("protocol: undecodable bridge packet (%d bytes)", len(data))
}

// leadingString returns the first null-terminated string of an OSC packet.
func leadingString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return strings.TrimSpace(string(data[:i]))
		}
	}
	return strings.TrimSpace(string(data))
}

func tryDecodePayload(s string, v any) bool {
	if s == "" {
		return false
	}
	if raw, err := DecodeBase64URL(s); err == nil {
		if json.Unmarshal(raw, v) == nil {
			return true
		}
	}
	if raw, err := base64.StdEncoding.DecodeString(padBase64(s)); err == nil {
		if json.Unmarshal(raw, v) == nil {
			return true
		}
	}
	return json.Unmarshal([]byte(s), v) == nil
}

func padBase64(s string) string {
	if m := len(s) % 4; m != 0 {
		return s + strings.Repeat("=", 4-m)
	}
	return s
}

// Package wire implements the on-wire frame format shared by every socket
// role in the fleet: a two-key map (service, data) encoded as a compact,
// length-prefixed, tagged binary representation. It plays the role the
// original Python implementation gave to msgpack, without pulling in a
// msgpack dependency that nothing else in this module needs.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Frame is the top-level request/reply envelope exchanged over every
// socket role in the fleet (client REQ/REP, broker relay, P2P RPCs, and
// PubSub payloads).
type Frame struct {
	Service string
	Data    map[string]any
}

type tag byte

const (
	tagNil tag = iota
	tagString
	tagUint64
	tagInt64
	tagFloat64
	tagBool
	tagBytes
	tagMap
	tagList
)

// Encode serializes a Frame into the binary tag-value wire format.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, f.Service); err != nil {
		return nil, err
	}
	if err := writeValue(&buf, f.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a Frame out of the binary tag-value wire format.
func Decode(b []byte) (Frame, error) {
	r := bytes.NewReader(b)
	service, err := readString(r)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: decode service: %w", err)
	}
	v, err := readValue(r)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: decode data: %w", err)
	}
	data, ok := v.(map[string]any)
	if !ok {
		if v == nil {
			data = map[string]any{}
		} else {
			return Frame{}, fmt.Errorf("wire: top-level data is not a map")
		}
	}
	return Frame{Service: service, Data: data}, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteByte(byte(tagNil))
	case string:
		buf.WriteByte(byte(tagString))
		return writeString(buf, val)
	case bool:
		buf.WriteByte(byte(tagBool))
		if val {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case uint64:
		buf.WriteByte(byte(tagUint64))
		return binary.Write(buf, binary.BigEndian, val)
	case uint:
		return writeValue(buf, uint64(val))
	case uint32:
		return writeValue(buf, uint64(val))
	case int:
		return writeValue(buf, int64(val))
	case int64:
		buf.WriteByte(byte(tagInt64))
		return binary.Write(buf, binary.BigEndian, val)
	case float64:
		buf.WriteByte(byte(tagFloat64))
		return binary.Write(buf, binary.BigEndian, val)
	case []byte:
		buf.WriteByte(byte(tagBytes))
		return writeBytes(buf, val)
	case map[string]any:
		buf.WriteByte(byte(tagMap))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := binary.Write(buf, binary.BigEndian, uint32(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeString(buf, k); err != nil {
				return err
			}
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
	case []any:
		buf.WriteByte(byte(tagList))
		if err := binary.Write(buf, binary.BigEndian, uint32(len(val))); err != nil {
			return err
		}
		for _, item := range val {
			if err := writeValue(buf, item); err != nil {
				return err
			}
		}
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return writeValue(buf, items)
	case []map[string]any:
		items := make([]any, len(val))
		for i, m := range val {
			items[i] = m
		}
		return writeValue(buf, items)
	default:
		return fmt.Errorf("wire: unsupported value type %T", v)
	}
	return nil
}

func readValue(r *bytes.Reader) (any, error) {
	tb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag(tb) {
	case tagNil:
		return nil, nil
	case tagString:
		return readString(r)
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case tagUint64:
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return v, nil
	case tagInt64:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return v, nil
	case tagFloat64:
		var v float64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return v, nil
	case tagBytes:
		return readBytes(r)
	case tagMap:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		m := make(map[string]any, n)
		for i := uint32(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := readValue(r)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case tagList:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		items := make([]any, n)
		for i := uint32(0); i < n; i++ {
			v, err := readValue(r)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	default:
		return nil, fmt.Errorf("wire: unknown tag %d", tb)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	return writeBytes(buf, []byte(s))
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return nil, err
	}
	return b, nil
}

// StringField fetches a string field from a data map, returning "" if
// absent or of the wrong type. Mirrors the defensive `.get(..., default)`
// access the original dynamic-typed implementation relied on, but typed.
func StringField(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Uint64Field fetches a uint64 field from a data map, returning 0 if
// absent or of the wrong type.
func Uint64Field(data map[string]any, key string) uint64 {
	if v, ok := data[key]; ok {
		if u, ok := v.(uint64); ok {
			return u
		}
	}
	return 0
}

// BoolField fetches a bool field from a data map, returning false if
// absent or of the wrong type.
func BoolField(data map[string]any, key string) bool {
	if v, ok := data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// MapField fetches a nested map field, returning nil if absent or of the
// wrong type.
func MapField(data map[string]any, key string) map[string]any {
	if v, ok := data[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// ListField fetches a nested list field, returning nil if absent or of the
// wrong type.
func ListField(data map[string]any, key string) []any {
	if v, ok := data[key]; ok {
		if l, ok := v.([]any); ok {
			return l
		}
	}
	return nil
}

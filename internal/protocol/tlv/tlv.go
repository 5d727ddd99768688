// Package tlv encodes message payloads as a flat run of fields, each an
// id, a type tag, a length and the value. Fields with unknown ids survive
// a decode untouched.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is id (u16) + type (u8) + value length (u32).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrTypeMismatch     = errors.New("tlv: type mismatch")
	ErrBadValue         = errors.New("tlv: malformed value")
)

type Type uint8

const (
	TypeU8 Type = iota + 1
	TypeBool
	TypeString
	TypeBytes
)

func (t Type) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

type Field struct {
	ID    uint16
	Type  Type
	Value []byte
}

func U8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func Bool(id uint16, v bool) Field {
	f := Field{ID: id, Type: TypeBool, Value: []byte{0}}
	if v {
		f.Value[0] = 1
	}
	return f
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func Bytes(id uint16, v []byte) Field {
	return Field{ID: id, Type: TypeBytes, Value: v}
}

// Size is the encoded length of f.
func (f Field) Size() int {
	return HeaderLen + len(f.Value)
}

func (f Field) expect(t Type) error {
	if f.Type != t {
		return fmt.Errorf("%w: field %d is %s, want %s", ErrTypeMismatch, f.ID, f.Type, t)
	}
	return nil
}

func (f Field) AsU8() (uint8, error) {
	if err := f.expect(TypeU8); err != nil {
		return 0, err
	}
	if len(f.Value) != 1 {
		return 0, fmt.Errorf("%w: u8 field %d has %d bytes", ErrBadValue, f.ID, len(f.Value))
	}
	return f.Value[0], nil
}

func (f Field) AsBool() (bool, error) {
	if err := f.expect(TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 || f.Value[0] > 1 {
		return false, fmt.Errorf("%w: bool field %d = %v", ErrBadValue, f.ID, f.Value)
	}
	return f.Value[0] == 1, nil
}

func (f Field) AsBytes() ([]byte, error) {
	if err := f.expect(TypeBytes); err != nil {
		return nil, err
	}
	return f.Value, nil
}

func (f Field) AsString() (string, error) {
	if err := f.expect(TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

// Fields is a decoded payload in wire order.
type Fields []Field

// Get returns the first field with id.
func (fs Fields) Get(id uint16) (Field, bool) {
	for _, f := range fs {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Encode lays fields out back to back in one allocation.
func Encode(fields ...Field) []byte {
	size := 0
	for _, f := range fields {
		size += f.Size()
	}
	out := make([]byte, 0, size)
	for _, f := range fields {
		out = binary.BigEndian.AppendUint16(out, f.ID)
		out = append(out, byte(f.Type))
		out = binary.BigEndian.AppendUint32(out, uint32(len(f.Value)))
		out = append(out, f.Value...)
	}
	return out
}

// Decode splits payload into fields. Values are copied out of payload.
func Decode(payload []byte) (Fields, error) {
	var fields Fields
	for rest := payload; len(rest) > 0; {
		if len(rest) < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		f := Field{
			ID:   binary.BigEndian.Uint16(rest),
			Type: Type(rest[2]),
		}
		n := binary.BigEndian.Uint32(rest[3:])
		rest = rest[HeaderLen:]
		if uint64(len(rest)) < uint64(n) {
			return nil, ErrShortFieldValue
		}
		f.Value = append([]byte(nil), rest[:n]...)
		rest = rest[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

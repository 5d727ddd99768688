// Package frame reads and writes length-prefixed messages on a stream.
//
// Header layout, big endian, 24 bytes:
//
//	0  magic       u32
//	4  version     u16
//	6  flags       u16
//	8  message id  u64
//	16 type        u16
//	18 reserved    u16 (zero)
//	20 payload len u32
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const HeaderLen = 24

const (
	FlagIsResponse uint16 = 1 << 1
	FlagIsError    uint16 = 1 << 2
	FlagIsFinal    uint16 = 1 << 3
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrReservedBits    = errors.New("frame: reserved header bits set")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortPayload    = errors.New("frame: short payload")
)

type Header struct {
	Magic       uint32
	Version     uint16
	Flags       uint16
	MessageID   uint64
	MessageType uint16
	PayloadLen  uint32
}

// Has reports whether every bit in flag is set.
func (h Header) Has(flag uint16) bool {
	return h.Flags&flag == flag
}

type Frame struct {
	Header  Header
	Payload []byte
}

// Limits bounds the payload a peer may make us buffer.
type Limits struct {
	MaxPayloadBytes uint64
}

// DefaultLimits leaves plenty of room for one command (four 64-byte
// arguments) and for a response chunk.
func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 64 * 1024}
}

func (l Limits) check(n uint64) error {
	if n > l.MaxPayloadBytes || n > uint64(^uint32(0)) {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, n, l.MaxPayloadBytes)
	}
	return nil
}

// ReadFrame reads one frame. A stream that ends before the first header
// byte returns io.EOF.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}
	h, err := ParseHeader(hdr[:])
	if err != nil {
		return Frame{}, err
	}
	if err := limits.check(uint64(h.PayloadLen)); err != nil {
		return Frame{}, err
	}

	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortPayload
		}
		return Frame{}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes f with a single Write call. PayloadLen is taken from
// the payload.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if err := limits.check(uint64(len(f.Payload))); err != nil {
		return err
	}
	h := f.Header
	h.PayloadLen = uint32(len(f.Payload))

	buf := make([]byte, 0, HeaderLen+len(f.Payload))
	buf = AppendHeader(buf, h)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.BigEndian.AppendUint32(dst, h.Magic)
	dst = binary.BigEndian.AppendUint16(dst, h.Version)
	dst = binary.BigEndian.AppendUint16(dst, h.Flags)
	dst = binary.BigEndian.AppendUint64(dst, h.MessageID)
	dst = binary.BigEndian.AppendUint16(dst, h.MessageType)
	dst = binary.BigEndian.AppendUint16(dst, 0)
	return binary.BigEndian.AppendUint32(dst, h.PayloadLen)
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	if binary.BigEndian.Uint16(b[18:20]) != 0 {
		return Header{}, ErrReservedBits
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		Flags:       binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint16(b[16:18]),
		PayloadLen:  binary.BigEndian.Uint32(b[20:24]),
	}, nil
}

package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/phonebook/internal/protocol/frame"
	"github.com/danmuck/phonebook/internal/protocol/tlv"
)

const (
	Magic   uint32 = 0x50484B01
	Version uint16 = 1
)

type MessageType uint16

const (
	MessageCommand MessageType = 1
	MessageChunk   MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case MessageCommand:
		return "command"
	case MessageChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// Field IDs.
const (
	FieldCommand uint16 = 1
	FieldStatus  uint16 = 2
	FieldData    uint16 = 3
	FieldFinal   uint16 = 4
	FieldError   uint16 = 5
)

// Command is one client request.
type Command struct {
	ID   uint64
	Text []byte
}

// Chunk is one piece of a response. A response ends with an empty chunk
// whose Final flag is set.
type Chunk struct {
	ID     uint64
	Status uint8
	Data   []byte
	Final  bool
	// Err is set when the command failed at the transport or grammar level.
	Err string
}

func WriteCommand(w io.Writer, cmd Command, limits frame.Limits) error {
	return frame.WriteFrame(w, frame.Frame{
		Header:  header(cmd.ID, MessageCommand, 0),
		Payload: tlv.Encode(tlv.Bytes(FieldCommand, cmd.Text)),
	}, limits)
}

func ReadCommand(r io.Reader, limits frame.Limits) (Command, error) {
	f, fields, err := readMessage(r, limits, MessageCommand)
	if err != nil {
		return Command{}, err
	}
	field, ok := fields.Get(FieldCommand)
	if !ok {
		return Command{}, fmt.Errorf("%w: command", ErrMissingField)
	}
	text, err := field.AsBytes()
	if err != nil {
		return Command{}, err
	}
	return Command{ID: f.Header.MessageID, Text: text}, nil
}

func WriteChunk(w io.Writer, c Chunk, limits frame.Limits) error {
	fields := []tlv.Field{
		tlv.U8(FieldStatus, c.Status),
		tlv.Bytes(FieldData, c.Data),
		tlv.Bool(FieldFinal, c.Final),
	}
	flags := frame.FlagIsResponse
	if c.Final {
		flags |= frame.FlagIsFinal
	}
	if c.Err != "" {
		flags |= frame.FlagIsError
		fields = append(fields, tlv.String(FieldError, c.Err))
	}
	return frame.WriteFrame(w, frame.Frame{
		Header:  header(c.ID, MessageChunk, flags),
		Payload: tlv.Encode(fields...),
	}, limits)
}

func ReadChunk(r io.Reader, limits frame.Limits) (Chunk, error) {
	f, fields, err := readMessage(r, limits, MessageChunk)
	if err != nil {
		return Chunk{}, err
	}
	c := Chunk{ID: f.Header.MessageID}
	if sf, ok := fields.Get(FieldStatus); ok {
		if c.Status, err = sf.AsU8(); err != nil {
			return Chunk{}, err
		}
	}
	if df, ok := fields.Get(FieldData); ok {
		if c.Data, err = df.AsBytes(); err != nil {
			return Chunk{}, err
		}
	}
	ff, ok := fields.Get(FieldFinal)
	if !ok {
		return Chunk{}, fmt.Errorf("%w: final", ErrMissingField)
	}
	if c.Final, err = ff.AsBool(); err != nil {
		return Chunk{}, err
	}
	if c.Final != f.Header.Has(frame.FlagIsFinal) {
		return Chunk{}, fmt.Errorf("%w: final field disagrees with header flag", ErrMalformed)
	}
	if ef, ok := fields.Get(FieldError); ok {
		if c.Err, err = ef.AsString(); err != nil {
			return Chunk{}, err
		}
	}
	if f.Header.Has(frame.FlagIsError) && c.Err == "" {
		c.Err = "unspecified error"
	}
	return c, nil
}

func header(id uint64, t MessageType, flags uint16) frame.Header {
	return frame.Header{
		Magic:       Magic,
		Version:     Version,
		MessageID:   id,
		MessageType: uint16(t),
		Flags:       flags,
	}
}

func readMessage(r io.Reader, limits frame.Limits, want MessageType) (frame.Frame, tlv.Fields, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return frame.Frame{}, nil, err
	}
	if f.Header.Magic != Magic {
		return frame.Frame{}, nil, ErrInvalidMagic
	}
	if f.Header.Version != Version {
		return frame.Frame{}, nil, ErrUnsupportedVersion
	}
	if MessageType(f.Header.MessageType) != want {
		return frame.Frame{}, nil, fmt.Errorf("%w: got %s want %s", ErrMessageTypeMismatch, MessageType(f.Header.MessageType), want)
	}
	fields, err := tlv.Decode(f.Payload)
	if err != nil {
		return frame.Frame{}, nil, err
	}
	return f, fields, nil
}

package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/phonebook/internal/protocol/frame"
	"github.com/danmuck/phonebook/internal/protocol/tlv"
)

func TestCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := Command{ID: 7, Text: []byte("-i -s Doe -n John")}
	if err := WriteCommand(&buf, in, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadCommand(&buf, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.ID != in.ID || !bytes.Equal(out.Text, in.Text) {
		t.Fatalf("command mismatch: %+v", out)
	}
}

func TestChunkRoundTripWithError(t *testing.T) {
	var buf bytes.Buffer
	in := Chunk{ID: 9, Status: 2, Data: []byte("[Error.2] Argument provided is too long\n"), Err: "argument too long"}
	if err := WriteChunk(&buf, in, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteChunk(&buf, Chunk{ID: 9, Final: true}, frame.DefaultLimits()); err != nil {
		t.Fatalf("write final: %v", err)
	}

	out, err := ReadChunk(&buf, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.ID != 9 || out.Status != 2 || out.Final || out.Err != in.Err || !bytes.Equal(out.Data, in.Data) {
		t.Fatalf("chunk mismatch: %+v", out)
	}
	final, err := ReadChunk(&buf, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if !final.Final || len(final.Data) != 0 || final.Err != "" {
		t.Fatalf("unexpected final chunk: %+v", final)
	}
}

func TestReadRejectsWrongMessageType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChunk(&buf, Chunk{Final: true}, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadCommand(&buf, frame.DefaultLimits())
	if !errors.Is(err, ErrMessageTypeMismatch) {
		t.Fatalf("expected ErrMessageTypeMismatch, got %v", err)
	}
}

func TestReadRejectsForeignMagic(t *testing.T) {
	var buf bytes.Buffer
	f := frame.Frame{Header: frame.Header{Magic: 0xEDCE1001, Version: Version, MessageType: uint16(MessageCommand)}}
	if err := frame.WriteFrame(&buf, f, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadCommand(&buf, frame.DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadCommandRequiresField(t *testing.T) {
	var buf bytes.Buffer
	f := frame.Frame{Header: header(1, MessageCommand, 0)}
	if err := frame.WriteFrame(&buf, f, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadCommand(&buf, frame.DefaultLimits())
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestReadChunkRejectsFlagMismatch(t *testing.T) {
	var buf bytes.Buffer
	payload := tlv.Encode(tlv.U8(FieldStatus, 0), tlv.Bool(FieldFinal, true))
	f := frame.Frame{Header: header(3, MessageChunk, frame.FlagIsResponse), Payload: payload}
	if err := frame.WriteFrame(&buf, f, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadChunk(&buf, frame.DefaultLimits()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

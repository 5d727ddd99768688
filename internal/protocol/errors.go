package protocol

import "errors"

var (
	ErrInvalidMagic        = errors.New("protocol: invalid magic")
	ErrUnsupportedVersion  = errors.New("protocol: unsupported version")
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
	ErrMissingField        = errors.New("protocol: missing field")
	ErrMalformed           = errors.New("protocol: malformed message")
)

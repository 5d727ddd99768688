package phonebook

import (
	"errors"

	"github.com/danmuck/phonebook/internal/command"
)

var (
	ErrMissingSurname  = errors.New("phonebook: surname required")
	ErrMissingName     = errors.New("phonebook: name required")
	ErrSurnameNotFound = errors.New("phonebook: surname not found")
	ErrNameNotFound    = errors.New("phonebook: name not found")
)

// Status identifies the response left behind by a command.
type Status int

const (
	StatusIdle Status = iota
	StatusInvalidOperation
	StatusArgumentTooLong
	StatusMissingSurname
	StatusMissingName
	StatusSurnameNotFound
	StatusNameNotFound
	StatusDeleted
	StatusInserted
	// StatusResult means the response is rendered query output.
	StatusResult
)

var statusText = [...][]byte{
	StatusIdle:             []byte("Idle\n"),
	StatusInvalidOperation: []byte("[Error.1] Requested operation is invalid\n"),
	StatusArgumentTooLong:  []byte("[Error.2] Argument provided is too long\n"),
	StatusMissingSurname:   []byte("[Error.3] You have to specify surname\n"),
	StatusMissingName:      []byte("[Error.4] You have to specify name\n"),
	StatusSurnameNotFound:  []byte("[Error.5] Surname not found\n"),
	StatusNameNotFound:     []byte("[Error.6] Name not found\n"),
	StatusDeleted:          []byte("[OK.1] Entries successfully deleted\n"),
	StatusInserted:         []byte("[OK.2] Entry was successfully inserted\n"),
	StatusResult:           nil,
}

var statusNames = [...]string{
	StatusIdle:             "idle",
	StatusInvalidOperation: "invalid_operation",
	StatusArgumentTooLong:  "argument_too_long",
	StatusMissingSurname:   "missing_surname",
	StatusMissingName:      "missing_name",
	StatusSurnameNotFound:  "surname_not_found",
	StatusNameNotFound:     "name_not_found",
	StatusDeleted:          "deleted",
	StatusInserted:         "inserted",
	StatusResult:           "result",
}

// Message returns the fixed response text for s. Rendered results have none.
func (s Status) Message() string {
	if s < 0 || int(s) >= len(statusText) {
		return ""
	}
	return string(statusText[s])
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// IsError reports whether s is one of the [Error.N] responses.
func (s Status) IsError() bool {
	return s >= StatusInvalidOperation && s <= StatusNameNotFound
}

// StatusOf maps an error from parsing or dispatch to its response status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusIdle
	case errors.Is(err, command.ErrArgumentTooLong):
		return StatusArgumentTooLong
	case errors.Is(err, ErrMissingSurname):
		return StatusMissingSurname
	case errors.Is(err, ErrMissingName):
		return StatusMissingName
	case errors.Is(err, ErrSurnameNotFound):
		return StatusSurnameNotFound
	case errors.Is(err, ErrNameNotFound):
		return StatusNameNotFound
	default:
		return StatusInvalidOperation
	}
}

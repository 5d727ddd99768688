// Package command parses the directory's flag language.
//
//	command := ( flag-op | flag-arg value )*
//	flag-op  := '-g' | '-i' | '-d'
//	flag-arg := '-n' | '-s' | '-e' | '-t'
//	value    := up to 64 non-whitespace bytes
//
// Parsing is single-pass over one complete command; a new call always
// starts from a blank state.
package command

import (
	"errors"

	"github.com/danmuck/phonebook/internal/strbuf"
)

// MaxArgLen bounds every argument value.
const MaxArgLen = 64

var (
	ErrInvalidOperation = errors.New("command: invalid operation")
	ErrArgumentTooLong  = errors.New("command: argument too long")
)

// Op is the requested directory operation.
type Op byte

const (
	OpNone   Op = 0
	OpGet    Op = 'g'
	OpInsert Op = 'i'
	OpDelete Op = 'd'
)

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return "none"
	}
}

// Slot names an argument position.
type Slot int

const (
	SlotName Slot = iota
	SlotSurname
	SlotEmail
	SlotPhone
	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotName:
		return "name"
	case SlotSurname:
		return "surname"
	case SlotEmail:
		return "email"
	case SlotPhone:
		return "phone"
	default:
		return "unknown"
	}
}

// Command is one parsed request. It owns its argument buffers until they
// are taken or released.
type Command struct {
	Op   Op
	args [slotCount]*strbuf.Buffer
}

// Arg returns the buffer held in slot without transferring ownership.
func (c *Command) Arg(s Slot) *strbuf.Buffer {
	return c.args[s]
}

// Has reports whether slot holds a value.
func (c *Command) Has(s Slot) bool {
	return c.args[s] != nil
}

// Take transfers ownership of the slot's buffer to the caller.
func (c *Command) Take(s Slot) *strbuf.Buffer {
	b := c.args[s]
	c.args[s] = nil
	return b
}

// Release frees every buffer still held by the command.
func (c *Command) Release() {
	for i := range c.args {
		c.args[i].Release()
		c.args[i] = nil
	}
}

func (c *Command) set(s Slot, b *strbuf.Buffer) {
	c.args[s].Release()
	c.args[s] = b
}

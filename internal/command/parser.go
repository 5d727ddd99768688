package command

import (
	"fmt"

	"github.com/danmuck/phonebook/internal/strbuf"
)

// State is a parser state.
type State int

const (
	StateIdle State = iota
	StateFlag
	StateSeparator
	StateValue
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFlag:
		return "flag"
	case StateSeparator:
		return "separator"
	case StateValue:
		return "value"
	default:
		return "unknown"
	}
}

type effect int

const (
	effectNone effect = iota
	effectOp
	effectSlot
	effectExtend
	effectClose
)

// step is the transition function. consume is false when the byte must be
// examined again in the next state.
func step(state State, c byte) (next State, eff effect, consume bool, err error) {
	switch state {
	case StateIdle:
		switch {
		case isSpace(c):
			return StateIdle, effectNone, true, nil
		case c == '-':
			return StateFlag, effectNone, true, nil
		}
	case StateFlag:
		switch c {
		case 'g', 'i', 'd':
			return StateIdle, effectOp, true, nil
		case 'n', 's', 'e', 't':
			return StateSeparator, effectSlot, true, nil
		}
	case StateSeparator:
		if isSpace(c) {
			return StateSeparator, effectNone, true, nil
		}
		return StateValue, effectNone, false, nil
	case StateValue:
		if isSpace(c) {
			return StateIdle, effectClose, true, nil
		}
		return StateValue, effectExtend, true, nil
	}
	return state, effectNone, false, fmt.Errorf("%w: unexpected byte %q in %s state", ErrInvalidOperation, c, state)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n'
}

func slotFor(c byte) Slot {
	switch c {
	case 'n':
		return SlotName
	case 's':
		return SlotSurname
	case 'e':
		return SlotEmail
	default:
		return SlotPhone
	}
}

type parser struct {
	src   []byte
	pos   int
	state State
	slot  Slot
	start int
	n     int
	cmd   *Command
}

// Parse reads one command from src. It returns the command and the number
// of bytes consumed; a NUL byte ends the command and counts as consumed.
// On error no argument buffer outlives the call.
func Parse(src []byte) (*Command, int, error) {
	p := &parser{src: src, cmd: &Command{}}
	for p.pos < len(src) {
		c := src[p.pos]
		if c == 0 {
			p.pos++
			break
		}
		next, eff, consume, err := step(p.state, c)
		if err != nil {
			p.cmd.Release()
			return nil, p.pos, err
		}
		if err := p.apply(eff, c); err != nil {
			p.cmd.Release()
			return nil, p.pos, err
		}
		p.state = next
		if consume {
			p.pos++
		}
	}
	if p.state == StateValue {
		p.closeValue()
		p.state = StateIdle
	}
	if p.cmd.Op == OpNone {
		p.cmd.Release()
		return nil, p.pos, fmt.Errorf("%w: no operation flag", ErrInvalidOperation)
	}
	return p.cmd, p.pos, nil
}

func (p *parser) apply(eff effect, c byte) error {
	switch eff {
	case effectOp:
		p.cmd.Op = Op(c)
	case effectSlot:
		p.slot = slotFor(c)
		p.n = 0
	case effectExtend:
		if p.n == 0 {
			p.start = p.pos
		}
		p.n++
		if p.n > MaxArgLen {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrArgumentTooLong, p.slot, MaxArgLen)
		}
	case effectClose:
		p.closeValue()
	}
	return nil
}

// closeValue copies the pending range into the selected slot, replacing
// any earlier value for that slot.
func (p *parser) closeValue() {
	if p.n == 0 {
		return
	}
	p.cmd.set(p.slot, strbuf.FromBytes(p.src[p.start:p.start+p.n]))
	p.n = 0
}

// Package chardev exposes a Book the way a character device does: one
// opener at a time, commands written as whole chunks, responses read back
// until end of message.
//
// Ownership boundary:
// - open/release accounting (a second opener gets ErrBusy)
// - serialization of every write and read against the Book
// - final teardown of the store
package chardev

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/rs/zerolog/log"
)

var (
	ErrBusy   = errors.New("chardev: device busy")
	ErrClosed = errors.New("chardev: handle closed")
	ErrDown   = errors.New("chardev: device shut down")
)

// Device serializes access to one Book.
type Device struct {
	name string

	mu     sync.Mutex
	book   *phonebook.Book
	opened bool
	down   bool
}

// New wraps book as a device called name.
func New(name string, book *phonebook.Book) *Device {
	return &Device{name: name, book: book}
}

func (d *Device) Name() string { return d.name }

// Open claims the device. Only one handle may be open at a time.
func (d *Device) Open() (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return nil, ErrDown
	}
	if d.opened {
		return nil, ErrBusy
	}
	d.opened = true
	log.Debug().Str("device", d.name).Msg("device opened")
	return &Handle{dev: d}, nil
}

// Shutdown releases every record and the current response. Open handles
// fail with ErrDown afterwards.
func (d *Device) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down {
		return
	}
	d.down = true
	d.book.Close()
	log.Info().Str("device", d.name).Msg("device shut down")
}

// Stats returns the number of surname groups and contacts stored.
func (d *Device) Stats() (surnames, contacts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dir := d.book.Directory()
	return dir.Len(), dir.Contacts()
}

// Handle is an open device. It implements io.ReadWriteCloser.
type Handle struct {
	dev    *Device
	closed bool
}

var _ io.ReadWriteCloser = (*Handle)(nil)

// Write applies p as one complete command and returns the bytes consumed.
// Grammar errors fail the write; the status text is still readable.
func (h *Handle) Write(p []byte) (int, error) {
	_, n, err := h.Apply(p)
	return n, err
}

// Apply is Write with the dispatch outcome.
func (h *Handle) Apply(p []byte) (phonebook.Outcome, int, error) {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := h.usable(); err != nil {
		return phonebook.Outcome{}, 0, err
	}
	out, err := d.book.Apply(p)
	if err != nil {
		return out, out.Consumed, fmt.Errorf("%s: %w", d.name, err)
	}
	return out, out.Consumed, nil
}

// Read copies the next part of the current response into p. It returns
// io.EOF once at the end of each response, after which reading starts
// over from the beginning.
func (h *Handle) Read(p []byte) (int, error) {
	chunk, final, err := h.Next(len(p))
	if err != nil {
		return 0, err
	}
	if final {
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

// Next returns up to max bytes of the current response and whether the
// response was already exhausted.
func (h *Handle) Next(max int) ([]byte, bool, error) {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := h.usable(); err != nil {
		return nil, false, err
	}
	chunk, final := d.book.NextChunk(max)
	return chunk, final, nil
}

// Status reports the status of the current response.
func (h *Handle) Status() (phonebook.Status, error) {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := h.usable(); err != nil {
		return phonebook.StatusIdle, err
	}
	return d.book.Status(), nil
}

// Close releases the device for the next opener.
func (h *Handle) Close() error {
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	d.opened = false
	log.Debug().Str("device", d.name).Msg("device released")
	return nil
}

func (h *Handle) usable() error {
	if h.closed {
		return ErrClosed
	}
	if h.dev.down {
		return ErrDown
	}
	return nil
}

// Package server hosts a phonebook device on the framed TCP transport and
// the HTTP API.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/observability"
	"github.com/danmuck/phonebook/internal/protocol"
	"github.com/danmuck/phonebook/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// TCP serves framed commands. Each connection holds the device open for its
// lifetime, so a second concurrent client is turned away with a busy error.
type TCP struct {
	addr   string
	dev    *chardev.Device
	chunk  int
	limits frame.Limits
	opts   options

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
	closed  bool
	clients atomic.Int64
}

func NewTCP(addr string, dev *chardev.Device, chunk int, maxFrame uint64, opts ...Option) *TCP {
	limits := frame.DefaultLimits()
	if maxFrame > 0 {
		limits.MaxPayloadBytes = maxFrame
	}
	return &TCP{
		addr:   addr,
		dev:    dev,
		chunk:  chunk,
		limits: limits,
		opts:   buildOptions(opts),
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen binds the listener. Serve calls it when it has not been called.
func (s *TCP) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return net.ErrClosed
	}
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcp listen %s: %w", s.addr, err)
	}
	if s.opts.tls != nil {
		ln = tls.NewListener(ln, s.opts.tls)
	}
	s.ln = ln
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *TCP) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is done or Close is called.
func (s *TCP) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("device", s.dev.Name()).
		Bool("tls", s.opts.tls != nil).
		Msg("tcp listening")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *TCP) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *TCP) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *TCP) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *TCP) handleConn(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	active := s.clients.Add(1)
	log.Debug().Str("remote", remote).Int64("active_clients", active).Msg("tcp client connected")
	defer func() {
		remaining := s.clients.Add(-1)
		log.Debug().Str("remote", remote).Int64("active_clients", remaining).Msg("tcp client disconnected")
	}()

	h, err := s.dev.Open()
	if err != nil {
		log.Warn().Err(err).Str("remote", remote).Msg("tcp open device refused")
		_ = s.writeChunk(conn, protocol.Chunk{Final: true, Err: err.Error()})
		return
	}
	defer h.Close()

	for {
		cmd, err := protocol.ReadCommand(conn, s.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("remote", remote).Msg("tcp read command")
			}
			return
		}
		observability.RecordFrame("in", protocol.MessageCommand.String())
		if err := s.respond(conn, h, cmd); err != nil {
			log.Warn().Err(err).Str("remote", remote).Uint64("id", cmd.ID).Msg("tcp respond")
			return
		}
	}
}

// respond applies cmd and streams the response in chunk-sized pieces,
// followed by an empty final chunk.
func (s *TCP) respond(conn net.Conn, h *chardev.Handle, cmd protocol.Command) error {
	out, _, applyErr := h.Apply(cmd.Text)
	status := uint8(out.Status)
	for {
		data, final, err := h.Next(s.chunk)
		if err != nil {
			return s.writeChunk(conn, protocol.Chunk{ID: cmd.ID, Status: status, Final: true, Err: err.Error()})
		}
		if final {
			break
		}
		if err := s.writeChunk(conn, protocol.Chunk{ID: cmd.ID, Status: status, Data: data}); err != nil {
			return err
		}
	}
	last := protocol.Chunk{ID: cmd.ID, Status: status, Final: true}
	if applyErr != nil {
		last.Err = applyErr.Error()
	}
	return s.writeChunk(conn, last)
}

func (s *TCP) writeChunk(w io.Writer, c protocol.Chunk) error {
	if err := protocol.WriteChunk(w, c, s.limits); err != nil {
		return err
	}
	observability.RecordFrame("out", protocol.MessageChunk.String())
	return nil
}

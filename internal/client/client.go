// Package client speaks the framed command protocol to a phonebookd TCP
// listener.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/danmuck/phonebook/internal/protocol"
	"github.com/danmuck/phonebook/internal/protocol/frame"
)

// ErrRemote wraps an error reported by the server in a final chunk.
var ErrRemote = errors.New("remote error")

// Result summarizes one response.
type Result struct {
	Status uint8
	Bytes  int
	Chunks int
}

type Client struct {
	conn   net.Conn
	limits frame.Limits
	nextID uint64
}

type options struct {
	tls    *tls.Config
	limits frame.Limits
}

type Option func(*options)

// WithTLS dials with TLS.
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) {
		o.tls = cfg
	}
}

// WithLimits sets the largest frame payload the client accepts. It must
// cover the server's chunk size. A zero limit keeps the default.
func WithLimits(limits frame.Limits) Option {
	return func(o *options) {
		if limits.MaxPayloadBytes > 0 {
			o.limits = limits
		}
	}
}

// Dial connects to addr. The dial honours ctx; later calls use per-call
// deadlines.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := options{limits: frame.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}
	var (
		conn net.Conn
		err  error
	)
	if o.tls != nil {
		d := tls.Dialer{Config: o.tls}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, limits: o.limits}, nil
}

// LoadCA returns a client TLS config trusting the PEM certificates in
// caFile. serverName overrides the name checked against the server
// certificate when set.
func LoadCA(caFile, serverName string) (*tls.Config, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s: no certificates found", caFile)
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// Do sends text as one command and copies every response chunk into w.
// A server-side error is returned as ErrRemote after the response has been
// written out.
func (c *Client) Do(ctx context.Context, text []byte, w io.Writer) (Result, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}
	c.nextID++
	id := c.nextID
	if err := protocol.WriteCommand(c.conn, protocol.Command{ID: id, Text: text}, c.limits); err != nil {
		return Result{}, fmt.Errorf("send command: %w", err)
	}

	var res Result
	for {
		chunk, err := protocol.ReadChunk(c.conn, c.limits)
		if err != nil {
			return res, fmt.Errorf("read chunk: %w", err)
		}
		// id 0 is a connection-level refusal sent before any command.
		if chunk.ID != id && chunk.ID != 0 {
			return res, fmt.Errorf("read chunk: id %d, want %d", chunk.ID, id)
		}
		res.Status = chunk.Status
		if len(chunk.Data) > 0 {
			if _, err := w.Write(chunk.Data); err != nil {
				return res, err
			}
			res.Bytes += len(chunk.Data)
			res.Chunks++
		}
		if chunk.Final {
			if chunk.Err != "" {
				return res, fmt.Errorf("%w: %s", ErrRemote, chunk.Err)
			}
			return res, nil
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

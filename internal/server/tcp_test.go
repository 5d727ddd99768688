package server

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/client"
	"github.com/danmuck/phonebook/internal/directory"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/strbuf"
	"github.com/danmuck/phonebook/internal/testutil/testlog"
	"github.com/danmuck/phonebook/internal/testutil/tlstest"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startTCP(t *testing.T, chunk int, opts ...Option) (*TCP, *chardev.Device) {
	t.Helper()
	testlog.Start(t)
	ignore := goleak.IgnoreCurrent()
	dev := chardev.New("phonebook0", phonebook.New(directory.New()))
	srv := NewTCP("127.0.0.1:0", dev, chunk, 0, opts...)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		dev.Shutdown()
		goleak.VerifyNone(t, ignore)
	})
	return srv, dev
}

func dial(t *testing.T, srv *TCP, opts ...client.Option) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, srv.Addr().String(), opts...)
	require.NoError(t, err)
	return c
}

func do(t *testing.T, c *client.Client, text string) (string, client.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out bytes.Buffer
	res, err := c.Do(ctx, []byte(text), &out)
	return out.String(), res, err
}

func TestTCPInsertAndQueryInChunks(t *testing.T) {
	srv, dev := startTCP(t, 5)
	c := dial(t, srv)
	defer c.Close()

	out, res, err := do(t, c, "-i -s Doe -n John -t 555")
	require.NoError(t, err)
	require.Equal(t, phonebook.StatusInserted.Message(), out)
	require.Equal(t, uint8(phonebook.StatusInserted), res.Status)

	_, _, err = do(t, c, "-i -s Doe -n Amy -e amy@doe")
	require.NoError(t, err)

	out, res, err = do(t, c, "-g -s Doe")
	require.NoError(t, err)
	want := "Surname:\tDoe\nName:\t\tAmy\nEmail:\t\tamy@doe\n\n" +
		"Surname:\tDoe\nName:\t\tJohn\nPhone number:\t555\n"
	require.Equal(t, want, out)
	require.Equal(t, uint8(phonebook.StatusResult), res.Status)
	require.Equal(t, (len(want)+4)/5, res.Chunks)

	surnames, contacts := dev.Stats()
	require.Equal(t, 1, surnames)
	require.Equal(t, 2, contacts)
}

func TestTCPGrammarErrorIsReported(t *testing.T) {
	srv, _ := startTCP(t, 64)
	c := dial(t, srv)
	defer c.Close()

	out, res, err := do(t, c, "-g -s "+string(bytes.Repeat([]byte("x"), 80)))
	require.ErrorIs(t, err, client.ErrRemote)
	require.Equal(t, phonebook.StatusArgumentTooLong.Message(), out)
	require.Equal(t, uint8(phonebook.StatusArgumentTooLong), res.Status)

	// the connection survives a rejected command
	out, _, err = do(t, c, "-g -s Nobody")
	require.NoError(t, err)
	require.Equal(t, phonebook.StatusSurnameNotFound.Message(), out)
}

func TestTCPSecondClientIsBusy(t *testing.T) {
	srv, _ := startTCP(t, 64)
	first := dial(t, srv)
	defer first.Close()
	_, _, err := do(t, first, "-i -s Doe -n John")
	require.NoError(t, err)

	second := dial(t, srv)
	_, _, err = do(t, second, "-g -s Doe")
	require.Error(t, err)
	if errors.Is(err, client.ErrRemote) {
		require.Contains(t, err.Error(), chardev.ErrBusy.Error())
	}
	_ = second.Close()

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool {
		c, err := client.Dial(context.Background(), srv.Addr().String())
		if err != nil {
			return false
		}
		defer c.Close()
		out, _, err := do(t, c, "-g -s Doe -n John")
		return err == nil && out == "Surname:\tDoe\nName:\t\tJohn\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTCPCloseDropsClientsWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	testlog.Start(t)
	before := strbuf.Outstanding()
	dev := chardev.New("phonebook0", phonebook.New(directory.New()))
	srv := NewTCP("127.0.0.1:0", dev, 16, 0)
	require.NoError(t, srv.Listen())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	c := dial(t, srv)
	_, _, err := do(t, c, "-i -s Doe -n John -e j@d -t 1")
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	require.NoError(t, <-done)
	_, _, err = do(t, c, "-g -s Doe")
	require.Error(t, err)
	_ = c.Close()

	dev.Shutdown()
	require.Equal(t, before, strbuf.Outstanding())
}

func TestTCPOverTLS(t *testing.T) {
	ca := tlstest.NewAuthority(t)
	certFile, keyFile := ca.IssueServer(t)
	serverTLS, err := LoadTLS(certFile, keyFile)
	require.NoError(t, err)
	clientTLS, err := client.LoadCA(ca.CAFile(), "")
	require.NoError(t, err)

	srv, _ := startTCP(t, 32, WithTLS(serverTLS))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if plain, err := client.Dial(ctx, srv.Addr().String()); err == nil {
		_, _, err = do(t, plain, "-i -s Doe -n John")
		require.Error(t, err, "plaintext client must not get through a TLS listener")
		_ = plain.Close()
	}

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c, err := client.Dial(ctx, srv.Addr().String(), client.WithTLS(clientTLS))
		if err != nil {
			return false
		}
		defer c.Close()
		out, _, err := do(t, c, "-i -s Doe -n John")
		return err == nil && out == phonebook.StatusInserted.Message()
	}, 2*time.Second, 10*time.Millisecond)

	_, err = LoadTLS(certFile, certFile)
	require.Error(t, err)
}

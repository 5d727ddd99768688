package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/directory"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/server"
	"github.com/danmuck/phonebook/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsJoinsCommand(t *testing.T) {
	opts, err := parseFlags([]string{"--addr", "h:1", "--", "-i", "-s", "Doe", "-n", "John"})
	require.NoError(t, err)
	require.Equal(t, "h:1", opts.addr)
	require.Equal(t, "-i -s Doe -n John", opts.command)
	require.Equal(t, 5*time.Second, opts.timeout)

	require.Equal(t, uint64(64*1024), opts.maxFrame)

	_, err = parseFlags([]string{"--timeout", "0s"})
	require.Error(t, err)

	opts, err = parseFlags([]string{"--max-frame-bytes", "262144"})
	require.NoError(t, err)
	require.Equal(t, uint64(262144), opts.maxFrame)
	_, err = parseFlags([]string{"--max-frame-bytes", "10"})
	require.Error(t, err)
}

func TestRunAgainstServer(t *testing.T) {
	testlog.Start(t)
	dev := chardev.New("phonebook0", phonebook.New(directory.New()))
	srv := server.NewTCP("127.0.0.1:0", dev, 8, 0)
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
		dev.Shutdown()
	}()
	addr := srv.Addr().String()

	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"--addr", addr, "--", "-i", "-s", "Doe", "-n", "John"}, nil, &out, &errOut))
	require.Equal(t, phonebook.StatusInserted.Message(), out.String())

	// the previous connection releases the device asynchronously
	require.Eventually(t, func() bool {
		h, err := dev.Open()
		if err != nil {
			return false
		}
		_ = h.Close()
		return true
	}, 2*time.Second, 5*time.Millisecond)

	out.Reset()
	script := strings.NewReader("# batch\n-i -s Doe -n Amy -t 1\n\n-g -s Doe -n Amy\n-q\n")
	err := run([]string{"--addr", addr}, script, &out, &errOut)
	require.ErrorContains(t, err, "1 command(s) rejected")
	require.Equal(t,
		phonebook.StatusInserted.Message()+
			"Surname:\tDoe\nName:\t\tAmy\nPhone number:\t1\n"+
			phonebook.StatusInvalidOperation.Message(),
		out.String())
	require.Contains(t, errOut.String(), `"-q"`)
	require.Equal(t, 1, strings.Count(errOut.String(), "\n"))
}

func TestRunWithLargeChunks(t *testing.T) {
	testlog.Start(t)
	dev := chardev.New("phonebook0", phonebook.New(directory.New()))
	srv := server.NewTCP("127.0.0.1:0", dev, 100_000, 256*1024)
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
		dev.Shutdown()
	}()
	addr := srv.Addr().String()

	// insert enough contacts that one query response exceeds a default frame
	h, err := dev.Open()
	require.NoError(t, err)
	for i := 0; i < 1500; i++ {
		_, err := h.Write([]byte(fmt.Sprintf("-i -s Doe -n N%04d -e someone%04d@example.com", i, i)))
		require.NoError(t, err)
	}
	require.NoError(t, h.Close())

	var out, errOut bytes.Buffer
	require.NoError(t, run([]string{"--addr", addr, "--max-frame-bytes", "262144", "--", "-g", "-s", "Doe"}, nil, &out, &errOut))
	require.Greater(t, out.Len(), 64*1024)
	require.Equal(t, 1500, strings.Count(out.String(), "Surname:\tDoe\n"))
}

func TestParseRecords(t *testing.T) {
	text := "Surname:\tDoe\nName:\t\tAmy\nEmail:\t\ta@d\n\nSurname:\tDoe\nName:\t\tJohn\nPhone number:\t555\n"
	require.Equal(t, [][]string{
		{"Doe", "Amy", "", "a@d"},
		{"Doe", "John", "555", ""},
	}, parseRecords(text))
	require.Empty(t, parseRecords(""))

	rendered := renderTable(text)
	for _, want := range []string{"Surname", "Phone number", "Amy", "John", "555", "a@d"} {
		require.Contains(t, rendered, want)
	}
}

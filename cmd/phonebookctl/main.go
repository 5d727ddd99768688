// phonebookctl sends phonebook commands to a phonebookd TCP listener.
//
//	phonebookctl [--addr host:port] -- -i -s Doe -n John -t 555
//
// With no command after "--", commands are read from stdin one per line
// over a single connection. --table renders query results as a table.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/phonebook/internal/client"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/protocol/frame"
	"github.com/spf13/pflag"
)

type options struct {
	addr       string
	timeout    time.Duration
	caFile     string
	serverName string
	maxFrame   uint64
	table      bool
	command    string
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "phonebookctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	dialOpts := []client.Option{client.WithLimits(frame.Limits{MaxPayloadBytes: opts.maxFrame})}
	if opts.caFile != "" {
		tlsCfg, err := client.LoadCA(opts.caFile, opts.serverName)
		if err != nil {
			return err
		}
		dialOpts = append(dialOpts, client.WithTLS(tlsCfg))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	c, err := client.Dial(ctx, opts.addr, dialOpts...)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	if opts.command != "" {
		return send(c, opts, opts.command, stdout)
	}

	var failed int
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := send(c, opts, line, stdout); err != nil {
			if !errors.Is(err, client.ErrRemote) {
				return err
			}
			fmt.Fprintf(stderr, "phonebookctl: %q: %v\n", line, err)
			failed++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d command(s) rejected", failed)
	}
	return nil
}

func send(c *client.Client, opts options, text string, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	if !opts.table {
		_, err := c.Do(ctx, []byte(text), stdout)
		return err
	}
	var buf bytes.Buffer
	res, err := c.Do(ctx, []byte(text), &buf)
	if err == nil && res.Status == uint8(phonebook.StatusResult) {
		_, werr := io.WriteString(stdout, renderTable(buf.String()))
		return werr
	}
	if _, werr := stdout.Write(buf.Bytes()); werr != nil {
		return werr
	}
	return err
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("phonebookctl", pflag.ContinueOnError)
	flags.StringVar(&opts.addr, "addr", "127.0.0.1:9301", "phonebookd TCP address")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "dial and per-command timeout")
	flags.Uint64Var(&opts.maxFrame, "max-frame-bytes", frame.DefaultLimits().MaxPayloadBytes, "largest response frame accepted; must cover the server chunk_size")
	flags.BoolVar(&opts.table, "table", false, "render query results as a table")
	flags.StringVar(&opts.caFile, "tls-ca", "", "PEM CA file; enables TLS")
	flags.StringVar(&opts.serverName, "tls-server-name", "", "server name to verify (default: host from --addr)")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if opts.timeout <= 0 {
		return options{}, fmt.Errorf("timeout must be positive")
	}
	if opts.maxFrame < 1024 {
		return options{}, fmt.Errorf("max-frame-bytes must be at least 1024")
	}
	opts.command = strings.Join(flags.Args(), " ")
	return opts, nil
}

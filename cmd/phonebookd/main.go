// phonebookd hosts one in-memory contact directory behind a character
// device and serves it over framed TCP and HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/phonebook/internal/chardev"
	"github.com/danmuck/phonebook/internal/config"
	"github.com/danmuck/phonebook/internal/directory"
	"github.com/danmuck/phonebook/internal/observability"
	"github.com/danmuck/phonebook/internal/phonebook"
	"github.com/danmuck/phonebook/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "phonebookd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	logger := observability.InitLogger("phonebookd")
	observability.RegisterMetrics()

	opts, err := serverOptions(*cfg)
	if err != nil {
		return err
	}

	book := phonebook.New(directory.New(), phonebook.WithLogger(logger))
	dev := chardev.New(cfg.Name, book)
	defer dev.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.TCPAddr != "" {
		tcp := server.NewTCP(cfg.TCPAddr, dev, cfg.ChunkSize, cfg.MaxFrameBytes, opts...)
		g.Go(func() error { return tcp.Serve(gctx) })
	}
	if cfg.HTTPAddr != "" {
		api := server.NewHTTP(cfg.HTTPAddr, dev, cfg.ChunkSize, cfg.CorsOrigins, opts...)
		g.Go(func() error { return api.Serve(gctx, cfg.ShutdownTimeout) })
	}
	log.Info().
		Str("device", cfg.Name).
		Str("tcp_addr", cfg.TCPAddr).
		Str("http_addr", cfg.HTTPAddr).
		Int("chunk_size", cfg.ChunkSize).
		Bool("tls", cfg.TLSEnabled()).
		Msg("phonebookd started")

	err = g.Wait()
	log.Info().Err(err).Msg("phonebookd stopping")
	return err
}

func serverOptions(cfg config.Config) ([]server.Option, error) {
	var opts []server.Option
	if cfg.TLSEnabled() {
		tlsCfg, err := server.LoadTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithTLS(tlsCfg))
	}
	return opts, nil
}

// parseFlags returns nil, nil when --help was requested.
func parseFlags(args []string) (*config.Config, error) {
	flags := pflag.NewFlagSet("phonebookd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a phonebookd TOML config")
	tcpAddr := flags.String("tcp-addr", "", "framed TCP listen address (overrides config)")
	httpAddr := flags.String("http-addr", "", "HTTP listen address (overrides config)")
	chunk := flags.Int("chunk-size", 0, "response chunk size in bytes (overrides config)")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, nil
		}
		return nil, err
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.Changed("tcp-addr") {
		cfg.TCPAddr = *tcpAddr
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr = *httpAddr
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = *chunk
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

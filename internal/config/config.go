package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the phonebookd runtime configuration.
type Config struct {
	Name            string
	TCPAddr         string
	HTTPAddr        string
	ChunkSize       int
	MaxFrameBytes   uint64
	CorsOrigins     []string
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string
}

type fileConfig struct {
	Name            string   `toml:"name"`
	TCPAddr         string   `toml:"tcp_addr"`
	HTTPAddr        string   `toml:"http_addr"`
	ChunkSize       int      `toml:"chunk_size"`
	MaxFrameBytes   uint64   `toml:"max_frame_bytes"`
	CorsOrigins     []string `toml:"cors_origins"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	TLSCertFile     string   `toml:"tls_cert_file"`
	TLSKeyFile      string   `toml:"tls_key_file"`
}

func DefaultConfig() Config {
	return Config{
		Name:            "phonebook",
		TCPAddr:         "127.0.0.1:9301",
		HTTPAddr:        "127.0.0.1:9300",
		ChunkSize:       256,
		MaxFrameBytes:   64 * 1024,
		CorsOrigins:     []string{"http://localhost:3000"},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads path over DefaultConfig. Keys absent from the file keep their
// defaults; an empty string for an address disables that listener.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("tcp_addr") {
		cfg.TCPAddr = strings.TrimSpace(raw.TCPAddr)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if meta.IsDefined("tls_cert_file") {
		cfg.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.TCPAddr == "" && cfg.HTTPAddr == "" {
		return fmt.Errorf("at least one of tcp_addr or http_addr is required")
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.MaxFrameBytes < 1024 {
		return fmt.Errorf("max_frame_bytes must be at least 1024, got %d", cfg.MaxFrameBytes)
	}
	if uint64(cfg.ChunkSize) > cfg.MaxFrameBytes/2 {
		return fmt.Errorf("chunk_size %d does not fit in max_frame_bytes %d", cfg.ChunkSize, cfg.MaxFrameBytes)
	}
	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be set together")
	}
	return nil
}

// TLSEnabled reports whether both listeners should serve TLS.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

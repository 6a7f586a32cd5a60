// Package config holds the settings of the development server.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values used when neither a config file nor a flag overrides them.
const (
	DefaultAddr     = "0.0.0.0:5500"
	DefaultDir      = "."
	DefaultCertFile = "server-cert.pem"
	DefaultKeyFile  = "server-key.pem"
)

// ErrUnsupportedFormat is returned by Load for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// CORS is the set of headers appended to every response.
type CORS struct {
	AllowOrigin  string `toml:"allow_origin" yaml:"allow_origin"`
	AllowMethods string `toml:"allow_methods" yaml:"allow_methods"`
	AllowHeaders string `toml:"allow_headers" yaml:"allow_headers"`
}

// Config describes how the server binds, what it serves and where the TLS
// material lives.
type Config struct {
	// Addr is the host:port the listener binds to.
	Addr string `toml:"addr" yaml:"addr"`
	// Dir is the directory whose files are served.
	Dir string `toml:"dir" yaml:"dir"`
	// CertFile and KeyFile enable TLS when both exist on disk.
	CertFile string `toml:"cert_file" yaml:"cert_file"`
	KeyFile  string `toml:"key_file" yaml:"key_file"`
	// MaxConnections caps simultaneously open connections. 0 means unlimited.
	MaxConnections int `toml:"max_connections" yaml:"max_connections"`
	// Quiet disables the per-request log line.
	Quiet bool `toml:"quiet" yaml:"quiet"`

	CORS CORS `toml:"cors" yaml:"cors"`
}

// Default returns the configuration used when nothing else is given.
func Default() *Config {
	return &Config{
		Addr:     DefaultAddr,
		Dir:      DefaultDir,
		CertFile: DefaultCertFile,
		KeyFile:  DefaultKeyFile,
		CORS: CORS{
			AllowOrigin:  "*",
			AllowMethods: "GET, POST, OPTIONS",
			AllowHeaders: "Content-Type",
		},
	}
}

// Load reads a TOML or YAML file on top of Default. Keys absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return cfg, nil
}

// Validate reports the first setting that would make startup fail.
func (c *Config) Validate() error {
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("invalid addr %q: %w", c.Addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q in addr %q", port, c.Addr)
	}
	if c.Dir == "" {
		return errors.New("dir must not be empty")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must be >= 0, got %d", c.MaxConnections)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	return nil
}

// Host returns the host part of Addr, or Addr itself if it cannot be split.
func (c *Config) Host() string {
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return c.Addr
	}
	return host
}

// Port returns the port part of Addr.
func (c *Config) Port() string {
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return ""
	}
	return port
}

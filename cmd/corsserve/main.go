// Command corsserve serves the current directory over HTTPS (or HTTP when no
// certificate is present) with permissive CORS headers for local front-end
// development.
//
// Usage:
//
//	corsserve [-config file] [-addr host:port] [-dir path] [-cert file] [-key file] [-max-conns n] [-quiet]
//	corsserve probe [-config file] [-json] [-insecure] [-origin origin] [-timeout d] URL
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/f4ah6o/corsserve-go/internal/config"
	"github.com/f4ah6o/corsserve-go/internal/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "probe" {
		os.Exit(runProbe(os.Args[2:], os.Stdout))
	}

	cfg, err := parseServeFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("Invalid configuration: %v", err)
	}

	absDir, err := resolveDir(cfg.Dir)
	if err != nil {
		log.Fatalf("Invalid directory: %v", err)
	}
	cfg.Dir = absDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, color.Output).ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// resolveDir returns dir as an absolute path after checking that it is a
// readable directory.
func resolveDir(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", absDir)
	}
	return absDir, nil
}

// parseServeFlags builds the server configuration from defaults, an optional
// config file and the flags explicitly set on the command line, in that order.
func parseServeFlags(args []string, output io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("corsserve", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "Path to a TOML or YAML config file")
	addr := fs.String("addr", config.DefaultAddr, "Address to listen on")
	dir := fs.String("dir", config.DefaultDir, "Directory to serve")
	certFile := fs.String("cert", config.DefaultCertFile, "TLS certificate file; TLS is enabled when it and -key exist")
	keyFile := fs.String("key", config.DefaultKeyFile, "TLS private key file")
	maxConns := fs.Int("max-conns", 0, "Maximum simultaneous connections (0 = unlimited, 1 = serve one at a time)")
	quiet := fs.Bool("quiet", false, "Do not log requests")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: corsserve [flags]\n       corsserve probe [flags] URL\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "dir":
			cfg.Dir = *dir
		case "cert":
			cfg.CertFile = *certFile
		case "key":
			cfg.KeyFile = *keyFile
		case "max-conns":
			cfg.MaxConnections = *maxConns
		case "quiet":
			cfg.Quiet = *quiet
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

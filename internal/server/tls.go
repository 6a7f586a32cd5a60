package server

import (
	"crypto/tls"
	"fmt"
	"os"
)

// Missing returns the names among certFile and keyFile that do not exist on disk.
func Missing(certFile, keyFile string) []string {
	var missing []string
	for _, name := range []string{certFile, keyFile} {
		if name == "" {
			missing = append(missing, name)
			continue
		}
		if _, err := os.Stat(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// LoadTLS builds a server TLS config from a certificate chain and key.
//
// It returns a nil config and a nil error when either file is missing, so the
// caller falls back to plaintext. Files that exist but do not form a valid
// pair are an error.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	if len(Missing(certFile, keyFile)) > 0 {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair (%s, %s): %w", certFile, keyFile, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}, nil
}

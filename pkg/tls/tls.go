// Package tls builds TLS configurations for the query service and the
// benchmark client.
//
// Server TLS is optional; when a CA file is supplied the server also requires
// and verifies client certificates. The client trusts the CA file when given
// and presents a certificate when one is configured. TLS 1.3 is the minimum
// version on both sides.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds certificate file paths for one side of a connection.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	// CAFile verifies the peer. On the server it turns on client
	// certificate verification.
	CAFile string
}

// Validate checks that every configured file exists. A server needs a
// certificate and key; a client may run with only a CA file.
func (c Config) Validate(server bool) error {
	if !c.Enabled {
		return nil
	}

	if server && (c.CertFile == "" || c.KeyFile == "") {
		return errors.New("tls enabled but cert/key files not specified")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("tls cert and key files must be set together")
	}

	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}

	return nil
}

// ServerConfig returns the server TLS configuration, or nil when TLS is disabled.
// The certificate itself is loaded by http.Server.ListenAndServeTLS.
func (c Config) ServerConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(true); err != nil {
		return nil, err
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS13}
	if c.CAFile != "" {
		pool, err := loadPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// ClientConfig returns the client TLS configuration, or nil when TLS is disabled.
func (c Config) ClientConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	if err := c.Validate(false); err != nil {
		return nil, err
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS13}
	if c.CAFile != "" {
		pool, err := loadPool(c.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	if c.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

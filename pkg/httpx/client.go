package httpx

import (
	"fmt"
	"net/http"
	"time"

	attendtls "github.com/HatiCode/attendbench/pkg/tls"
)

// NewClient creates an HTTP client with optional TLS configuration.
// Keep-alives stay on so timed requests do not pay for connection setup.
func NewClient(tlsCfg attendtls.Config, timeout time.Duration) (*http.Client, error) {
	cryptoTLSConfig, err := tlsCfg.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("create TLS config: %w", err)
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		TLSClientConfig:     cryptoTLSConfig,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

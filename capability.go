package ldapfetch

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
)

var errNoCertificates = errors.New("no certificates found")

// capability is the one-time readiness check of the directory client. Its
// outcome is kept for the lifetime of the Transport.
type capability struct {
	once      sync.Once
	tlsConfig *tls.Config
	err       error
}

// probe returns the TLS configuration for directory connections, building it
// on first use. A failure is permanent.
func (t *Transport) probe() (*tls.Config, error) {
	t.capability.once.Do(func() {
		t.capability.tlsConfig, t.capability.err = newTLSConfig(t.config())
		if t.capability.err != nil {
			t.logger().WithError(t.capability.err).Error("directory client initialization failed")
		}
	})
	return t.capability.tlsConfig, t.capability.err
}

func newTLSConfig(config *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec
	}

	if config.CAFile != "" {
		pem, err := os.ReadFile(config.CAFile)
		if err != nil {
			return nil, fmt.Errorf("load CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("load CA file %s: %w", config.CAFile, errNoCertificates)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

package restclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// loadClientTLSConfig builds a tls.Config from a single PEM file holding
// both the client certificate and its private key concatenated — the
// convention the remote catalogs' mutual-TLS endpoints expect, in place
// of separate cert/key files. An empty credFile means the endpoint does
// not require mTLS (e.g. a local or read-only catalog in tests); the
// client falls back to the default transport.
func loadClientTLSConfig(credFile, caFile string, insecureSkipVerify bool) (*tls.Config, error) {
	if credFile == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(credFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client credential file: %w", err)
	}

	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client credential file: %w", err)
	}

	cfg := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: insecureSkipVerify,
	}

	if caFile != "" {
		caData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caData) {
			return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

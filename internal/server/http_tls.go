package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"tailorcv/internal/config"
)

var tlsVersions = map[string]uint16{
	"":    tls.VersionTLS12,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

var clientAuthPolicies = map[string]tls.ClientAuthType{
	"":        tls.RequireAndVerifyClientCert,
	"require": tls.RequireAndVerifyClientCert,
	"request": tls.RequestClientCert,
	"verify":  tls.VerifyClientCertIfGiven,
}

// tlsMode returns the configured mode, treating empty as disabled.
func (s *Server) tlsMode() string {
	if s.TLSConfig.Mode == "" {
		return "disabled"
	}
	return s.TLSConfig.Mode
}

// configureTLS attaches a tls.Config to httpServer unless TLS is disabled.
func (s *Server) configureTLS(httpServer *http.Server) error {
	mode := s.tlsMode()
	switch mode {
	case "disabled":
		return nil
	case "server", "mutual":
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", mode)
	}

	tlsConfig, err := buildTLSConfig(s.TLSConfig, mode == "mutual")
	if err != nil {
		return fmt.Errorf("failed to set up %s TLS: %w", mode, err)
	}
	httpServer.TLSConfig = tlsConfig
	return nil
}

func buildTLSConfig(c config.TLSConfig, mutual bool) (*tls.Config, error) {
	minVersion, ok := tlsVersions[c.MinVersion]
	if !ok {
		return nil, fmt.Errorf("unsupported minimum TLS version %q", c.MinVersion)
	}
	cert, err := serverCertificate(c)
	if err != nil {
		return nil, err
	}
	suites, err := cipherSuiteIDs(c.CipherSuites)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:   minVersion,
		Certificates: []tls.Certificate{cert},
		CipherSuites: suites,
		ClientAuth:   tls.NoClientCert,
	}
	if !mutual {
		return tlsConfig, nil
	}

	policy, ok := clientAuthPolicies[c.ClientAuthPolicy]
	if !ok {
		return nil, fmt.Errorf("unknown client auth policy %q", c.ClientAuthPolicy)
	}
	pool, err := clientCAPool(c)
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientCAs = pool
	tlsConfig.ClientAuth = policy
	return tlsConfig, nil
}

// serverCertificate prefers inline PEM content (from Vault) over files.
func serverCertificate(c config.TLSConfig) (tls.Certificate, error) {
	switch {
	case c.CertContent != "" && c.KeyContent != "":
		cert, err := tls.X509KeyPair([]byte(c.CertContent), []byte(c.KeyContent))
		if err != nil {
			return cert, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	case c.CertFile != "" && c.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return cert, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	}
	return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
}

func clientCAPool(c config.TLSConfig) (*x509.CertPool, error) {
	pem := []byte(c.CAContent)
	if len(pem) == 0 {
		if c.CAFile == "" {
			return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
		}
		var err error
		if pem, err = os.ReadFile(c.CAFile); err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no CA certificates found in PEM data")
	}
	return pool, nil
}

// cipherSuiteIDs maps names to IDs using the secure suites Go implements.
// A nil result leaves the choice to crypto/tls.
func cipherSuiteIDs(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]uint16)
	for _, suite := range tls.CipherSuites() {
		known[suite.Name] = suite.ID
	}
	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

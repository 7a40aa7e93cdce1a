package config

import "fmt"

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}

	switch tls.Mode {
	case "disabled", "":
		return nil
	case "server":
		return validateCertificate(tls, "server mode")
	case "mutual":
		if err := validateCertificate(tls, "mutual mode"); err != nil {
			return err
		}
		if err := validateSource("caFile", tls.CAFile, "caContent", tls.CAContent); err != nil {
			return err
		}
		if tls.CAFile == "" && tls.CAContent == "" {
			return fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
		}
		switch tls.ClientAuthPolicy {
		case "require", "request", "verify", "":
			return nil
		}
		return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
	}
	return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
}

// validateCertificate requires a certificate and key from exactly one
// source each.
func validateCertificate(tls TLSConfig, mode string) error {
	if (tls.CertFile == "" && tls.CertContent == "") || (tls.KeyFile == "" && tls.KeyContent == "") {
		return fmt.Errorf("TLS certificate and key are required for %s (provide either files or content)", mode)
	}
	if err := validateSource("certFile", tls.CertFile, "certContent", tls.CertContent); err != nil {
		return err
	}
	return validateSource("keyFile", tls.KeyFile, "keyContent", tls.KeyContent)
}

func validateSource(fileField, file, contentField, content string) error {
	if file != "" && content != "" {
		return fmt.Errorf("cannot specify both %s and %s - choose one", fileField, contentField)
	}
	return nil
}

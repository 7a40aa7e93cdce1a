package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailorcv/internal/config"
)

// selfSigned returns a PEM certificate and key valid for localhost.
func selfSigned(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
}

func TestBuildTLSConfig(t *testing.T) {
	cert, key := selfSigned(t)
	base := config.TLSConfig{CertContent: cert, KeyContent: key}

	tests := []struct {
		name    string
		mode    string
		edit    func(*config.TLSConfig)
		wantErr string
		check   func(*testing.T, *tls.Config)
	}{
		{
			name: "server defaults",
			mode: "server",
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
				assert.Equal(t, tls.NoClientCert, c.ClientAuth)
				assert.Nil(t, c.CipherSuites)
			},
		},
		{
			name: "tls 1.3 with suites",
			mode: "server",
			edit: func(c *config.TLSConfig) {
				c.MinVersion = "1.3"
				c.CipherSuites = []string{"TLS_AES_128_GCM_SHA256", "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256"}
			},
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
				assert.Equal(t, []uint16{tls.TLS_AES_128_GCM_SHA256, tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256}, c.CipherSuites)
			},
		},
		{
			name:    "unknown suite",
			mode:    "server",
			edit:    func(c *config.TLSConfig) { c.CipherSuites = []string{"TLS_RSA_WITH_RC4_128_SHA"} },
			wantErr: "cipher suite",
		},
		{
			name:    "unknown version",
			mode:    "server",
			edit:    func(c *config.TLSConfig) { c.MinVersion = "1.0" },
			wantErr: "minimum TLS version",
		},
		{
			name: "mutual with inline CA",
			mode: "mutual",
			edit: func(c *config.TLSConfig) {
				c.CAContent = cert
				c.ClientAuthPolicy = "verify"
			},
			check: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, tls.VerifyClientCertIfGiven, c.ClientAuth)
				assert.NotNil(t, c.ClientCAs)
			},
		},
		{
			name:    "mutual without CA",
			mode:    "mutual",
			wantErr: "CA certificate is required",
		},
		{
			name:    "mutual with garbage CA",
			mode:    "mutual",
			edit:    func(c *config.TLSConfig) { c.CAContent = "not pem" },
			wantErr: "no CA certificates",
		},
		{
			name:    "bad policy",
			mode:    "mutual",
			edit:    func(c *config.TLSConfig) { c.CAContent, c.ClientAuthPolicy = cert, "sometimes" },
			wantErr: "client auth policy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			c.Mode = tt.mode
			if tt.edit != nil {
				tt.edit(&c)
			}
			srv := &Server{TLSConfig: c}
			hs := &http.Server{}
			err := srv.configureTLS(hs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, hs.TLSConfig)
			require.Len(t, hs.TLSConfig.Certificates, 1)
			tt.check(t, hs.TLSConfig)
		})
	}
}

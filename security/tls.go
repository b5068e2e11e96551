package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds TLS settings for calls to an identity provider.
type TLSConfig struct {
	// SkipVerify disables certificate verification. Development only.
	SkipVerify bool   `yaml:"skip_verify" mapstructure:"skip_verify"`
	CAFile     string `yaml:"ca_file" mapstructure:"ca_file"`
	// CAPEM is an inline CA bundle, used in addition to CAFile.
	CAPEM      string `yaml:"ca_pem" mapstructure:"ca_pem"`
	ServerName string `yaml:"server_name" mapstructure:"server_name"`
	MinVersion uint16 `yaml:"min_version" mapstructure:"min_version"`
}

// Build returns a *tls.Config, or nil when nothing is configured and the
// transport defaults apply.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.IsEnabled() {
		return nil, nil
	}
	minVersion := c.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	cfg := &tls.Config{
		InsecureSkipVerify: c.SkipVerify, //nolint:gosec // operator opt-in
		ServerName:         c.ServerName,
		MinVersion:         minVersion,
	}
	pool, err := c.rootCAs()
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// IsEnabled reports whether any setting deviates from the defaults.
func (c *TLSConfig) IsEnabled() bool {
	if c == nil {
		return false
	}
	return c.SkipVerify || c.CAFile != "" || c.CAPEM != "" || c.ServerName != "" || c.MinVersion != 0
}

// Validate checks that referenced files exist.
func (c *TLSConfig) Validate() error {
	if c == nil || c.CAFile == "" {
		return nil
	}
	if _, err := os.Stat(c.CAFile); err != nil {
		return fmt.Errorf("security/tls: ca_file: %w", err)
	}
	return nil
}

func (c *TLSConfig) rootCAs() (*x509.CertPool, error) {
	if c.CAFile == "" && c.CAPEM == "" {
		return nil, nil
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("security/tls: read CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("security/tls: no certificates in %s", c.CAFile)
		}
	}
	if c.CAPEM != "" && !pool.AppendCertsFromPEM([]byte(c.CAPEM)) {
		return nil, fmt.Errorf("security/tls: no certificates in ca_pem")
	}
	return pool, nil
}

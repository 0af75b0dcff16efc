package iothub

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

const (
	DefaultGlobalEndpoint = "global.azure-devices-provisioning.net"
	dpsAPIVersion         = "2019-03-31"
	hubAPIVersion         = "2021-04-12"
)

// Config defines how devices are provisioned and how telemetry reaches the
// hub. Devices may carry their own scope and endpoint.
type Config struct {
	GlobalEndpoint string `json:"global_endpoint"`
	ScopeID        string `json:"scope_id"`
	// BrokerOverride replaces the provisioning broker URL, HubOverride the
	// assigned hub broker URL. Both take a full URL such as tcp://host:1883.
	BrokerOverride  string      `json:"broker_override"`
	HubOverride     string      `json:"hub_override"`
	UseTLS          *bool       `json:"use_tls"`
	CABundle        string      `json:"ca_bundle"`
	TokenTTLSeconds int         `json:"token_ttl_seconds"`
	TimeoutSeconds  int         `json:"timeout_seconds"`
	TLSConfig       *tls.Config `json:"-"`
}

func (c *Config) SetDefaults() {
	if c.GlobalEndpoint == "" {
		c.GlobalEndpoint = DefaultGlobalEndpoint
	}
	if c.UseTLS == nil {
		on := true
		c.UseTLS = &on
	}
	if c.TokenTTLSeconds <= 0 {
		c.TokenTTLSeconds = 3600
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}

func (c Config) Validate() error {
	if c.TokenTTLSeconds < 0 || c.TimeoutSeconds < 0 {
		return fmt.Errorf("iothub durations must not be negative")
	}
	return nil
}

func (c Config) tlsEnabled() bool { return c.UseTLS == nil || *c.UseTLS }

func (c Config) tokenTTL() time.Duration { return time.Duration(c.TokenTTLSeconds) * time.Second }

func (c Config) timeout() time.Duration { return time.Duration(c.TimeoutSeconds) * time.Second }

// dpsBroker returns the provisioning broker URL for endpoint.
func (c Config) dpsBroker(endpoint string) string {
	if c.BrokerOverride != "" {
		return c.BrokerOverride
	}
	return c.brokerURL(endpoint)
}

func (c Config) hubBroker(hub string) string {
	if c.HubOverride != "" {
		return c.HubOverride
	}
	return c.brokerURL(hub)
}

func (c Config) brokerURL(host string) string {
	if c.tlsEnabled() {
		return "ssl://" + host + ":8883"
	}
	return "tcp://" + host + ":1883"
}

// LoadTLSConfig returns the TLS settings for the brokers. Without a CA
// bundle the system roots are used.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.CABundle == "" {
		return cfg, nil
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificate found in %s", c.CABundle)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

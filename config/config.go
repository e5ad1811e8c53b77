package config

import (
	"sync"
	"time"
)

type Config struct {
	// Scheme prefixes bare BMC addresses coming out of discovery.
	Scheme string
	// Timeout bounds each Redfish round trip.
	Timeout time.Duration
	// SSLVerify toggles TLS certificate verification against BMCs.
	SSLVerify bool
	// CredentialsFile is the INI file holding per-vendor BMC credentials.
	CredentialsFile string
	// User and Pass are static credentials overriding the file when set.
	User string
	Pass string
}

var (
	config *Config
	once   sync.Once
)

func NewConfig(c *Config) {
	once.Do(func() {
		if c != nil {
			config = c
		} else {
			config = &Config{Scheme: "https", Timeout: 10 * time.Second}
		}
	})
}

func GetConfig() *Config {
	if config != nil {
		return config
	}

	NewConfig(nil)
	return config
}

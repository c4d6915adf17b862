// Package config handles configuration for the client component.
package config

import "time"

// Config holds runtime settings for the StayHub client.
//
// Fields:
//   - ServerURL: base URL of the backend HTTP API.
//   - DatabaseDSN: path of the local sqlite session database.
//   - AMQPURL: broker URL for the forced-logout push channel; empty disables
//     the listener and the client falls back to discovering revocation on its
//     next 401.
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	DatabaseDSN    string
	AMQPURL        string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabaseDSN = "stayhub.db"
	c.AMQPURL = ""
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

package config

import "time"

// Config holds runtime settings for the terminal client.
type Config struct {
	GRPCAddr            string
	WSURL               string
	Token               string
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with local development defaults.
func (c *Config) LoadDefaults() {
	c.GRPCAddr = "127.0.0.1:50051"
	c.WSURL = "ws://127.0.0.1:8080/ws"
	c.OnlineCheckInterval = 3 * time.Second
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

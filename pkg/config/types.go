package config

import "fmt"

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Identity  IdentityConfig  `yaml:"identity"`
	App       AppConfig       `yaml:"app"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds http, storage and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// BackendConfig points at the conversation workflow backend. WebhookURL is
// mandatory; history/sessions endpoints may be left unset, in which case the
// corresponding queries resolve to empty results without a network call.
type BackendConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	HistoryURL  string `yaml:"history_url"`
	SessionsURL string `yaml:"sessions_url"`
	APIKey      string `yaml:"api_key"`
	// Timeouts in seconds. Sends wait on AI generation and get a long
	// budget; history/session queries a short one.
	SendTimeoutS  int `yaml:"send_timeout_s"`
	QueryTimeoutS int `yaml:"query_timeout_s"`
}

// IdentityConfig points at the hosted identity provider.
type IdentityConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

// AppConfig holds display strings handed to the UI.
type AppConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// RetentionConfig schedules the sweep of idle anonymous viewer contexts.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	MaxIdle string `yaml:"max_idle"` // duration string, e.g. "72h"
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Audit     AuditConfig     `yaml:"audit"`
	Security  SecurityConfig  `yaml:"security"`
	Limits    LimitsConfig    `yaml:"limits"`
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

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AuditConfig holds the audit file sink location. Empty disables the
// dedicated sink; audit events then go to the main logger.
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// SecurityConfig holds API keys, signing secrets and rate limiting.
type SecurityConfig struct {
	APIKeys struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
	} `yaml:"api_keys"`
	SigningKeys []string `yaml:"signing_keys"`
	RateLimit   struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LimitsConfig caps request payloads.
type LimitsConfig struct {
	MaxContentBytes SizeBytes `yaml:"max_content_bytes"`
}

// RetentionConfig holds configuration for the automatic purge runner.
type RetentionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Cron      string `yaml:"cron"`
	Period    string `yaml:"period"`
	BatchSize int    `yaml:"batch_size"`
	DryRun    bool   `yaml:"dry_run"`
}

// ParsePeriod parses the retention period ("720h", "30d" style where d
// means 24h) into a duration.
func (r RetentionConfig) ParsePeriod() (time.Duration, error) {
	s := r.Period
	if s == "" {
		return 0, fmt.Errorf("retention period not set")
	}
	if n := len(s); n > 1 && s[n-1] == 'd' {
		var days float64
		if _, err := fmt.Sscanf(s[:n-1], "%g", &days); err == nil {
			return time.Duration(days * 24 * float64(time.Hour)), nil
		}
	}
	return time.ParseDuration(s)
}

// Addr returns the listen address, applying defaults.
func (c *Config) Addr() string {
	addr := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// SizeBytes is a byte count that accepts humanized strings ("1 MB",
// "512KiB") or plain integers in YAML.
type SizeBytes uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SizeBytes) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var n uint64
		if err2 := value.Decode(&n); err2 != nil {
			return err
		}
		*s = SizeBytes(n)
		return nil
	}
	v, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = SizeBytes(v)
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lumewell/passkey-backend/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Session  SessionConfig  `yaml:"session" envconfig:"SESSION"`
	Ceremony CeremonyConfig `yaml:"ceremony" envconfig:"CEREMONY"`
	Cleanup  CleanupConfig  `yaml:"cleanup" envconfig:"CLEANUP"`
}

// ServerConfig contains HTTP server and relying-party configuration
type ServerConfig struct {
	Host        string   `yaml:"host" envconfig:"HOST"`
	Port        int      `yaml:"port" envconfig:"PORT"`
	RPID        string   `yaml:"rp_id" envconfig:"RP_ID"`
	RPOrigin    string   `yaml:"rp_origin" envconfig:"RP_ORIGIN"`
	RPName      string   `yaml:"rp_name" envconfig:"RP_NAME"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"TYPE"` // memory, mongodb
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
}

// SessionConfig configures the session tokens minted after a verified
// authentication ceremony
type SessionConfig struct {
	Secret      string `yaml:"secret" envconfig:"SECRET"`
	ExpiryHours int    `yaml:"expiry_hours" envconfig:"EXPIRY_HOURS"`
	Issuer      string `yaml:"issuer" envconfig:"ISSUER"`
}

// CeremonyConfig contains ceremony tuning
type CeremonyConfig struct {
	// ChallengeTTLSeconds is the challenge validity window. Short enough
	// to bound the replay window, long enough for a user to reach their
	// authenticator.
	ChallengeTTLSeconds int `yaml:"challenge_ttl_seconds" envconfig:"CHALLENGE_TTL_SECONDS"`
}

// ChallengeTTL returns the validity window as a duration
func (c CeremonyConfig) ChallengeTTL() time.Duration {
	return time.Duration(c.ChallengeTTLSeconds) * time.Second
}

// CleanupConfig contains challenge cleanup worker configuration
type CleanupConfig struct {
	Enabled         bool `yaml:"enabled" envconfig:"ENABLED"`
	IntervalSeconds int  `yaml:"interval_seconds" envconfig:"INTERVAL_SECONDS"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("PASSKEY", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			RPID:     "localhost",
			RPOrigin: "http://localhost:8080",
			RPName:   "Lumewell",
		},
		Storage: StorageConfig{
			Type: "memory",
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "passkeys",
				Timeout:  10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			ExpiryHours: 24,
			Issuer:      "passkey-backend",
		},
		Ceremony: CeremonyConfig{
			ChallengeTTLSeconds: 90,
		},
		Cleanup: CleanupConfig{
			Enabled:         true,
			IntervalSeconds: 60,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Fails when the RP ID is not a registrable suffix of the origin
	if _, err := c.RelyingParty(); err != nil {
		return err
	}

	if c.Storage.Type != "memory" && c.Storage.Type != "mongodb" {
		return fmt.Errorf("invalid storage type: %s (must be memory or mongodb)", c.Storage.Type)
	}

	if c.Storage.Type == "mongodb" && c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("mongodb uri is required when using mongodb storage")
	}

	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}

	if c.Ceremony.ChallengeTTLSeconds < 30 || c.Ceremony.ChallengeTTLSeconds > 600 {
		return fmt.Errorf("challenge ttl must be between 30 and 600 seconds, got %d", c.Ceremony.ChallengeTTLSeconds)
	}

	return nil
}

// RelyingParty builds the immutable relying-party identity from the
// server section
func (c *Config) RelyingParty() (domain.RelyingParty, error) {
	return domain.NewRelyingParty(c.Server.RPID, c.Server.RPName, c.Server.RPOrigin)
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PASSKEY_SESSION_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "localhost", cfg.Server.RPID)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 90*time.Second, cfg.Ceremony.ChallengeTTL())
	assert.True(t, cfg.Cleanup.Enabled)

	rp, err := cfg.RelyingParty()
	require.NoError(t, err)
	assert.Equal(t, "localhost", rp.ID)
	assert.Equal(t, "http://localhost:8080", rp.Origin)
}

func TestLoad_MissingSessionSecret(t *testing.T) {
	t.Setenv("PASSKEY_SESSION_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session secret")
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  rp_id: example.com
  rp_origin: https://login.example.com
  rp_name: Example
session:
  secret: file-secret
ceremony:
  challenge_ttl_seconds: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "example.com", cfg.Server.RPID)
	assert.Equal(t, 120*time.Second, cfg.Ceremony.ChallengeTTL())
	assert.Equal(t, "file-secret", cfg.Session.Secret)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
session:
  secret: file-secret
`)
	t.Setenv("PASSKEY_SERVER_PORT", "7070")
	t.Setenv("PASSKEY_SESSION_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Session.Secret)
}

func TestLoad_RPIDOriginMismatch(t *testing.T) {
	path := writeConfigFile(t, `
server:
  rp_id: example.com
  rp_origin: https://unrelated.org
session:
  secret: test-secret
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.Session.Secret = "test-secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown storage type", func(c *Config) { c.Storage.Type = "postgres" }, true},
		{"mongodb without uri", func(c *Config) {
			c.Storage.Type = "mongodb"
			c.Storage.MongoDB.URI = ""
		}, true},
		{"ttl too short", func(c *Config) { c.Ceremony.ChallengeTTLSeconds = 10 }, true},
		{"ttl too long", func(c *Config) { c.Ceremony.ChallengeTTLSeconds = 900 }, true},
		{"ttl at lower bound", func(c *Config) { c.Ceremony.ChallengeTTLSeconds = 30 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "simulated", cfg.Sensors.Driver)
	assert.InDelta(t, 0.75, cfg.Sensors.SuccessRate, 1e-9)
	assert.Equal(t, 20.0, cfg.Sensors.ReadingMin)
	assert.Equal(t, 30.0, cfg.Sensors.ReadingMax)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, 8*time.Hour, cfg.Auth.AccessTokenTTL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9090
sensors:
  driver: modbus
  timeout: 250ms
`), 0o600))

	t.Setenv("EQT_SERVER_GRPC_PORT", "6000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 6000, cfg.Server.GRPCPort)
	assert.Equal(t, "modbus", cfg.Sensors.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Sensors.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Sensors.Driver = "usb" }, wantErr: true},
		{name: "success rate above one", mutate: func(c *Config) { c.Sensors.SuccessRate = 1.5 }, wantErr: true},
		{name: "inverted reading range", mutate: func(c *Config) { c.Sensors.ReadingMin = 40 }, wantErr: true},
		{name: "archive without bucket", mutate: func(c *Config) {
			c.Reports.Archive.Enabled = true
			c.Reports.Archive.Bucket = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestAuthConfig_JWTSecret(t *testing.T) {
	a := AuthConfig{JWTSecretEnv: "EQT_TEST_SECRET"}

	t.Setenv("EQT_TEST_SECRET", "")
	assert.Equal(t, devJWTSecret, a.GetJWTSecret())
	assert.False(t, a.IsProductionReady())

	t.Setenv("EQT_TEST_SECRET", "0123456789abcdef0123456789abcdef")
	assert.True(t, a.IsProductionReady())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Database: "eq", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5432/eq?sslmode=disable", d.DSN())
}

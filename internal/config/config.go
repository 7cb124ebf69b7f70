package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Sensors  SensorsConfig  `mapstructure:"sensors"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type ServerConfig struct {
	GRPCPort        int           `mapstructure:"grpc_port"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig is only used when Enabled; otherwise state lives in memory for the process lifetime.
type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Database         string        `mapstructure:"database"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	MaxConnections   int           `mapstructure:"max_connections"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	KeepSnapshots    int           `mapstructure:"keep_snapshots"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv    string        `mapstructure:"jwt_secret_env"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	Argon2MemoryKiB uint32        `mapstructure:"argon2_memory_kib"`
	Argon2Time      uint32        `mapstructure:"argon2_iterations"`
}

type SensorsConfig struct {
	Driver      string        `mapstructure:"driver"` // simulated | modbus
	Timeout     time.Duration `mapstructure:"timeout"`
	SuccessRate float64       `mapstructure:"success_rate"`
	ReadingMin  float64       `mapstructure:"reading_min"`
	ReadingMax  float64       `mapstructure:"reading_max"`
	Scale       float64       `mapstructure:"scale"`
}

type ReportsConfig struct {
	Archive ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig enables copying generated reports to an S3 compatible bucket.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type SeedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // empty: built-in fixtures
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.snapshot_interval", "30s")
	v.SetDefault("database.keep_snapshots", 10)

	// Auth Defaults
	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.access_token_ttl", "8h")
	v.SetDefault("auth.argon2_memory_kib", 64*1024)
	v.SetDefault("auth.argon2_iterations", 3)

	v.SetDefault("sensors.driver", "simulated")
	v.SetDefault("sensors.timeout", "1s")
	v.SetDefault("sensors.success_rate", 0.75)
	v.SetDefault("sensors.reading_min", 20.0)
	v.SetDefault("sensors.reading_max", 30.0)
	v.SetDefault("sensors.scale", 0.1)

	v.SetDefault("reports.archive.enabled", false)
	v.SetDefault("reports.archive.region", "us-east-1")
	v.SetDefault("reports.archive.prefix", "reports")

	v.SetDefault("seed.enabled", true)
}

// Load reads the YAML file at path. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variables: EQT_SERVER_HTTP_PORT overrides server.http_port
	v.SetEnvPrefix("EQT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Sensors.Driver {
	case "simulated", "modbus":
	default:
		return fmt.Errorf("invalid sensors.driver %q (want simulated or modbus)", c.Sensors.Driver)
	}
	if c.Sensors.SuccessRate < 0 || c.Sensors.SuccessRate > 1 {
		return fmt.Errorf("sensors.success_rate must be within [0,1], got %v", c.Sensors.SuccessRate)
	}
	if c.Sensors.ReadingMin > c.Sensors.ReadingMax {
		return fmt.Errorf("sensors.reading_min %v exceeds reading_max %v", c.Sensors.ReadingMin, c.Sensors.ReadingMax)
	}
	if c.Reports.Archive.Enabled && c.Reports.Archive.Bucket == "" {
		return fmt.Errorf("reports.archive.bucket is required when archiving is enabled")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

const devJWTSecret = "dev-secret-change-in-production-min-32-chars"

// GetJWTSecret loads the signing secret from the configured environment variable.
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET" // Fallback
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		return devJWTSecret
	}
	return secret
}

// IsProductionReady reports whether a real secret of sufficient length is configured.
func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != devJWTSecret && len(secret) >= 32
}

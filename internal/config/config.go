package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverS3       = "s3"
	DriverMinio    = "minio"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DB_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Staging  StagingConfig  `yaml:"staging" envPrefix:"STAGING_"`
	JWT      JWTConfig      `yaml:"jwt" envPrefix:"JWT_"`
	APNs     APNsConfig     `yaml:"apns" envPrefix:"APNS_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" env:"HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	Mode         string        `yaml:"mode" env:"MODE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// browser origins allowed by CORS and the websocket upgrader, empty allows all
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// DatabaseConfig holds metadata store configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// StorageConfig holds remote object store configuration
type StorageConfig struct {
	Driver    string        `yaml:"driver" env:"DRIVER"`
	Bucket    string        `yaml:"bucket" env:"BUCKET"`
	Region    string        `yaml:"region" env:"REGION"`
	Endpoint  string        `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string        `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string        `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool          `yaml:"use_ssl" env:"USE_SSL"`
	PublicURL string        `yaml:"public_url" env:"PUBLIC_URL"` // base URL objects are served from (CDN)
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// StagingConfig holds local upload staging configuration
type StagingConfig struct {
	Dir            string `yaml:"dir" env:"DIR"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
}

// APNsConfig holds push notification configuration
type APNsConfig struct {
	Enabled    bool   `yaml:"enabled" env:"ENABLED"`
	KeyFile    string `yaml:"key_file" env:"KEY_FILE"`
	KeyID      string `yaml:"key_id" env:"KEY_ID"`
	TeamID     string `yaml:"team_id" env:"TEAM_ID"`
	Topic      string `yaml:"topic" env:"TOPIC"`
	Production bool   `yaml:"production" env:"PRODUCTION"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the configuration used for anything the file and the
// environment leave unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3500,
			Mode:         ModeProduction,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  DriverPostgres,
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Storage: StorageConfig{
			Driver:  DriverS3,
			Region:  "us-east-1",
			UseSSL:  true,
			Timeout: 30 * time.Second,
		},
		Staging: StagingConfig{
			Dir:            "images",
			MaxUploadBytes: 5 << 20,
		},
		JWT: JWTConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("jwt.secret must be at least 16 bytes")
	}
	if c.Server.Mode != ModeProduction && c.Server.Mode != ModeDevelopment {
		return fmt.Errorf("unknown server.mode %q", c.Server.Mode)
	}
	if c.Database.Driver != DriverPostgres && c.Database.Driver != DriverMemory {
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case DriverS3, DriverMinio:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for driver %q", c.Storage.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverMinio && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for minio")
	}
	if c.Staging.MaxUploadBytes <= 0 {
		return fmt.Errorf("staging.max_upload_bytes must be positive")
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("storage.timeout must be positive")
	}
	if c.APNs.Enabled && (c.APNs.KeyFile == "" || c.APNs.KeyID == "" || c.APNs.TeamID == "" || c.APNs.Topic == "") {
		return fmt.Errorf("apns requires key_file, key_id, team_id and topic")
	}
	return nil
}

// IsProduction reports whether diagnostic detail must be hidden
func (c *Config) IsProduction() bool {
	return c.Server.Mode == ModeProduction
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. COMMITTEEHUB_DATABASE_URI.
const EnvPrefix = "COMMITTEEHUB"

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   string          `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Sentry    SentryConfig    `yaml:"sentry"`
	RBAC      RBACConfig      `yaml:"rbac"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowedOrigins" split_words:"true"`
	RequestTimeout time.Duration `yaml:"requestTimeout" split_words:"true"`
	SecureCookies  bool          `yaml:"secureCookies" split_words:"true"`
}

type DatabaseConfig struct {
	URI string `yaml:"uri"`
}

// RedisConfig enables the activity stream and hand-raise limiter when Addr is set.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	StreamMaxLen int64  `yaml:"streamMaxLen" split_words:"true"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" split_words:"true"`
	MaxBackups int    `yaml:"maxBackups" split_words:"true"`
	MaxAgeDays int    `yaml:"maxAgeDays" split_words:"true"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// RBACConfig controls where the role policy lives. With Persist set the
// policy is loaded from and saved to the casbin_rule collection.
type RBACConfig struct {
	Persist bool `yaml:"persist"`
}

type RateLimitConfig struct {
	MaxHandRaises int           `yaml:"maxHandRaises" split_words:"true"`
	Window        time.Duration `yaml:"window"`
}

// Defaults returns the configuration used when no file or environment value
// overrides a field.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           1313,
			AllowedOrigins: []string{"http://localhost:5173"},
			RequestTimeout: 10 * time.Second,
		},
		Storage: StorageMongo,
		Database: DatabaseConfig{
			URI: "mongodb://localhost:27017/committeehub",
		},
		Redis: RedisConfig{StreamMaxLen: 1000},
		JWT:   JWTConfig{Expiry: 7 * 24 * time.Hour},
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		RateLimit: RateLimitConfig{MaxHandRaises: 3, Window: 30 * time.Second},
	}
}

// LoadConfig layers the YAML file at path over the defaults and then applies
// environment overrides. A .env file in the working directory is loaded
// first if present. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMongo:
		if c.Database.URI == "" {
			return errors.New("database.uri is required for mongo storage")
		}
	case StorageMemory:
		if c.RBAC.Persist {
			return errors.New("rbac.persist requires mongo storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Dataset source kinds
const (
	SourceCSV = "csv"
	SourceSQL = "sql"
)

type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Teams   TeamsConfig   `yaml:"teams"`
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Refresh RefreshConfig `yaml:"refresh"`
	Log     LogConfig     `yaml:"log"`
}

type DatasetConfig struct {
	Source     string   `yaml:"source"`    // csv or sql
	Path       string   `yaml:"path"`      // csv file
	Delimiter  string   `yaml:"delimiter"` // single character, default ","
	Driver     string   `yaml:"driver"`    // postgres or sqlite
	DSN        string   `yaml:"dsn"`
	Table      string   `yaml:"table"`
	NullValues []string `yaml:"null_values"` // tokens read as a missing winner
	Cache      bool     `yaml:"cache"`       // derive once per fingerprint
}

type TeamsConfig struct {
	AliasesFile string `yaml:"aliases_file"` // YAML overrides of the built-in alias table
}

type ServerConfig struct {
	Port          string `yaml:"port"`
	WSPort        string `yaml:"ws_port"` // reload notifications, empty disables
	MaxMatchLimit int    `yaml:"max_match_limit"`
}

type RedisConfig struct {
	URL    string        `yaml:"url"` // empty disables the response cache and reload stream
	Stream string        `yaml:"stream"`
	TTL    time.Duration `yaml:"ttl"`
}

type RefreshConfig struct {
	Schedule   string        `yaml:"schedule"` // cron spec, empty disables background refresh
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file or environment overrides are given
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Source:    SourceCSV,
			Path:      "data/deliveries.csv",
			Delimiter: ",",
			Driver:    "postgres",
			Table:     "deliveries",
			Cache:     true,
		},
		Server: ServerConfig{
			Port:          "8080",
			WSPort:        "8081",
			MaxMatchLimit: 100,
		},
		Redis: RedisConfig{
			Stream: "iplstats.dataset.loaded",
			TTL:    10 * time.Minute,
		},
		Refresh: RefreshConfig{
			Schedule:   "@every 1m",
			MaxRetries: 3,
			RetryDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at configPath over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	c.Dataset.Source = getEnv("DATASET_SOURCE", c.Dataset.Source)
	c.Dataset.Path = getEnv("DATASET_PATH", c.Dataset.Path)
	c.Dataset.Delimiter = getEnv("DATASET_DELIMITER", c.Dataset.Delimiter)
	c.Dataset.Driver = getEnv("DATASET_DRIVER", c.Dataset.Driver)
	c.Dataset.DSN = getEnv("DATASET_DSN", c.Dataset.DSN)
	c.Dataset.Table = getEnv("DATASET_TABLE", c.Dataset.Table)
	c.Teams.AliasesFile = getEnv("TEAM_ALIASES_FILE", c.Teams.AliasesFile)
	c.Server.Port = getEnv("REST_PORT", c.Server.Port)
	c.Server.WSPort = getEnv("WS_PORT", c.Server.WSPort)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.Stream = getEnv("REDIS_STREAM", c.Redis.Stream)
	c.Refresh.Schedule = getEnv("REFRESH_SCHEDULE", c.Refresh.Schedule)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if value := os.Getenv("CACHE_ENABLED"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid CACHE_ENABLED %q: %w", value, err)
		}
		c.Dataset.Cache = enabled
	}
	return nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Dataset.Source {
	case SourceCSV:
		if c.Dataset.Path == "" {
			return fmt.Errorf("dataset.path is required for the csv source")
		}
		if utf8.RuneCountInString(c.Dataset.Delimiter) != 1 {
			return fmt.Errorf("dataset.delimiter must be a single character, got %q", c.Dataset.Delimiter)
		}
	case SourceSQL:
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset.dsn is required for the sql source")
		}
		if c.Dataset.Driver != "postgres" && c.Dataset.Driver != "sqlite" {
			return fmt.Errorf("unsupported dataset.driver %q (postgres or sqlite)", c.Dataset.Driver)
		}
	default:
		return fmt.Errorf("unknown dataset.source %q (csv or sql)", c.Dataset.Source)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.WSPort != "" && c.Server.WSPort == c.Server.Port {
		return fmt.Errorf("server.ws_port must differ from server.port")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported log.format %q (text or json)", c.Log.Format)
	}
	return nil
}

// DelimiterRune returns the csv delimiter as a rune
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Dataset.Delimiter)
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Package config provides Viper-based configuration for ytreport
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/viper"
)

var (
	ErrMissingAPIKey = errors.New("YouTube API key is required")
)

// Config holds the application configuration
type Config struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Report  ReportConfig  `mapstructure:"report"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// YouTubeConfig contains Data API client settings
type YouTubeConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ReportConfig contains report defaults
type ReportConfig struct {
	Count      int    `mapstructure:"count"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// DBConfig points at the optional snapshot store. Empty disables it.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains serve mode settings
type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains terminal output settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// Load reads configuration from .env, the config file and environment
// variables, in increasing order of precedence.
func Load(cfgFile string) (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".ytreport")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ytreport")
	}

	v.SetEnvPrefix("YTREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names used by the API service deployments.
	_ = v.BindEnv("youtube.api_key", "YTREPORT_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	_ = v.BindEnv("db.path", "YTREPORT_DB_PATH", "DB_PATH")
	_ = v.BindEnv("server.port", "YTREPORT_SERVER_PORT", "PORT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("youtube.endpoint", "")
	v.SetDefault("youtube.timeout", 30*time.Second)
	v.SetDefault("youtube.requests_per_second", 5.0)

	v.SetDefault("report.count", 30)
	v.SetDefault("report.output", "youtube_report.html")
	v.SetDefault("report.time_format", "%Y-%m-%d %H:%M")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
}

// Validate checks if the configuration is valid. The API key is checked
// separately by RequireAPIKey because the CLI takes it as an argument.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Report.Count < 1 {
		return fmt.Errorf("invalid report count: %d (must be at least 1)", c.Report.Count)
	}
	if c.YouTube.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid requests_per_second: %v (must be positive)", c.YouTube.RequestsPerSecond)
	}
	if c.Report.TimeFormat != "" {
		if _, err := strftime.New(c.Report.TimeFormat); err != nil {
			return fmt.Errorf("invalid report time_format %q: %w", c.Report.TimeFormat, err)
		}
	}
	return nil
}

// RequireAPIKey fails when no key is configured.
func (c *Config) RequireAPIKey() error {
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("%w: set YOUTUBE_API_KEY or youtube.api_key", ErrMissingAPIKey)
	}
	return nil
}

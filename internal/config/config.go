// Package config loads the configuration of the graphdoc command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stealthrocket/graphdoc/compress"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys: GRAPHDOC_LOG_LEVEL=debug sets log.level.
const EnvPrefix = "GRAPHDOC"

// Config is the configuration of the graphdoc command.
type Config struct {
	Log LogConfig `mapstructure:"log"`

	// Compression applied to binary values: none, lz4 or zstd.
	Compression string `mapstructure:"compression"`
	// Indent is the number of spaces per level of written documents,
	// negative to disable indentation.
	Indent int `mapstructure:"indent"`
	// Output format of inspect: text or yaml.
	Output string `mapstructure:"output"`
	// MaxDepth limits the nesting of documents accepted by inspect.
	MaxDepth int `mapstructure:"max_depth"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// File, when set, also receives the logs, with size based rotation.
	File string `mapstructure:"file"`
	// Rotation of File.
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls the rotation of the log file.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Compression: "lz4",
		Indent:      2,
		Output:      "text",
		MaxDepth:    512,
	}
}

// Load reads the configuration into v, which may already hold bound command
// line flags. Values come, by decreasing precedence, from flags, environment
// variables (including .env files of the working directory), the config
// file at path or graphdoc.yaml in the usual locations, and defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := Default()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("compression", cfg.Compression)
	v.SetDefault("indent", cfg.Indent)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("max_depth", cfg.MaxDepth)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("graphdoc")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "graphdoc"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if _, err := compress.ParseTag(c.Compression); err != nil {
		return fmt.Errorf("invalid compression: %w", err)
	}
	switch c.Output {
	case "text", "yaml":
	default:
		return fmt.Errorf("invalid output: %q", c.Output)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	return nil
}

// CompressionTag returns the parsed compression setting.
func (c *Config) CompressionTag() compress.Tag {
	tag, _ := compress.ParseTag(c.Compression)
	return tag
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ketohub/internal/errors"
	"ketohub/internal/logger"
	"ketohub/internal/sites"
	"ketohub/internal/storage"
)

// EnvPrefix is prepended to every environment variable, e.g. KETOHUB_DOWNLOAD_ROOT.
const EnvPrefix = "KETOHUB"

// Config represents the application configuration
type Config struct {
	DownloadRoot       string   `mapstructure:"download_root"`
	Layout             string   `mapstructure:"layout"`
	Sites              []string `mapstructure:"sites"`
	Timeout            int      `mapstructure:"timeout"`
	MaxConcurrent      int      `mapstructure:"max_concurrent"`
	DelayMS            int      `mapstructure:"delay_ms"`
	ObeyRobots         bool     `mapstructure:"obey_robots"`
	UserAgent          string   `mapstructure:"user_agent"`
	ImageRatePerSecond float64  `mapstructure:"image_rate_per_second"`

	// Logging configuration
	LogLevel       string `mapstructure:"log_level"`
	LogOutput      string `mapstructure:"log_output"`
	LogFilePath    string `mapstructure:"log_file_path"`
	LogIncludeTime bool   `mapstructure:"log_include_time"`
	LogStructured  bool   `mapstructure:"log_structured"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DownloadRoot:       "download_output",
		Layout:             string(storage.LayoutFlat),
		Sites:              []string{"ketoconnect", "ruled-me"},
		Timeout:            30,
		MaxConcurrent:      4,
		DelayMS:            250,
		ObeyRobots:         true,
		UserAgent:          "ketohub (+https://github.com/ketohub/ketohub)",
		ImageRatePerSecond: 2,
		LogLevel:           "INFO",
		LogOutput:          "console",
		LogFilePath:        "ketohub.log",
		LogIncludeTime:     true,
		LogStructured:      false,
	}
}

// settings flattens cfg into viper keys.
func (c *Config) settings() map[string]interface{} {
	return map[string]interface{}{
		"download_root":         c.DownloadRoot,
		"layout":                c.Layout,
		"sites":                 c.Sites,
		"timeout":               c.Timeout,
		"max_concurrent":        c.MaxConcurrent,
		"delay_ms":              c.DelayMS,
		"obey_robots":           c.ObeyRobots,
		"user_agent":            c.UserAgent,
		"image_rate_per_second": c.ImageRatePerSecond,
		"log_level":             c.LogLevel,
		"log_output":            c.LogOutput,
		"log_file_path":         c.LogFilePath,
		"log_include_time":      c.LogIncludeTime,
		"log_structured":        c.LogStructured,
	}
}

// LoadConfig loads configuration from defaults, an optional config file and the environment
func LoadConfig() (*Config, error) {
	return LoadConfigWithViper(viper.New(), "")
}

// LoadConfigWithViper loads configuration using the provided viper instance,
// which may already have cobra flags bound. An empty configFile searches
// config/config.* and ./config.*; a missing file is not an error.
func LoadConfigWithViper(v *viper.Viper, configFile string) (*Config, error) {
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}

	// Configure viper to read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ConfigurationError, "error reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "failed to unmarshal config")
	}

	return &cfg, nil
}

// Validate checks the configuration before any crawl starts
func (c *Config) Validate() error {
	if c.DownloadRoot == "" {
		return errors.ErrMissingDownloadRoot
	}
	if _, err := storage.ParseLayout(c.Layout); err != nil {
		return err
	}
	if _, err := c.SelectedSites(sites.Default()); err != nil {
		return err
	}
	if _, err := c.LoggerConfig(); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New(errors.ConfigurationError, "timeout must be positive").WithContext("timeout", c.Timeout)
	}
	if c.MaxConcurrent < 1 {
		return errors.New(errors.ConfigurationError, "max_concurrent must be at least 1").WithContext("max_concurrent", c.MaxConcurrent)
	}
	if c.DelayMS < 0 {
		return errors.New(errors.ConfigurationError, "delay_ms must not be negative").WithContext("delay_ms", c.DelayMS)
	}
	if c.ImageRatePerSecond < 0 {
		return errors.New(errors.ConfigurationError, "image_rate_per_second must not be negative")
	}
	return nil
}

// StorageLayout returns the parsed layout.
func (c *Config) StorageLayout() storage.Layout {
	layout, err := storage.ParseLayout(c.Layout)
	if err != nil {
		return storage.LayoutFlat
	}
	return layout
}

// SelectedSites resolves the configured site ids against reg. No ids selects
// every registered site.
func (c *Config) SelectedSites(reg *sites.Registry) ([]*sites.Site, error) {
	ids := c.Sites
	if len(ids) == 0 {
		ids = reg.IDs()
	}

	selected := make([]*sites.Site, 0, len(ids))
	for _, id := range ids {
		s, ok := reg.Lookup(id)
		if !ok {
			return nil, errors.New(errors.ConfigurationError, fmt.Sprintf("unknown site %q", id)).
				WithContext("known", reg.IDs())
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// LoggerConfig converts the logging settings.
func (c *Config) LoggerConfig() (logger.LoggerConfig, error) {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.LoggerConfig{}, errors.Wrap(err, errors.ConfigurationError, "invalid log_level")
	}
	output, err := logger.ParseOutput(c.LogOutput)
	if err != nil {
		return logger.LoggerConfig{}, errors.Wrap(err, errors.ConfigurationError, "invalid log_output")
	}
	return logger.LoggerConfig{
		Level:       level,
		Output:      output,
		FilePath:    c.LogFilePath,
		IncludeTime: c.LogIncludeTime,
		Structured:  c.LogStructured,
	}, nil
}

// RequestTimeout is Timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Delay is DelayMS as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// WriteDefaultConfig writes the default configuration to path. An existing
// file is left untouched and reported with created == false.
func WriteDefaultConfig(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, errors.Wrap(err, errors.ConfigurationError, "failed to create config directory")
	}

	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.Set(key, value)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return false, errors.Wrap(err, errors.ConfigurationError, "failed to write config file")
	}
	return true, nil
}

// BindFlags binds Cobra flags to Viper configuration
func BindFlags(v *viper.Viper, cmd *cobra.Command, flagMappings map[string]string) error {
	for flagName, configKey := range flagMappings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("flag %s not found", flagName)
		}
		if err := v.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s to config key %s: %w", flagName, configKey, err)
		}
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	// Default values for commands
	Defaults DefaultsConfig `mapstructure:"defaults"`
}

// DefaultsConfig holds default values for various commands. The timing
// values are tuning constants, not contracts; anything here can be
// overridden per invocation.
type DefaultsConfig struct {
	// Connection defaults
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ProbeTimeout string `mapstructure:"probe_timeout"`

	// Command timing defaults
	Timeout    string `mapstructure:"timeout"`
	NavTimeout string `mapstructure:"nav_timeout"`

	// Event drain defaults
	IdleInterval string `mapstructure:"idle_interval"`
	DrainCeiling string `mapstructure:"drain_ceiling"`

	// Activation verify-after-write budget
	ActivateRetries  int    `mapstructure:"activate_retries"`
	ActivateInterval string `mapstructure:"activate_interval"`

	// Snapshot defaults
	NodeLimit int `mapstructure:"node_limit"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "auto",
		Quiet:   false,
		Verbose: false,
		Defaults: DefaultsConfig{
			Host:             "127.0.0.1",
			Port:             0,
			ProbeTimeout:     "2s",
			Timeout:          "10s",
			NavTimeout:       "30s",
			IdleInterval:     "500ms",
			DrainCeiling:     "10s",
			ActivateRetries:  5,
			ActivateInterval: "200ms",
			NodeLimit:        10000,
		},
	}
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("tabctl")
	v.SetConfigType("yaml")

	// Config paths in order of precedence, lowest first
	v.AddConfigPath("/etc/tabctl/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "tabctl"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".tabctl")
	}
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("TABCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "TABCTL_FORMAT")
	v.BindEnv("quiet", "TABCTL_QUIET")
	v.BindEnv("verbose", "TABCTL_VERBOSE")
	v.BindEnv("defaults.host", "TABCTL_HOST")
	v.BindEnv("defaults.port", "TABCTL_PORT")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("defaults.host", cfg.Defaults.Host)
	v.SetDefault("defaults.port", cfg.Defaults.Port)
	v.SetDefault("defaults.probe_timeout", cfg.Defaults.ProbeTimeout)
	v.SetDefault("defaults.timeout", cfg.Defaults.Timeout)
	v.SetDefault("defaults.nav_timeout", cfg.Defaults.NavTimeout)
	v.SetDefault("defaults.idle_interval", cfg.Defaults.IdleInterval)
	v.SetDefault("defaults.drain_ceiling", cfg.Defaults.DrainCeiling)
	v.SetDefault("defaults.activate_retries", cfg.Defaults.ActivateRetries)
	v.SetDefault("defaults.activate_interval", cfg.Defaults.ActivateInterval)
	v.SetDefault("defaults.node_limit", cfg.Defaults.NodeLimit)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConfigFile returns the path to the config file that was loaded
func ConfigFile() string {
	v := viper.New()

	v.SetConfigName("tabctl")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	v.SetConfigName(".tabctl")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	return ""
}

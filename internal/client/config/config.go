package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "HOMEKEEPER"
	defaultServerURL     = "http://localhost:8080"
	defaultLogLevel      = "info"
	defaultProbeInterval = 30 * time.Second
)

// AppConfig captures runtime configuration for the client.
type AppConfig struct {
	ServerURL     string
	DataDir       string
	DeviceName    string
	LogLevel      string
	ProbeInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("server.url", defaultServerURL)
	configViper.SetDefault("data.dir", defaultDataDir())
	configViper.SetDefault("device.name", defaultDeviceName())
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("sync.probe_interval", defaultProbeInterval)
}

// Load parses runtime configuration from viper, reading an optional
// config.yaml from the data directory when present.
func Load(configViper *viper.Viper) (AppConfig, error) {
	configViper.SetConfigName("config")
	configViper.SetConfigType("yaml")
	configViper.AddConfigPath(configViper.GetString("data.dir"))
	if err := configViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := AppConfig{
		ServerURL:     configViper.GetString("server.url"),
		DataDir:       configViper.GetString("data.dir"),
		DeviceName:    configViper.GetString("device.name"),
		LogLevel:      configViper.GetString("log.level"),
		ProbeInterval: configViper.GetDuration("sync.probe_interval"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("sync.probe_interval must be positive")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".homekeeper"
	}
	return filepath.Join(home, ".homekeeper")
}

func defaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown-device"
	}
	return host
}

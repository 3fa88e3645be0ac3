// Package daemon manages the Agora delivery-engine runtime and its
// configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Actor   ActorConfig   `toml:"actor"`
	API     APIConfig     `toml:"api"`
	Gateway GatewayConfig `toml:"gateway"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// ActorConfig identifies the logged-in delivery partner.
type ActorConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// APIConfig controls the local HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	Metrics     bool     `toml:"metrics"`
}

// GatewayConfig controls the remote backend connection.
type GatewayConfig struct {
	BaseURL      string `toml:"base_url"`
	Timeout      string `toml:"timeout"`
	PollInterval string `toml:"poll_interval"`
}

// StorageConfig controls the local mirror store location.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	home := agoraHome()
	return Config{
		Actor: ActorConfig{
			ID:   "partner-local",
			Name: "Delivery Partner",
		},
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        7430,
			CORSOrigins: []string{"*"},
			Metrics:     true,
		},
		Gateway: GatewayConfig{
			BaseURL:      "",
			Timeout:      "5s",
			PollInterval: "15s",
		},
		Storage: StorageConfig{
			Dir: home,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(home, "agora.log"),
		},
	}
}

// GatewayTimeout parses the configured gateway timeout (default 5s).
func (c Config) GatewayTimeout() time.Duration {
	return parseDuration(c.Gateway.Timeout, 5*time.Second)
}

// PollInterval parses the configured refresh interval (default 15s).
func (c Config) PollInterval() time.Duration {
	return parseDuration(c.Gateway.PollInterval, 15*time.Second)
}

// LoadConfig reads config from ~/.agora/config.toml, falling back to
// defaults when the file does not exist.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(agoraHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.agora/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(agoraHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// agoraHome returns the Agora data directory.
func agoraHome() string {
	if env := os.Getenv("AGORA_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agora")
}

// AgoraHome is exported for use by other packages.
func AgoraHome() string {
	return agoraHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

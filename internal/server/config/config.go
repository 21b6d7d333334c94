// Package config loads the notegraphd daemon configuration from an
// optional TOML file, with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the daemon configuration
type Config struct {
	Addr         string   `toml:"addr"`
	DBPath       string   `toml:"db_path"`
	LogLevel     string   `toml:"log_level"`
	ReadTimeout  duration `toml:"read_timeout"`
	WriteTimeout duration `toml:"write_timeout"`
	IdleTimeout  duration `toml:"idle_timeout"`
}

// duration wraps time.Duration for TOML decoding of strings like "15s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Addr:         ":8080",
		DBPath:       "notegraph.db",
		LogLevel:     "info",
		ReadTimeout:  duration(15 * time.Second),
		WriteTimeout: duration(15 * time.Second),
		IdleTimeout:  duration(60 * time.Second),
	}
}

// Load reads the config file at path when it exists, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("decoding config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NOTEGRAPH_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("NOTEGRAPH_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("NOTEGRAPH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

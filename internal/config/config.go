// Package config loads runtime configuration from the environment, with an
// optional .env file for development setups.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const envPrefix = "VAULTSCOPE_"

// Config is the full runtime configuration.
type Config struct {
	BackendHost  string
	BackendPort  int
	MetricsPort  int
	LogLevel     string
	LogFormat    string
	MockMode     bool
	MockInterval time.Duration
	EnvFile      string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		BackendHost:  "0.0.0.0",
		BackendPort:  7656,
		MetricsPort:  9156,
		LogLevel:     "info",
		LogFormat:    "auto",
		MockMode:     true,
		MockInterval: 30 * time.Second,
		EnvFile:      ".env",
	}
}

// Load builds the effective configuration: defaults, then the env file,
// then process environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(cfg.EnvFile); err == nil {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			log.Warn().Err(err).Str("file", cfg.EnvFile).Msg("Failed to load env file")
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envPrefix + "BACKEND_HOST"); v != "" {
		c.BackendHost = v
	}
	if v := os.Getenv(envPrefix + "BACKEND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.BackendPort = port
		} else {
			log.Warn().Str("value", v).Msg("Ignoring unparseable backend port")
		}
	}
	if v := os.Getenv(envPrefix + "METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MetricsPort = port
		} else {
			log.Warn().Str("value", v).Msg("Ignoring unparseable metrics port")
		}
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(envPrefix + "MOCK_MODE"); v != "" {
		if b, ok := parseBool(v); ok {
			c.MockMode = b
		} else {
			log.Warn().Str("value", v).Msg("Ignoring unparseable mock mode flag")
		}
	}
	if v := os.Getenv(envPrefix + "MOCK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.MockInterval = d
		} else {
			log.Warn().Str("value", v).Msg("Ignoring unparseable mock interval")
		}
	}
}

func (c Config) validate() error {
	if c.BackendPort < 1 || c.BackendPort > 65535 {
		return fmt.Errorf("backend port %d out of range", c.BackendPort)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics port %d out of range", c.MetricsPort)
	}
	if c.BackendPort == c.MetricsPort {
		return fmt.Errorf("backend and metrics ports collide on %d", c.BackendPort)
	}
	return nil
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off":
		return false, true
	default:
		return false, false
	}
}

// Watch fires onChange whenever the env file is written. Returns a stop
// function. Watching is best-effort: a missing file watches its directory
// instead so a later create still fires.
func (c Config) Watch(onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	target := c.EnvFile
	if _, err := os.Stat(target); err != nil {
		target = filepath.Dir(c.EnvFile)
		if target == "" {
			target = "."
		}
	}
	if err := watcher.Add(target); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", target, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Base(event.Name) != filepath.Base(c.EnvFile) {
					continue
				}
				log.Info().Str("file", event.Name).Msg("Config file changed")
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Config watcher error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

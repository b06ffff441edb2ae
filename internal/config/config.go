package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the CubeSpace client configuration.
type Config struct {
	StoreURL          string
	Feed              string
	PollInterval      time.Duration
	LogPath           string
	LogLevel          string
	LogFormat         string
	OneCubePerVisitor bool
	SaveTimeout       time.Duration
	MetricsAddr       string
	Tracing           string
}

const (
	defaultConfigPath   = "~/.config/cubespace/config.toml"
	defaultStoreURL     = "http://127.0.0.1:7490"
	defaultFeed         = "websocket"
	defaultPollInterval = 2 * time.Second
	defaultLogPath      = "~/.local/state/cubespace/cubespace.log"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultTracing      = "off"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		StoreURL:          defaultStoreURL,
		Feed:              defaultFeed,
		PollInterval:      defaultPollInterval,
		LogPath:           mustExpand(defaultLogPath),
		LogLevel:          defaultLogLevel,
		LogFormat:         defaultLogFormat,
		OneCubePerVisitor: true,
		Tracing:           defaultTracing,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Load locates and parses the config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		StoreURL          string `toml:"store_url"`
		Feed              string `toml:"feed"`
		PollInterval      int    `toml:"poll_interval"`
		LogPath           string `toml:"log_path"`
		LogLevel          string `toml:"log_level"`
		LogFormat         string `toml:"log_format"`
		OneCubePerVisitor *bool  `toml:"one_cube_per_visitor"`
		SaveTimeout       int    `toml:"save_timeout"`
		MetricsAddr       string `toml:"metrics_addr"`
		Tracing           string `toml:"tracing"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.StoreURL = orDefault(raw.StoreURL, defaultStoreURL)
	cfg.Feed = strings.ToLower(orDefault(raw.Feed, defaultFeed))
	if raw.PollInterval > 0 {
		cfg.PollInterval = time.Duration(raw.PollInterval) * time.Second
	}
	cfg.LogPath = mustExpand(orDefault(raw.LogPath, defaultLogPath))
	cfg.LogLevel = strings.ToLower(orDefault(raw.LogLevel, defaultLogLevel))
	cfg.LogFormat = strings.ToLower(orDefault(raw.LogFormat, defaultLogFormat))
	if raw.OneCubePerVisitor != nil {
		cfg.OneCubePerVisitor = *raw.OneCubePerVisitor
	}
	if raw.SaveTimeout > 0 {
		cfg.SaveTimeout = time.Duration(raw.SaveTimeout) * time.Second
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	cfg.Tracing = strings.ToLower(orDefault(raw.Tracing, defaultTracing))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Feed {
	case "websocket", "poll":
	default:
		return fmt.Errorf("invalid feed %q: want websocket or poll", c.Feed)
	}
	switch c.Tracing {
	case "off", "stdout":
	default:
		return fmt.Errorf("invalid tracing %q: want off or stdout", c.Tracing)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: want text or json", c.LogFormat)
	}
	return nil
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

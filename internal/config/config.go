// Package config loads the pedlog configuration file and environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pedlog/pedlog-go/internal/buffer"
	"github.com/pedlog/pedlog-go/internal/logfinder"
	"github.com/pedlog/pedlog-go/internal/safefile"
	"github.com/pedlog/pedlog-go/internal/tailer"
	"github.com/pedlog/pedlog-go/pkg/pedlog"
)

// Environment variables that override the file.
const (
	EnvLogLevel       = "PEDLOG_LOG_LEVEL"
	EnvBufferCapacity = "PEDLOG_BUFFER_CAPACITY"
	EnvRulesFile      = "PEDLOG_RULES_FILE"
)

// maxConfigSize bounds the config file read.
const maxConfigSize = 64 * 1024

// Config holds all pedlog configuration.
type Config struct {
	// LogPath is the chat log file or the directory containing it.
	// Empty means auto-detect; see Location.
	LogPath        string
	BufferCapacity int
	PollInterval   time.Duration
	RulesFile      string
	LogLevel       slog.Level
}

// file is the on-disk form. Durations and levels are strings in both
// formats.
type file struct {
	Location       string `yaml:"location" toml:"location"`
	BufferCapacity int    `yaml:"buffer_capacity" toml:"buffer_capacity"`
	PollInterval   string `yaml:"poll_interval" toml:"poll_interval"`
	RulesFile      string `yaml:"rules_file" toml:"rules_file"`
	LogLevel       string `yaml:"log_level" toml:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BufferCapacity: buffer.DefaultCapacity,
		PollInterval:   tailer.DefaultPollInterval,
		LogLevel:       slog.LevelInfo,
	}
}

// DefaultPath returns the default config file location,
// <user config dir>/pedlog/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pedlog", "config.yaml")
}

// Load reads the config file at path and applies environment overrides.
// An empty path loads DefaultPath, and a missing default file yields the
// defaults. A missing explicit path is an error.
//
// Files ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path != "" {
		data, err := readFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(path, data); err != nil {
				return Config{}, err
			}
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("open config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	f, info, err := safefile.OpenRegular(expandHome(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigSize))
}

func (c *Config) decode(path string, data []byte) error {
	var raw file
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF.
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	}

	if v := strings.TrimSpace(raw.Location); v != "" {
		c.LogPath = expandHome(v)
	}
	if raw.BufferCapacity < 0 {
		return fmt.Errorf("parse config: buffer_capacity must be non-negative, got %d", raw.BufferCapacity)
	}
	if raw.BufferCapacity > 0 {
		c.BufferCapacity = raw.BufferCapacity
	}
	if v := strings.TrimSpace(raw.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse config: poll_interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("parse config: poll_interval must be non-negative, got %v", d)
		}
		c.PollInterval = d
	}
	if v := strings.TrimSpace(raw.RulesFile); v != "" {
		c.RulesFile = expandHome(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = ParseLevel(v)
	}
	return nil
}

// applyEnv applies the PEDLOG_* overrides. PEDLOG_LOCATION is handled by
// Location so that it keeps priority over auto-detection only.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = ParseLevel(v)
	}
	if v := os.Getenv(EnvRulesFile); v != "" {
		c.RulesFile = expandHome(v)
	}
	if v := os.Getenv(EnvBufferCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid capacity %q", EnvBufferCapacity, v)
		}
		c.BufferCapacity = n
	}
	return nil
}

// Location implements pedlog.Locator. The configured path wins, then the
// PEDLOG_LOCATION environment variable, then the default chat log locations.
func (c Config) Location() (string, error) {
	return logfinder.FindLog(c.LogPath)
}

// ReaderOptions returns the reader options described by the config.
func (c Config) ReaderOptions() []pedlog.ReaderOption {
	opts := []pedlog.ReaderOption{
		pedlog.WithCapacity(c.BufferCapacity),
		pedlog.WithPollInterval(c.PollInterval),
	}
	if c.RulesFile != "" {
		opts = append(opts, pedlog.WithRulesFile(c.RulesFile))
	}
	return opts
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to
// slog.Level. Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

var _ pedlog.Locator = Config{}

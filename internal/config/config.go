// Package config loads pipenode settings from a YAML or TOML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/pipenode/pipe"
	"gopkg.in/yaml.v3"
)

// Config holds the settings for a receiver process.
type Config struct {
	Dir      string   `yaml:"dir" toml:"dir"`
	Name     string   `yaml:"name" toml:"name"`
	Codec    string   `yaml:"codec" toml:"codec"`
	MaxFrame int      `yaml:"max_frame" toml:"max_frame"`
	Chain    bool     `yaml:"chain" toml:"chain"`
	LogLevel string   `yaml:"log_level" toml:"log_level"`
	Interval Duration `yaml:"interval" toml:"interval"`
}

// Duration is a time.Duration that decodes from a string such as "500ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which is used by the
// TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Dir:      filepath.Join(os.TempDir(), "pipenode"),
		Codec:    "json",
		MaxFrame: pipe.DefaultMaxFrame,
		Chain:    true,
		LogLevel: "info",
	}
}

// Load reads the configuration file at path (if path is non-empty) over the
// defaults and then applies environment overrides. Env vars always win.
//
// When path is empty, the PIPENODE_CONFIG environment variable names the
// file, if set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PIPENODE_CONFIG")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("load config %q: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("load config %q: %w", path, err)
		}
	default:
		return fmt.Errorf("load config %q: unsupported file type %q", path, ext)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PIPENODE_DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("PIPENODE_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("PIPENODE_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv("PIPENODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PIPENODE_MAX_FRAME"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PIPENODE_MAX_FRAME: %w", err)
		}
		cfg.MaxFrame = n
	}
	if v := os.Getenv("PIPENODE_CHAIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PIPENODE_CHAIN: %w", err)
		}
		cfg.Chain = b
	}
	if v := os.Getenv("PIPENODE_INTERVAL"); v != "" {
		if err := cfg.Interval.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("PIPENODE_INTERVAL: %w", err)
		}
	}
	return nil
}

// Validate reports an error if c is not usable.
func (c *Config) Validate() error {
	switch c.Codec {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid codec %q (must be json or yaml)", c.Codec)
	}
	if c.MaxFrame <= 0 {
		return fmt.Errorf("invalid max_frame %d (must be positive)", c.MaxFrame)
	}
	if c.Dir == "" {
		return fmt.Errorf("socket directory is empty")
	}
	if c.Interval < 0 {
		return fmt.Errorf("invalid interval %v", c.Interval.Std())
	}
	return nil
}

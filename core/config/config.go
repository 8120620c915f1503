// Package config loads geotag settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "GEOTAG_CONFIG"
	listenEnv         = "GEOTAG_LISTEN"
	tempDirEnv        = "GEOTAG_TEMP_DIR"
	logLevelEnv       = "GEOTAG_LOG_LEVEL"
	maxUploadBytesEnv = "GEOTAG_MAX_UPLOAD_BYTES"
	maxImagePixelsEnv = "GEOTAG_MAX_IMAGE_PIXELS"

	defaultMaxUploadBytes = 200 << 20
	defaultMaxImagePixels = 50_000_000
)

// Config holds settings shared by the CLI and the HTTP server.
type Config struct {
	Listen         string    `yaml:"listen"`
	TempDir        string    `yaml:"temp_dir"`
	MaxUploadBytes int64     `yaml:"max_upload_bytes"`
	MaxImagePixels int64     `yaml:"max_image_pixels"` // width×height limit per image
	OutputPrefix   string    `yaml:"output_prefix"`
	Log            LogConfig `yaml:"log"`
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:         ":8080",
		TempDir:        "",
		MaxUploadBytes: defaultMaxUploadBytes,
		MaxImagePixels: defaultMaxImagePixels,
		OutputPrefix:   "geotagged_",
		Log:            LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path (or $GEOTAG_CONFIG when path is empty) over the defaults,
// then applies environment overrides. No file at all is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: max_upload_bytes must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("config: max_image_pixels must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if strings.ContainsAny(c.OutputPrefix, `/\`) {
		return fmt.Errorf("config: output_prefix %q must not contain path separators", c.OutputPrefix)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(listenEnv); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(tempDirEnv); v != "" {
		c.TempDir = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(maxUploadBytesEnv); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", maxUploadBytesEnv, err)
		}
		c.MaxUploadBytes = n
	}
	if v := os.Getenv(maxImagePixelsEnv); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", maxImagePixelsEnv, err)
		}
		c.MaxImagePixels = n
	}
	return nil
}

func merge(base, override Config) Config {
	if override.Listen != "" {
		base.Listen = override.Listen
	}
	if override.TempDir != "" {
		base.TempDir = override.TempDir
	}
	if override.MaxUploadBytes != 0 {
		base.MaxUploadBytes = override.MaxUploadBytes
	}
	if override.MaxImagePixels != 0 {
		base.MaxImagePixels = override.MaxImagePixels
	}
	if override.OutputPrefix != "" {
		base.OutputPrefix = override.OutputPrefix
	}
	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		base.Log.Format = override.Log.Format
	}
	return base
}

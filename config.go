package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultChunkSize = 100 * kb

// Config holds the settings shared by all commands
type Config struct {
	SysBlock      string        `yaml:"sysBlock"`
	DevRoot       string        `yaml:"devRoot"`
	ChunkSize     int           `yaml:"chunkSize"`
	Verify        bool          `yaml:"verify"`
	WatchInterval time.Duration `yaml:"watchInterval"`
	Debug         bool          `yaml:"debug"`
}

func defaultConfig() Config {
	return Config{
		SysBlock:      defaultSysBlock,
		DevRoot:       "/dev",
		ChunkSize:     defaultChunkSize,
		Verify:        true,
		WatchInterval: 2 * time.Second,
	}
}

// defaultConfigPath returns $XDG_CONFIG_HOME/imgwrite/config.yaml
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "imgwrite", "config.yaml")
}

// loadConfig overlays the YAML file at path onto the defaults. A missing
// file is only an error when the path was given explicitly. The result is
// validated by the caller once flags are applied.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.SysBlock == "" {
		return fmt.Errorf("sysBlock must not be empty")
	}
	if c.DevRoot == "" {
		return fmt.Errorf("devRoot must not be empty")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watchInterval must be positive, got %s", c.WatchInterval)
	}
	return nil
}

// Package config holds the tool's settings.
//
// Config is stored at $XDG_CONFIG_HOME/llmstack/config.yaml (defaults to
// ~/.config/llmstack/config.yaml). Every field has a usable default so a
// missing file is not an error; the hardcoded constants of the workflow
// (probe timeout, restart-loop threshold) live here on purpose so they can
// be tuned without a rebuild.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"llmstack"
	"llmstack/internal/clockcheck"
)

// Config are the tool-wide settings.
type Config struct {
	// ComposeFile is the stack definition to diagnose and clean.
	ComposeFile string `yaml:"compose-file"`
	// Project scopes default container/volume/network names.
	Project string `yaml:"project"`
	// StoreFile is the image sync record document.
	StoreFile string `yaml:"store-file"`
	// Registry is the base path of the local mirror registry.
	Registry string `yaml:"registry"`
	// OllamaPort is where the inference server listens on the host.
	OllamaPort uint16 `yaml:"ollama-port"`
	// ProbeTimeoutSeconds bounds each reachability probe.
	ProbeTimeoutSeconds int `yaml:"probe-timeout-seconds"`
	// RestartLoopThreshold is the restart count above which a container
	// is reported as restart-looping.
	RestartLoopThreshold int `yaml:"restart-loop-threshold"`
	// NTPPool serves the clock check in full diagnostics.
	NTPPool string `yaml:"ntp-pool"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/llmstack/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "llmstack", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "llmstack", "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ComposeFile:          "compose.yaml",
		Project:              "llm",
		StoreFile:            filepath.Join(filepath.Dir(Path()), "images.json"),
		Registry:             "localhost:5000/mirror",
		OllamaPort:           11434,
		ProbeTimeoutSeconds:  5,
		RestartLoopThreshold: llmstack.DefaultRestartLoopThreshold,
		NTPPool:              clockcheck.DefaultPool,
	}
}

// Load reads the config file. A missing file yields the defaults; a
// present but unparseable one is an error.
func Load() (*Config, error) {
	return loadFrom(Path())
}

// LoadFrom reads the config at an explicit path instead of the default
// location. The same missing-file and backfill rules apply.
func LoadFrom(path string) (*Config, error) {
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults backfills zero values so a sparse config file keeps the
// built-in behavior for everything it does not mention.
func (c *Config) fillDefaults() {
	def := Default()
	if c.ComposeFile == "" {
		c.ComposeFile = def.ComposeFile
	}
	if c.Project == "" {
		c.Project = def.Project
	}
	if c.StoreFile == "" {
		c.StoreFile = def.StoreFile
	}
	if c.Registry == "" {
		c.Registry = def.Registry
	}
	if c.OllamaPort == 0 {
		c.OllamaPort = def.OllamaPort
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = def.ProbeTimeoutSeconds
	}
	if c.RestartLoopThreshold <= 0 {
		c.RestartLoopThreshold = def.RestartLoopThreshold
	}
	if c.NTPPool == "" {
		c.NTPPool = def.NTPPool
	}
}

// ProbeTimeout returns the probe bound as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

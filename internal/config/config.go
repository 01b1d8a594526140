package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional project config file.
const FileName = ".loadgic.yaml"

// Config holds project settings for runs, the store and the watcher.
type Config struct {
	Debug bool `yaml:"debug"`
	// CheckSyntax parses instrumented sources before running them.
	CheckSyntax bool `yaml:"check_syntax"`
	// Env is merged into every run's environment; flags win over it.
	Env map[string]string `yaml:"env,omitempty"`
	// Ignore holds extra gitignore-style rules on top of .lgignore.
	Ignore []string    `yaml:"ignore,omitempty"`
	Watch  WatchConfig `yaml:"watch"`
}

// WatchConfig configures `loadgic watch`.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce"`
}

// Duration is a time.Duration written as "150ms" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Env:   map[string]string{},
		Watch: WatchConfig{Debounce: Duration(150 * time.Millisecond)},
	}
}

// Load reads root/.loadgic.yaml over the defaults and applies environment
// overrides. A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(root, FileName)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config to root/.loadgic.yaml.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if DebugFromEnv() {
		c.Debug = true
	}
}

// DebugFromEnv reports whether LOADGIC_DEBUG or DEBUG asks for debug logs.
func DebugFromEnv() bool {
	if v := os.Getenv("LOADGIC_DEBUG"); v != "" {
		on, err := strconv.ParseBool(v)
		return err == nil && on
	}
	return strings.EqualFold(os.Getenv("DEBUG"), "true")
}

// Package config holds the control-plane configuration and the persisted
// credential record shared with the child processes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the control-plane server configuration.
type Config struct {
	ListenAddr  string        `yaml:"listen_addr"`
	WebDir      string        `yaml:"web_dir"`
	RecordPath  string        `yaml:"record_path"`
	UserbotBin  string        `yaml:"userbot_bin"`
	SendCodeBin string        `yaml:"sendcode_bin"`
	LogLevel    string        `yaml:"log_level"`
	StopGrace   time.Duration `yaml:"stop_grace"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		ListenAddr:  ":3001",
		WebDir:      "web",
		RecordPath:  "config.json",
		UserbotBin:  "userbot",
		SendCodeBin: "sendcode",
		LogLevel:    "info",
		StopGrace:   5 * time.Second,
	}
}

// Dir returns the directory holding the autoresponder config file.
func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "autoresponder")
}

// Load reads the YAML config at path. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}

	return cfg, nil
}

package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tmrm"
)

// Config is the CLI configuration. Flags override values read from a file.
type Config struct {
	// Backend names the storage backend, e.g. "memory", "logstore" or "sql".
	Backend string `yaml:"backend"`
	// Descriptor is passed to the backend unparsed.
	Descriptor string `yaml:"descriptor"`
	// SubjectMap is the name of the subject map to open.
	SubjectMap string `yaml:"subject_map"`
	// LabelAlias selects the bottom proxy whose literals are labels.
	LabelAlias string `yaml:"label_alias"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// MetricsAddr serves Prometheus metrics while a command runs when set.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:    "memory",
		SubjectMap: "default",
		LabelAlias: tmrm.DefaultLabelAlias,
		LogLevel:   "warn",
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	if c.SubjectMap == "" {
		return fmt.Errorf("subject_map is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

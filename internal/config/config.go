// Package config loads the server's YAML configuration file, the way
// the teacher loads its serverConfig: a single struct decoded with
// gopkg.in/yaml.v3, holding both the listen address and every tunable
// knob that would otherwise be a hardcoded constant.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LogConfig mirrors the teacher's common.LogConfig: a lumberjack
// rotation policy plus a default/per-logger level map.
type LogConfig struct {
	Path         string            `yaml:"path"`
	MaxSizeMB    int               `yaml:"maxSizeMb"`
	MaxAgeDays   int               `yaml:"maxAgeDays"`
	MaxBackups   int               `yaml:"maxBackups"`
	DefaultLevel string            `yaml:"defaultLevel"`
	Levels       map[string]string `yaml:"levels"`
}

// Config is the server's full tunable surface: where it listens, how
// it logs, and every constant spec §4 calls out by name.
type Config struct {
	ListenAddr string     `yaml:"listenAddr"`
	Logs       *LogConfig `yaml:"logs"`

	// MaxMsg bounds a single request frame's payload size. Response
	// truncation uses the proto.MaxMsg constant, not this field.
	MaxMsg int `yaml:"maxMsg"`
	// MaxArgs is the request argument-count limit. proto.ParseRequest
	// enforces its own proto.MaxArgs constant and does not read this
	// field.
	MaxArgs int `yaml:"maxArgs"`
	// MaxLoadFactor is the hashmap newer-table fill ratio that triggers
	// a rehash. internal/hashmap uses its own MaxLoadFactor constant and
	// does not read this field.
	MaxLoadFactor int `yaml:"maxLoadFactor"`
	// RehashWork is the number of chain-heads migrated per hashmap
	// operation. internal/hashmap uses its own RehashWork constant and
	// does not read this field.
	RehashWork int `yaml:"rehashWork"`
	// IdleTimeoutMs is how long a connection may sit with no traffic
	// before the event loop closes it.
	IdleTimeoutMs int64 `yaml:"idleTimeoutMs"`
	// MaxWorks bounds TTL expirations processed per event loop tick.
	MaxWorks int `yaml:"maxWorks"`
	// StatsIntervalCron is the cron/v3 schedule for periodic memory
	// stats logging, e.g. "@every 5s".
	StatsIntervalCron string `yaml:"statsIntervalCron"`
}

// Default returns the configuration used when no file is supplied,
// matching the constants named throughout spec §4 and §6.
func Default() *Config {
	return &Config{
		ListenAddr:    ":1234",
		MaxMsg:        32 * 1024 * 1024,
		MaxArgs:       200000,
		MaxLoadFactor: 8,
		RehashWork:    128,
		IdleTimeoutMs: 15000,
		MaxWorks:      2000,
		StatsIntervalCron: "@every 30s",
		Logs: &LogConfig{
			Path:         "logs",
			MaxSizeMB:    100,
			MaxAgeDays:   5,
			MaxBackups:   10,
			DefaultLevel: "info",
			Levels:       map[string]string{},
		},
	}
}

// Load reads and decodes a YAML config file at path, filling in any
// field the file omits with Default()'s value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.Logs == nil {
		cfg.Logs = Default().Logs
	}
	return cfg, nil
}

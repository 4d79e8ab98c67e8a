package core

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultErrCheckInterval bounds how long the loop driver waits between
// liveness checks.
const DefaultErrCheckInterval = 50 * time.Millisecond

// Config holds interpreter and front-end configuration.
type Config struct {
	// ErrCheckInterval is the loop driver's bounded wait. Zero waits only for
	// wake-ups, timers and cancellation.
	ErrCheckInterval time.Duration `yaml:"err_check_interval" json:"err_check_interval,omitempty" validate:"gte=0" jsonschema:"description=Loop driver liveness check interval in nanoseconds"`
	MemoryLimitMB    int           `yaml:"memory_limit_mb" json:"memory_limit_mb,omitempty" validate:"gte=0,lte=65536" jsonschema:"description=Per-interpreter engine heap limit; 0 means unlimited"`
	Window           bool          `yaml:"window" json:"window,omitempty" jsonschema:"description=Load the window capability at startup"`
	WindowName       string        `yaml:"window_name" json:"window_name,omitempty" validate:"max=128"`
	LogLevel         string        `yaml:"log_level" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Remote           RemoteConfig  `yaml:"remote" json:"remote,omitempty"`
}

// RemoteConfig configures the WebSocket front end.
type RemoteConfig struct {
	Addr       string `yaml:"addr" json:"addr,omitempty" validate:"omitempty,hostname_port" jsonschema:"description=Listen address, host:port"`
	MaxClients int    `yaml:"max_clients" json:"max_clients,omitempty" validate:"gte=0" jsonschema:"description=Concurrent connection cap; 0 means unlimited"`
	Compress   bool   `yaml:"compress" json:"compress,omitempty" jsonschema:"description=Negotiate permessage-deflate"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		ErrCheckInterval: DefaultErrCheckInterval,
		WindowName:       "main",
		LogLevel:         "info",
		Remote:           RemoteConfig{Addr: "127.0.0.1:8765"},
	}
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(data)
}

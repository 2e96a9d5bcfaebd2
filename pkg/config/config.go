package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Output formats understood by the CLI.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	LogLevel logrus.Level `json:"log_level" yaml:"log_level" default:"4"`

	// LivenessTimeout replaces the family broadcast period as the liveness base (0: family period)
	LivenessTimeout time.Duration `json:"liveness_timeout" yaml:"liveness_timeout"`
	// MissedMessages multiplies the liveness base: window = base × (missed + 1)
	MissedMessages int `json:"missed_messages" yaml:"missed_messages"`

	SendTimeout time.Duration `json:"send_timeout" yaml:"send_timeout" default:"500ms"`
	SendBackoff time.Duration `json:"send_backoff" yaml:"send_backoff" default:"10ms"`

	// WheelCircumference in meters, used by speed and wheel-torque decoders
	WheelCircumference float64 `json:"wheel_circumference" yaml:"wheel_circumference" default:"2.2"`

	EventBuffer int `json:"event_buffer" yaml:"event_buffer" default:"64"`
	// PageHistory is the number of raw pages kept per unrecognised device
	PageHistory int `json:"page_history" yaml:"page_history" default:"64"`

	OutputFormat string `json:"output_format" yaml:"output_format" default:"table"`
	// ReplaySpeed scales capture timing (0: as fast as possible)
	ReplaySpeed float64 `json:"replay_speed" yaml:"replay_speed"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.OutputFormat != FormatTable && c.OutputFormat != FormatJSON:
		return fmt.Errorf("%w: output format %q (want %s or %s)", ErrInvalidConfig, c.OutputFormat, FormatTable, FormatJSON)
	case c.LivenessTimeout < 0:
		return fmt.Errorf("%w: negative liveness timeout", ErrInvalidConfig)
	case c.MissedMessages < 0:
		return fmt.Errorf("%w: negative missed messages", ErrInvalidConfig)
	case c.SendTimeout <= 0:
		return fmt.Errorf("%w: send timeout must be positive", ErrInvalidConfig)
	case c.SendBackoff <= 0:
		return fmt.Errorf("%w: send backoff must be positive", ErrInvalidConfig)
	case c.WheelCircumference <= 0:
		return fmt.Errorf("%w: wheel circumference must be positive", ErrInvalidConfig)
	case c.EventBuffer <= 0:
		return fmt.Errorf("%w: event buffer must be positive", ErrInvalidConfig)
	case c.PageHistory <= 0:
		return fmt.Errorf("%w: page history must be positive", ErrInvalidConfig)
	case c.ReplaySpeed < 0:
		return fmt.Errorf("%w: negative replay speed", ErrInvalidConfig)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

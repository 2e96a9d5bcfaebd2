package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Zero(t, cfg.LivenessTimeout)
	assert.Zero(t, cfg.MissedMessages)
	assert.Equal(t, 500*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.SendBackoff)
	assert.InDelta(t, 2.2, cfg.WheelCircumference, 1e-9)
	assert.Equal(t, 64, cfg.EventBuffer)
	assert.Equal(t, 64, cfg.PageHistory)
	assert.Equal(t, FormatTable, cfg.OutputFormat)
	assert.NoError(t, cfg.Validate(), "defaults MUST be valid")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: logrus.InfoLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.logLevel, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "table format is valid", mutate: func(c *Config) { c.OutputFormat = FormatTable }, valid: true},
		{name: "json format is valid", mutate: func(c *Config) { c.OutputFormat = FormatJSON }, valid: true},
		{name: "unknown format", mutate: func(c *Config) { c.OutputFormat = "xml" }},
		{name: "negative timeout", mutate: func(c *Config) { c.LivenessTimeout = -time.Second }},
		{name: "negative missed messages", mutate: func(c *Config) { c.MissedMessages = -1 }},
		{name: "zero send timeout", mutate: func(c *Config) { c.SendTimeout = 0 }},
		{name: "zero backoff", mutate: func(c *Config) { c.SendBackoff = 0 }},
		{name: "zero wheel", mutate: func(c *Config) { c.WheelCircumference = 0 }},
		{name: "zero event buffer", mutate: func(c *Config) { c.EventBuffer = 0 }},
		{name: "zero page history", mutate: func(c *Config) { c.PageHistory = 0 }},
		{name: "negative speed", mutate: func(c *Config) { c.ReplaySpeed = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			before := *cfg

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
			assert.Equal(t, before, *cfg, "Validate MUST NOT modify the config")
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "antscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
liveness_timeout: 2s
missed_messages: 3
wheel_circumference: 2.105
output_format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.LivenessTimeout)
	assert.Equal(t, 3, cfg.MissedMessages)
	assert.InDelta(t, 2.105, cfg.WheelCircumference, 1e-9)
	assert.Equal(t, FormatJSON, cfg.OutputFormat)
	assert.Equal(t, 500*time.Millisecond, cfg.SendTimeout, "keys missing from the file MUST keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("output_format: xml\n"), 0o600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("send_timeout: [1, 2\n"), 0o600))
	_, err = Load(broken)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestConfig_ZeroValues(t *testing.T) {
	cfg := &Config{}

	// Test that zero values don't cause panics
	logger := cfg.NewLogger()
	assert.NotNil(t, logger)
	assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	assert.Error(t, cfg.Validate())
}

func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

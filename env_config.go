// env_config.go: Environment variable support for eventmon configuration
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Environment variables understood by LoadConfigFromEnv.
const (
	EnvSubscribePrefix    = "EVENTMON_SUBSCRIBE_PREFIX"
	EnvUnsubscribePrefix  = "EVENTMON_UNSUBSCRIBE_PREFIX"
	EnvLogLevel           = "EVENTMON_LOG_LEVEL"
	EnvLogFormat          = "EVENTMON_LOG_FORMAT"
	EnvAuditEnabled       = "EVENTMON_AUDIT_ENABLED"
	EnvAuditOutputFile    = "EVENTMON_AUDIT_OUTPUT_FILE"
	EnvAuditMinLevel      = "EVENTMON_AUDIT_MIN_LEVEL"
	EnvAuditBufferSize    = "EVENTMON_AUDIT_BUFFER_SIZE"
	EnvAuditFlushInterval = "EVENTMON_AUDIT_FLUSH_INTERVAL"
)

// EnvVars lists every variable understood by LoadConfigFromEnv.
var EnvVars = []string{
	EnvSubscribePrefix, EnvUnsubscribePrefix,
	EnvLogLevel, EnvLogFormat,
	EnvAuditEnabled, EnvAuditOutputFile, EnvAuditMinLevel,
	EnvAuditBufferSize, EnvAuditFlushInterval,
}

// EnvConfig represents configuration loaded from environment variables
type EnvConfig struct {
	SubscribePrefix   string `env:"EVENTMON_SUBSCRIBE_PREFIX"`
	UnsubscribePrefix string `env:"EVENTMON_UNSUBSCRIBE_PREFIX"`

	LogLevel  string `env:"EVENTMON_LOG_LEVEL"`
	LogFormat string `env:"EVENTMON_LOG_FORMAT"`

	AuditEnabled       *bool         `env:"EVENTMON_AUDIT_ENABLED"`
	AuditOutputFile    string        `env:"EVENTMON_AUDIT_OUTPUT_FILE"`
	AuditMinLevel      string        `env:"EVENTMON_AUDIT_MIN_LEVEL"`
	AuditBufferSize    int           `env:"EVENTMON_AUDIT_BUFFER_SIZE"`
	AuditFlushInterval time.Duration `env:"EVENTMON_AUDIT_FLUSH_INTERVAL"`
}

// LoadConfigFromEnv loads eventmon configuration from environment variables
// and applies defaults for everything left unset.
func LoadConfigFromEnv() (*Config, error) {
	config, err := loadEnvOverrides()
	if err != nil {
		return nil, err
	}
	return config.WithDefaults(), nil
}

// LoadConfigMultiSource loads configuration with precedence:
// 1. Environment variables (highest priority)
// 2. File configuration (YAML or JSON, skipped when configFile is empty)
// 3. Default values (lowest priority)
func LoadConfigMultiSource(configFile string) (*Config, error) {
	config := &Config{}
	if configFile != "" {
		fileConfig, err := LoadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	envConfig, err := loadEnvOverrides()
	if err != nil {
		return config.WithDefaults(), err
	}
	mergeConfigs(config, envConfig)
	// An explicit EVENTMON_AUDIT_ENABLED=false must switch off a file setting.
	if raw := os.Getenv(EnvAuditEnabled); raw != "" {
		config.Audit.Enabled = parseBool(raw)
	}

	return config.WithDefaults(), nil
}

// loadEnvOverrides returns only what the environment sets.
func loadEnvOverrides() (*Config, error) {
	envConfig := &EnvConfig{}
	if err := loadEnvVars(envConfig); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to load environment configuration")
	}

	config := &Config{}
	if err := convertEnvToConfig(envConfig, config); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to convert environment configuration")
	}
	return config, nil
}

func loadEnvVars(envConfig *EnvConfig) error {
	envConfig.SubscribePrefix = strings.TrimSpace(os.Getenv(EnvSubscribePrefix))
	envConfig.UnsubscribePrefix = strings.TrimSpace(os.Getenv(EnvUnsubscribePrefix))
	envConfig.LogLevel = strings.TrimSpace(os.Getenv(EnvLogLevel))
	envConfig.LogFormat = strings.TrimSpace(os.Getenv(EnvLogFormat))
	return loadAuditEnv(envConfig)
}

func loadAuditEnv(envConfig *EnvConfig) error {
	if auditStr := os.Getenv(EnvAuditEnabled); auditStr != "" {
		enabled := parseBool(auditStr)
		envConfig.AuditEnabled = &enabled
	}

	envConfig.AuditOutputFile = os.Getenv(EnvAuditOutputFile)
	envConfig.AuditMinLevel = os.Getenv(EnvAuditMinLevel)

	if bufferStr := os.Getenv(EnvAuditBufferSize); bufferStr != "" {
		buffer, err := strconv.Atoi(bufferStr)
		if err != nil || buffer <= 0 {
			return errors.New(ErrCodeInvalidConfig, "invalid "+EnvAuditBufferSize+" value")
		}
		envConfig.AuditBufferSize = buffer
	}

	if flushStr := os.Getenv(EnvAuditFlushInterval); flushStr != "" {
		duration, err := time.ParseDuration(flushStr)
		if err != nil {
			return errors.New(ErrCodeInvalidConfig, "invalid "+EnvAuditFlushInterval+" format")
		}
		envConfig.AuditFlushInterval = duration
	}
	return nil
}

func convertEnvToConfig(envConfig *EnvConfig, config *Config) error {
	config.SubscribePrefix = envConfig.SubscribePrefix
	config.UnsubscribePrefix = envConfig.UnsubscribePrefix

	if envConfig.LogLevel != "" || envConfig.LogFormat != "" {
		logger, err := NewLogger(envConfig.LogLevel, envConfig.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		config.Logger = &logger
	}

	if envConfig.AuditEnabled != nil {
		config.Audit.Enabled = *envConfig.AuditEnabled
	}
	config.Audit.OutputFile = envConfig.AuditOutputFile
	config.Audit.BufferSize = envConfig.AuditBufferSize
	config.Audit.FlushInterval = envConfig.AuditFlushInterval

	if envConfig.AuditMinLevel != "" {
		level, err := ParseAuditLevel(envConfig.AuditMinLevel)
		if err != nil {
			return err
		}
		config.Audit.MinLevel = level
	}
	return nil
}

// mergeConfigs overrides base with the non-zero values of env.
func mergeConfigs(base, env *Config) {
	if env.SubscribePrefix != "" {
		base.SubscribePrefix = env.SubscribePrefix
	}
	if env.UnsubscribePrefix != "" {
		base.UnsubscribePrefix = env.UnsubscribePrefix
	}
	if env.Logger != nil {
		base.Logger = env.Logger
	}

	if env.Audit.Enabled {
		base.Audit.Enabled = true
	}
	if env.Audit.OutputFile != "" {
		base.Audit.OutputFile = env.Audit.OutputFile
	}
	if env.Audit.MinLevel != AuditInfo {
		base.Audit.MinLevel = env.Audit.MinLevel
	}
	if env.Audit.BufferSize > 0 {
		base.Audit.BufferSize = env.Audit.BufferSize
	}
	if env.Audit.FlushInterval > 0 {
		base.Audit.FlushInterval = env.Audit.FlushInterval
	}
}

// parseBool parses boolean values from environment variables
// Supports: true/false, 1/0, yes/no, on/off, enabled/disabled
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on", "enabled":
		return true
	default:
		return false
	}
}

// GetEnvWithDefault returns environment variable value or default if not set
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

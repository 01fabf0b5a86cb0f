// config_file.go: YAML and JSON configuration files
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agilira/go-errors"
	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the supported configuration file formats
type ConfigFormat int

const (
	FormatUnknown ConfigFormat = iota
	FormatJSON
	FormatYAML
)

// String returns the string representation of the config format for debugging and logging.
func (cf ConfigFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatYAML:
		return "YAML"
	default:
		return "Unknown"
	}
}

// DetectFormat detects the configuration format from the file extension.
func DetectFormat(filePath string) ConfigFormat {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// Duration wraps time.Duration so files can say "5s" or "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	return d.parse(raw)
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// UnmarshalJSON parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	return d.parse(raw)
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) parse(raw string) error {
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// FileConfig is the on-disk form of Config.
type FileConfig struct {
	SubscribePrefix   string          `yaml:"subscribe_prefix,omitempty" json:"subscribe_prefix,omitempty"`
	UnsubscribePrefix string          `yaml:"unsubscribe_prefix,omitempty" json:"unsubscribe_prefix,omitempty"`
	Log               LogFileConfig   `yaml:"log" json:"log"`
	Audit             AuditFileConfig `yaml:"audit" json:"audit"`
}

// LogFileConfig selects the zerolog level and output format.
type LogFileConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// AuditFileConfig is the on-disk form of AuditConfig.
type AuditFileConfig struct {
	Enabled       bool       `yaml:"enabled" json:"enabled"`
	OutputFile    string     `yaml:"output_file,omitempty" json:"output_file,omitempty"`
	MinLevel      AuditLevel `yaml:"min_level" json:"min_level"`
	BufferSize    int        `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	FlushInterval Duration   `yaml:"flush_interval,omitempty" json:"flush_interval,omitempty"`
}

// ParseConfig decodes data in the given format.
func ParseConfig(data []byte, format ConfigFormat) (*FileConfig, error) {
	var fc FileConfig
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse YAML config")
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse JSON config")
		}
	default:
		return nil, errors.New(ErrCodeInvalidConfig, fmt.Sprintf("unsupported config format %s", format))
	}
	return &fc, nil
}

// Config converts the file form into a Config. Defaults are not applied.
func (fc *FileConfig) Config() (*Config, error) {
	cfg := &Config{
		SubscribePrefix:   fc.SubscribePrefix,
		UnsubscribePrefix: fc.UnsubscribePrefix,
		Audit: AuditConfig{
			Enabled:       fc.Audit.Enabled,
			OutputFile:    fc.Audit.OutputFile,
			MinLevel:      fc.Audit.MinLevel,
			BufferSize:    fc.Audit.BufferSize,
			FlushInterval: fc.Audit.FlushInterval.Duration,
		},
	}
	if fc.Log.Level != "" || fc.Log.Format != "" {
		logger, err := NewLogger(fc.Log.Level, fc.Log.Format, os.Stderr)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidConfig, "invalid log settings")
		}
		cfg.Logger = &logger
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML or JSON configuration file. Defaults are not
// applied so that the result can still be merged with other sources.
func LoadConfigFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New(ErrCodeInvalidConfig, "configuration file path cannot be empty")
	}
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("cannot detect the format of '%s' (use .yaml, .yml or .json)", path))
	}

	data, err := os.ReadFile(path) // #nosec G304 - intentional config file loading
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to read config file '"+path+"'")
	}

	fc, err := ParseConfig(data, format)
	if err != nil {
		return nil, err
	}
	return fc.Config()
}

// DefaultFileConfig is the file written by "eventmon config init".
func DefaultFileConfig() FileConfig {
	audit := DefaultAuditConfig()
	return FileConfig{
		SubscribePrefix:   DefaultSubscribePrefix,
		UnsubscribePrefix: DefaultUnsubscribePrefix,
		Log:               LogFileConfig{Level: "info", Format: "json"},
		Audit: AuditFileConfig{
			Enabled:       audit.Enabled,
			MinLevel:      audit.MinLevel,
			BufferSize:    audit.BufferSize,
			FlushInterval: Duration{audit.FlushInterval},
		},
	}
}

// WriteConfigFile serializes fc in the format implied by path and replaces
// the file atomically (temporary file and rename in the same directory).
func WriteConfigFile(path string, fc FileConfig) error {
	var (
		data []byte
		err  error
	)
	switch DetectFormat(path) {
	case FormatYAML:
		data, err = yaml.Marshal(fc)
	case FormatJSON:
		data, err = json.MarshalIndent(fc, "", "  ")
		data = append(data, '\n')
	default:
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("cannot detect the format of '%s' (use .yaml, .yml or .json)", path))
	}
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to serialize config")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to create temp file")
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to close temp file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, ErrCodeIOError, "failed to rename temp file")
	}
	return nil
}

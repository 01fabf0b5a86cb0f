// config_validation.go - configuration validation for eventmon
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/agilira/go-errors"
)

// Validation errors
var (
	ErrInvalidPrefix        = errors.New(ErrCodeInvalidPrefix, "signal method prefix must be an exported Go identifier")
	ErrPrefixConflict       = errors.New(ErrCodeInvalidPrefix, "subscribe and unsubscribe prefixes must differ and neither may start the other")
	ErrInvalidBufferSize    = errors.New(ErrCodeInvalidBufferSize, "buffer size must be positive")
	ErrInvalidFlushInterval = errors.New(ErrCodeInvalidFlushInterval, "flush interval must be positive")
	ErrInvalidOutputFile    = errors.New(ErrCodeInvalidOutputFile, "audit output file must end in .db or .jsonl")
)

// ValidationResult contains the result of configuration validation with detailed feedback.
type ValidationResult struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	first error
}

// String returns a human-readable representation of validation results
func (vr ValidationResult) String() string {
	if vr.Valid {
		if len(vr.Warnings) == 0 {
			return "Configuration is valid"
		}
		return fmt.Sprintf("Configuration is valid with %d warning(s)", len(vr.Warnings))
	}
	return fmt.Sprintf("Configuration is invalid: %d error(s), %d warning(s)",
		len(vr.Errors), len(vr.Warnings))
}

func (vr *ValidationResult) fail(err error) {
	if vr.first == nil {
		vr.first = err
	}
	vr.Errors = append(vr.Errors, err.Error())
}

func (vr *ValidationResult) warn(msg string) {
	vr.Warnings = append(vr.Warnings, msg)
}

// Validate returns the first validation error, or nil. Warnings are only
// reported by ValidateDetailed.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}
	if result.first != nil {
		return result.first
	}
	return errors.New(ErrCodeInvalidConfig, result.Errors[0])
}

// ValidateDetailed performs validation and returns both errors and warnings.
// Empty prefixes are accepted here because WithDefaults fills them in.
func (c *Config) ValidateDetailed() ValidationResult {
	result := ValidationResult{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	c.validatePrefixes(&result)
	c.validateAuditConfig(&result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validatePrefixes(result *ValidationResult) {
	sub, unsub := c.SubscribePrefix, c.UnsubscribePrefix
	if sub == "" {
		sub = DefaultSubscribePrefix
	}
	if unsub == "" {
		unsub = DefaultUnsubscribePrefix
	}

	valid := true
	for _, p := range []string{sub, unsub} {
		if !isExportedIdentifier(p) {
			result.fail(errors.Wrap(ErrInvalidPrefix, ErrCodeInvalidPrefix,
				fmt.Sprintf("invalid signal method prefix %q", p)))
			valid = false
		}
	}
	if valid && (strings.HasPrefix(sub, unsub) || strings.HasPrefix(unsub, sub)) {
		result.fail(ErrPrefixConflict)
	}
}

func isExportedIdentifier(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsUpper(r) {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// validateAuditConfig validates audit configuration if enabled
func (c *Config) validateAuditConfig(result *ValidationResult) {
	if !c.Audit.Enabled {
		return
	}

	if c.Audit.BufferSize < 0 {
		result.fail(ErrInvalidBufferSize)
	} else if c.Audit.BufferSize > 10000 {
		result.warn("Large audit buffer size may consume significant memory")
	}

	if c.Audit.FlushInterval < 0 {
		result.fail(ErrInvalidFlushInterval)
	} else if c.Audit.FlushInterval > 0 && c.Audit.FlushInterval < 100*time.Millisecond {
		result.warn("Audit flush interval below 100ms may impact I/O performance")
	}

	if c.Audit.MinLevel < AuditInfo || c.Audit.MinLevel > AuditCritical {
		result.fail(errors.New(ErrCodeInvalidAuditConfig,
			fmt.Sprintf("unknown audit level %d", c.Audit.MinLevel)))
	}

	if c.Audit.OutputFile == "" {
		result.warn("No audit output file set, using " + defaultAuditPath())
		return
	}
	if err := validateOutputFile(c.Audit.OutputFile); err != nil {
		result.fail(err)
	}
}

// validateOutputFile checks the extension and that the parent directory can
// be created or already is a directory.
func validateOutputFile(outputFile string) error {
	cleanPath := filepath.Clean(outputFile)
	switch filepath.Ext(cleanPath) {
	case ".db", ".jsonl":
	default:
		return errors.Wrap(ErrInvalidOutputFile, ErrCodeInvalidOutputFile,
			fmt.Sprintf("unsupported audit output file '%s'", outputFile))
	}

	dir := filepath.Dir(cleanPath)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return nil // created on first use
	case err != nil:
		return errors.Wrap(err, ErrCodeInvalidOutputFile,
			fmt.Sprintf("cannot access directory '%s'", dir))
	case !info.IsDir():
		return errors.New(ErrCodeInvalidOutputFile,
			fmt.Sprintf("'%s' is not a directory", dir))
	}
	return nil
}

// ValidateConfigFile loads a YAML or JSON configuration file and validates
// it with defaults applied.
func ValidateConfigFile(path string) (ValidationResult, error) {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return ValidationResult{}, err
	}
	return cfg.WithDefaults().ValidateDetailed(), nil
}

// ValidateEnvironmentConfig validates the configuration described by the
// EVENTMON_* environment variables.
func ValidateEnvironmentConfig() error {
	config, err := LoadConfigFromEnv()
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "failed to load config from environment")
	}
	return config.WithDefaults().Validate()
}

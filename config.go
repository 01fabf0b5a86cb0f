// config.go: Configuration management for eventmon
//
// Copyright (c) 2025 AGILira
// Series: AGILira System Libraries
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"time"

	"github.com/agilira/go-timecache"
	"github.com/rs/zerolog"
)

// Default method prefixes of the signal declaration convention.
const (
	DefaultSubscribePrefix   = "On"
	DefaultUnsubscribePrefix = "Off"
)

// Config configures a Registry and every monitor it creates.
type Config struct {
	// SubscribePrefix and UnsubscribePrefix name the method pair declaring a
	// signal: <SubscribePrefix><Name>(handler) token and
	// <UnsubscribePrefix><Name>(token).
	// Default: "On" and "Off"
	SubscribePrefix   string
	UnsubscribePrefix string

	// Audit configures the lifecycle audit trail (attach, reset, dispose).
	// Occurrences themselves are never persisted.
	// Default: disabled
	Audit AuditConfig

	// Logger receives debug lines for wiring changes and warnings for
	// reported errors.
	// Default: zerolog.Nop()
	Logger *zerolog.Logger

	// Metrics receives occurrence and wiring counters.
	// Default: NoopCollector()
	Metrics Collector

	// ErrorHandler receives errors that have no caller to return to, such as
	// a failing Off<Name> during Dispose. If nil they are logged at warn level.
	ErrorHandler ErrorHandler

	// Clock stamps occurrences.
	// Default: timecache.CachedTime
	Clock func() time.Time
}

// WithDefaults applies sensible defaults to the configuration
func (c *Config) WithDefaults() *Config {
	config := *c

	if config.SubscribePrefix == "" {
		config.SubscribePrefix = DefaultSubscribePrefix
	}
	if config.UnsubscribePrefix == "" {
		config.UnsubscribePrefix = DefaultUnsubscribePrefix
	}

	if config.Logger == nil {
		nop := zerolog.Nop()
		config.Logger = &nop
	}

	if config.Metrics == nil {
		config.Metrics = NoopCollector()
	}

	if config.Clock == nil {
		config.Clock = timecache.CachedTime
	}

	if config.Audit.Enabled {
		defaults := DefaultAuditConfig()
		if config.Audit.BufferSize == 0 {
			config.Audit.BufferSize = defaults.BufferSize
		}
		if config.Audit.FlushInterval == 0 {
			config.Audit.FlushInterval = defaults.FlushInterval
		}
	}

	return &config
}

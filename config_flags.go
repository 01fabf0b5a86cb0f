// config_flags.go: Command-line configuration through FlashFlags
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	goerrors "errors"
	"os"
	"slices"
	"strings"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// ErrHelpRequested is returned by ParseConfigFlags for --help and -h after
// the usage text was printed.
var ErrHelpRequested = goerrors.New("help requested")

// Flag names. Each one mirrors the EVENTMON_* variable of the same setting.
const (
	FlagConfig             = "config"
	FlagSubscribePrefix    = "subscribe-prefix"
	FlagUnsubscribePrefix  = "unsubscribe-prefix"
	FlagLogLevel           = "log-level"
	FlagLogFormat          = "log-format"
	FlagAuditEnabled       = "audit-enabled"
	FlagAuditOutputFile    = "audit-output-file"
	FlagAuditMinLevel      = "audit-min-level"
	FlagAuditBufferSize    = "audit-buffer-size"
	FlagAuditFlushInterval = "audit-flush-interval"
)

// NewConfigFlagSet declares the configuration flags on a new FlashFlags set.
func NewConfigFlagSet(appName string) *flashflags.FlagSet {
	fs := flashflags.New(appName)
	fs.SetDescription("Signal monitoring configuration")
	fs.String(FlagConfig, "", "YAML or JSON configuration file")
	fs.String(FlagSubscribePrefix, "", "Method prefix that subscribes a handler (default On)")
	fs.String(FlagUnsubscribePrefix, "", "Method prefix that removes a handler (default Off)")
	fs.String(FlagLogLevel, "", "Log level (debug, info, warn, error)")
	fs.String(FlagLogFormat, "", "Log format (json or text)")
	fs.Bool(FlagAuditEnabled, false, "Write the monitor lifecycle audit trail")
	fs.String(FlagAuditOutputFile, "", "Audit output file (.db or .jsonl)")
	fs.String(FlagAuditMinLevel, "", "Lowest audited level (info, warn, critical)")
	fs.Int(FlagAuditBufferSize, 0, "Audit events buffered before a write")
	fs.Duration(FlagAuditFlushInterval, 0, "Interval of background audit flushes")
	return fs
}

// ParseConfigFlags builds a Config from args with precedence
// flags > EVENTMON_* environment > --config file > defaults.
func ParseConfigFlags(appName string, args []string) (*Config, error) {
	fs := NewConfigFlagSet(appName)

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fs.PrintHelp()
			return nil, ErrHelpRequested
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidConfig, "failed to parse command-line flags")
	}

	config, err := LoadConfigMultiSource(fs.GetString(FlagConfig))
	if err != nil {
		return nil, err
	}
	if err := applyFlags(fs, config); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFlags overrides config with every flag that differs from its zero
// default.
func applyFlags(fs *flashflags.FlagSet, config *Config) error {
	if v := fs.GetString(FlagSubscribePrefix); v != "" {
		config.SubscribePrefix = v
	}
	if v := fs.GetString(FlagUnsubscribePrefix); v != "" {
		config.UnsubscribePrefix = v
	}

	level, format := fs.GetString(FlagLogLevel), fs.GetString(FlagLogFormat)
	if level != "" || format != "" {
		logger, err := NewLogger(level, format, os.Stderr)
		if err != nil {
			return errors.Wrap(err, ErrCodeInvalidConfig, "invalid --"+FlagLogLevel)
		}
		config.Logger = &logger
	}

	if fs.GetBool(FlagAuditEnabled) {
		config.Audit.Enabled = true
	}
	if v := fs.GetString(FlagAuditOutputFile); v != "" {
		config.Audit.OutputFile = v
	}
	if v := fs.GetString(FlagAuditMinLevel); v != "" {
		lvl, err := ParseAuditLevel(v)
		if err != nil {
			return err
		}
		config.Audit.MinLevel = lvl
	}
	if v := fs.GetInt(FlagAuditBufferSize); v != 0 {
		config.Audit.BufferSize = v
	}
	if v := fs.GetDuration(FlagAuditFlushInterval); v != 0 {
		config.Audit.FlushInterval = v
	}

	// Audit defaults depend on Enabled, which a flag may have just set.
	*config = *config.WithDefaults()
	return nil
}

// FlagToEnvKey converts a flag name to its environment variable, for
// example "audit-output-file" to "EVENTMON_AUDIT_OUTPUT_FILE".
func FlagToEnvKey(flagName string) string {
	return "EVENTMON_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// ConfigFlagNames lists the declared flags in lexical order.
func ConfigFlagNames() []string {
	var names []string
	NewConfigFlagSet("eventmon").VisitAll(func(flag *flashflags.Flag) {
		names = append(names, flag.Name())
	})
	slices.Sort(names)
	return names
}

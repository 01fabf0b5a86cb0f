// Command handlers for the eventmon CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/agilira/eventmon"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/prometheus/client_golang/prometheus"
)

// handleDemo monitors a fresh Door, raises the requested signals and prints
// the recorded occurrences.
func (m *Manager) handleDemo(ctx *orpheus.Context) error {
	opened := ctx.GetFlagInt("opened")
	closed := ctx.GetFlagInt("closed")
	if opened < 0 || closed < 0 {
		return errors.New(eventmon.ErrCodeInvalidArgument, "signal counts must not be negative")
	}
	format, err := parseOutputFormat(ctx.GetFlagString("format"))
	if err != nil {
		return err
	}

	cfg, err := eventmon.LoadConfigMultiSource(ctx.GetFlagString("config"))
	if err != nil {
		return err
	}

	var promRegistry *prometheus.Registry
	if ctx.GetFlagBool("metrics") {
		promRegistry = prometheus.NewRegistry()
		collector, err := eventmon.NewPrometheusCollector(promRegistry)
		if err != nil {
			return errors.Wrap(err, eventmon.ErrCodeInvalidConfig, "failed to register metrics")
		}
		cfg.Metrics = collector
	}

	report, err := runDemo(*cfg, opened, closed, ctx.GetFlagString("reason"))
	if err != nil {
		return err
	}
	if err := writeReport(m.out, format, report); err != nil {
		return err
	}

	if promRegistry != nil {
		return writeMetrics(m.out, promRegistry)
	}
	return nil
}

// runDemo is the demo scenario without any output concerns.
func runDemo(cfg eventmon.Config, opened, closed int, reason string) (*demoReport, error) {
	registry, err := eventmon.New(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = registry.Close() }()

	door := NewDoor()
	monitor, err := eventmon.Attach(registry, door, eventmon.AllOf[*Door]())
	if err != nil {
		return nil, err
	}
	defer monitor.Dispose()

	for range opened {
		door.Open()
	}
	for range closed {
		door.Close(reason)
	}

	report := &demoReport{MonitorID: monitor.ID()}
	for _, name := range monitor.Signals() {
		rec, err := monitor.Recorder(name)
		if err != nil {
			return nil, err
		}
		report.Signals = append(report.Signals, newSignalReport(rec))
	}
	return report, nil
}

// handleConfigValidate validates a configuration file with defaults applied.
func (m *Manager) handleConfigValidate(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(eventmon.ErrCodeInvalidArgument, "usage: eventmon config validate <file>")
	}

	result, err := eventmon.ValidateConfigFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "%s: %s\n", path, result.String())
	for _, e := range result.Errors {
		fmt.Fprintf(m.out, "  error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(m.out, "  warning: %s\n", w)
	}

	if !result.Valid {
		return errors.New(eventmon.ErrCodeInvalidConfig, fmt.Sprintf("configuration '%s' is invalid", path))
	}
	return nil
}

// handleConfigInit writes the default configuration.
func (m *Manager) handleConfigInit(ctx *orpheus.Context) error {
	path := ctx.GetArg(0)
	if path == "" {
		return errors.New(eventmon.ErrCodeInvalidArgument, "usage: eventmon config init <file>")
	}
	if err := eventmon.WriteConfigFile(path, eventmon.DefaultFileConfig()); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Wrote %s configuration to %s\n", eventmon.DetectFormat(path), path)
	return nil
}

// handleConfigEnv prints every EVENTMON_* variable and the merged result.
func (m *Manager) handleConfigEnv(ctx *orpheus.Context) error {
	for _, key := range eventmon.EnvVars {
		value := eventmon.GetEnvWithDefault(key, "")
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(m.out, "%-32s %s\n", key, value)
	}

	cfg, err := eventmon.LoadConfigMultiSource(ctx.GetFlagString("config"))
	if err != nil {
		return err
	}
	result := cfg.ValidateDetailed()

	fmt.Fprintf(m.out, "\nsubscribe prefix:   %s\n", cfg.SubscribePrefix)
	fmt.Fprintf(m.out, "unsubscribe prefix: %s\n", cfg.UnsubscribePrefix)
	fmt.Fprintf(m.out, "audit:              %s\n", describeAudit(cfg.Audit))
	fmt.Fprintf(m.out, "validation:         %s\n", result.String())
	return nil
}

// handleAuditStats prints the statistics of an audit store.
func (m *Manager) handleAuditStats(ctx *orpheus.Context) error {
	format, err := parseOutputFormat(ctx.GetFlagString("format"))
	if err != nil {
		return err
	}
	path := auditPath(ctx.GetFlagString("db"))

	stats, err := eventmon.OpenAuditStats(path)
	if err != nil {
		return errors.Wrap(err, eventmon.ErrCodeIOError, "failed to read audit statistics")
	}
	return writeStats(m.out, format, path, stats)
}

// handleAuditMaintenance applies the retention policy to an audit store.
func (m *Manager) handleAuditMaintenance(ctx *orpheus.Context) error {
	path := auditPath(ctx.GetFlagString("db"))
	if err := eventmon.RunAuditMaintenance(path); err != nil {
		return errors.Wrap(err, eventmon.ErrCodeIOError, "audit maintenance failed")
	}
	fmt.Fprintf(m.out, "Maintenance completed for %s\n", displayPath(path))
	return nil
}

// handleInfo displays the version and the signal convention.
func (m *Manager) handleInfo(ctx *orpheus.Context) error {
	fmt.Fprintf(m.out, "eventmon %s\n", Version)
	fmt.Fprintf(m.out, "Signals are declared by method pairs:\n")
	fmt.Fprintf(m.out, "  %s<Name>(handler func(...)) token\n", eventmon.DefaultSubscribePrefix)
	fmt.Fprintf(m.out, "  %s<Name>(token)\n", eventmon.DefaultUnsubscribePrefix)

	if ctx.GetFlagBool("verbose") {
		fmt.Fprintf(m.out, "\nGo version: %s\n", runtime.Version())
		fmt.Fprintf(m.out, "Configuration flags: --%s\n", strings.Join(eventmon.ConfigFlagNames(), ", --"))
		fmt.Fprintf(m.out, "Environment: %s\n", strings.Join(eventmon.EnvVars, ", "))
	}
	return nil
}

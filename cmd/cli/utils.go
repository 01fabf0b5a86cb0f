// Utility functions for the eventmon CLI
//
// Report types and the text, JSON and YAML renderers shared by the
// commands.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/agilira/eventmon"
	"github.com/agilira/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// outputFormat selects how reports are rendered.
type outputFormat int

const (
	outputText outputFormat = iota
	outputJSON
	outputYAML
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return outputText, nil
	case "json":
		return outputJSON, nil
	case "yaml", "yml":
		return outputYAML, nil
	default:
		return outputText, errors.New(eventmon.ErrCodeInvalidArgument,
			fmt.Sprintf("unsupported output format '%s' (use text, json or yaml)", s))
	}
}

type demoReport struct {
	MonitorID string         `json:"monitor_id" yaml:"monitor_id"`
	Signals   []signalReport `json:"signals" yaml:"signals"`
}

type signalReport struct {
	Name        string             `json:"name" yaml:"name"`
	Count       int                `json:"count" yaml:"count"`
	Occurrences []occurrenceReport `json:"occurrences" yaml:"occurrences"`
}

type occurrenceReport struct {
	Seq  uint64    `json:"seq" yaml:"seq"`
	Time time.Time `json:"time" yaml:"time"`
	Args []string  `json:"args,omitempty" yaml:"args,omitempty"`
}

func newSignalReport(rec *eventmon.Recorder) signalReport {
	snapshot := rec.Snapshot()
	sr := signalReport{
		Name:        rec.Name(),
		Count:       len(snapshot),
		Occurrences: make([]occurrenceReport, 0, len(snapshot)),
	}
	for _, occ := range snapshot {
		entry := occurrenceReport{Seq: occ.Seq, Time: occ.Time}
		for _, arg := range occ.Args {
			entry.Args = append(entry.Args, fmt.Sprint(arg))
		}
		sr.Occurrences = append(sr.Occurrences, entry)
	}
	return sr
}

func writeReport(w io.Writer, format outputFormat, report *demoReport) error {
	switch format {
	case outputJSON:
		return writeJSON(w, report)
	case outputYAML:
		return writeYAML(w, report)
	}

	fmt.Fprintf(w, "Monitor %s\n", report.MonitorID)
	for _, s := range report.Signals {
		fmt.Fprintf(w, "%s: %d occurrence(s)\n", s.Name, s.Count)
		for _, occ := range s.Occurrences {
			if len(occ.Args) == 0 {
				fmt.Fprintf(w, "  #%d\n", occ.Seq)
				continue
			}
			fmt.Fprintf(w, "  #%d (%s)\n", occ.Seq, strings.Join(occ.Args, ", "))
		}
	}
	return nil
}

func writeStats(w io.Writer, format outputFormat, path string, stats *eventmon.AuditDatabaseStats) error {
	switch format {
	case outputJSON:
		return writeJSON(w, stats)
	case outputYAML:
		return writeYAML(w, stats)
	}

	fmt.Fprintf(w, "Audit store: %s\n", displayPath(path))
	fmt.Fprintf(w, "Schema version: %d\n", stats.SchemaVersion)
	fmt.Fprintf(w, "Size: %d bytes\n", stats.DatabaseSize)
	fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	for _, name := range sortedKeys(stats.EventsByName) {
		fmt.Fprintf(w, "  %-18s %d\n", name, stats.EventsByName[name])
	}
	for _, level := range sortedKeys(stats.EventsByLevel) {
		fmt.Fprintf(w, "  level %-12s %d\n", level, stats.EventsByLevel[level])
	}
	if stats.OldestEvent != nil && stats.NewestEvent != nil {
		fmt.Fprintf(w, "Range: %s .. %s\n",
			stats.OldestEvent.Format(time.RFC3339), stats.NewestEvent.Format(time.RFC3339))
	}
	return nil
}

// writeMetrics prints every sample gathered from reg as "name{labels} value".
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, eventmon.ErrCodeIOError, "failed to gather metrics")
	}

	fmt.Fprintln(w, "Metrics:")
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			value := metric.GetCounter().GetValue()
			if metric.GetGauge() != nil {
				value = metric.GetGauge().GetValue()
			}
			if len(labels) > 0 {
				fmt.Fprintf(w, "  %s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
			} else {
				fmt.Fprintf(w, "  %s %g\n", mf.GetName(), value)
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, eventmon.ErrCodeIOError, "failed to encode JSON")
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, eventmon.ErrCodeIOError, "failed to encode YAML")
	}
	return enc.Close()
}

// auditPath resolves the --db flag, falling back to the environment.
func auditPath(flag string) string {
	if flag != "" {
		return flag
	}
	return eventmon.GetEnvWithDefault(eventmon.EnvAuditOutputFile, "")
}

func displayPath(path string) string {
	if path == "" {
		return "default audit database"
	}
	return path
}

func describeAudit(cfg eventmon.AuditConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("enabled, %s, min level %s, buffer %d, flush every %s",
		displayPath(cfg.OutputFile), cfg.MinLevel, cfg.BufferSize, cfg.FlushInterval)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

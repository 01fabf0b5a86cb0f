// Package cli provides the command-line interface for eventmon.
//
// The CLI is built on the Orpheus framework and groups its commands the way
// operators use them:
// - demo: wire a sample emitter, fire signals and print what was recorded
// - config: validate, initialize and inspect configuration sources
// - audit: statistics and retention for the monitor audit trail
// - info: version and signal convention
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"
)

// Version of the eventmon command.
const Version = "1.0.0"

// Manager wires the eventmon commands into an Orpheus application.
type Manager struct {
	app *orpheus.App
	out io.Writer
}

// NewManager creates a CLI manager writing to standard output.
func NewManager() *Manager {
	app := orpheus.New("eventmon").
		SetDescription("Record and inspect signals raised by live Go objects").
		SetVersion(Version)

	manager := &Manager{
		app: app,
		out: os.Stdout,
	}

	manager.setupDemoCommand()
	manager.setupConfigCommands()
	manager.setupAuditCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithOutput redirects command output, mainly for tests.
func (m *Manager) WithOutput(w io.Writer) *Manager {
	m.out = w
	return m
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// setupDemoCommand configures 'demo', which monitors a sample door.
func (m *Manager) setupDemoCommand() {
	demoCmd := orpheus.NewCommand("demo", "Monitor a sample door and print the recorded signals")
	demoCmd.SetHandler(m.handleDemo)
	demoCmd.AddIntFlag("opened", "o", 1, "Number of Opened signals to raise")
	demoCmd.AddIntFlag("closed", "c", 1, "Number of Closed signals to raise")
	demoCmd.AddFlag("reason", "r", "manual", "Reason passed with every Closed signal")
	demoCmd.AddFlag("format", "f", "text", "Output format (text|json|yaml)")
	demoCmd.AddFlag("config", "", "", "YAML or JSON configuration file")
	demoCmd.AddBoolFlag("metrics", "m", false, "Print the Prometheus counters after the run")
	m.app.AddCommand(demoCmd)
}

// setupConfigCommands configures the 'config' command group.
func (m *Manager) setupConfigCommands() {
	configCmd := orpheus.NewCommand("config", "Configuration operations")

	// config validate <file>
	configCmd.Subcommand("validate", "Validate a YAML or JSON configuration file", m.handleConfigValidate)

	// config init <file>
	configCmd.Subcommand("init", "Write a configuration file with the defaults", m.handleConfigInit)

	// config env
	envCmd := configCmd.Subcommand("env", "Show the EVENTMON_* environment and the resulting configuration", m.handleConfigEnv)
	envCmd.AddFlag("config", "", "", "Configuration file merged below the environment")

	m.app.AddCommand(configCmd)
}

// setupAuditCommands configures the 'audit' command group.
func (m *Manager) setupAuditCommands() {
	auditCmd := orpheus.NewCommand("audit", "Audit trail management")

	statsCmd := auditCmd.Subcommand("stats", "Show audit trail statistics", m.handleAuditStats)
	statsCmd.AddFlag("db", "d", "", "Audit store (.db or .jsonl), defaults to EVENTMON_AUDIT_OUTPUT_FILE")
	statsCmd.AddFlag("format", "f", "text", "Output format (text|json|yaml)")

	maintenanceCmd := auditCmd.Subcommand("maintenance", "Apply the audit retention policy", m.handleAuditMaintenance)
	maintenanceCmd.AddFlag("db", "d", "", "Audit store (.db or .jsonl), defaults to EVENTMON_AUDIT_OUTPUT_FILE")

	m.app.AddCommand(auditCmd)
}

// setupUtilityCommands configures diagnostics commands.
func (m *Manager) setupUtilityCommands() {
	infoCmd := orpheus.NewCommand("info", "Version and signal convention")
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Include configuration sources")
	m.app.AddCommand(infoCmd)
}

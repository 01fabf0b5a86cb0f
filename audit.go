// audit.go: Lifecycle audit trail for monitors
//
// Records when monitors are created, wired, reset, disposed and pruned so
// that long-running test harnesses and diagnostics tools can reconstruct
// which objects were observed and for how long. Individual occurrences are
// never audited; they live in the recorders only.
//
// Features:
// - Tamper-evident records (SHA-256 checksum per event)
// - Buffered writes with background flushing
// - SQLite or JSONL storage selected by the output file extension
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
)

// AuditLevel represents the severity of audit events
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarn
	AuditCritical
)

func (al AuditLevel) String() string {
	switch al {
	case AuditInfo:
		return "INFO"
	case AuditWarn:
		return "WARN"
	case AuditCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseAuditLevel parses "info", "warn" or "critical" (case-insensitive).
func ParseAuditLevel(s string) (AuditLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "":
		return AuditInfo, nil
	case "warn", "warning":
		return AuditWarn, nil
	case "critical":
		return AuditCritical, nil
	default:
		return AuditInfo, errors.New(ErrCodeInvalidAuditConfig, fmt.Sprintf("unknown audit level %q", s))
	}
}

// MarshalText encodes the level by name in JSON records and config files.
func (al AuditLevel) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(al.String())), nil
}

// UnmarshalText accepts the names understood by ParseAuditLevel.
func (al *AuditLevel) UnmarshalText(text []byte) error {
	level, err := ParseAuditLevel(string(text))
	if err != nil {
		return err
	}
	*al = level
	return nil
}

// Audit event names
const (
	AuditMonitorCreated  = "monitor_created"
	AuditSignalsAttached = "signals_attached"
	AuditMonitorReset    = "monitor_reset"
	AuditMonitorDisposed = "monitor_disposed"
	AuditMonitorPruned   = "monitor_pruned"
	AuditRegistryClosed  = "registry_closed"
)

const auditComponent = "eventmon"

// AuditEvent represents a single auditable event
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       AuditLevel     `json:"level"`
	Event       string         `json:"event"`
	Component   string         `json:"component"`
	MonitorID   string         `json:"monitor_id,omitempty"`
	TargetType  string         `json:"target_type,omitempty"`
	Signals     []string       `json:"signals,omitempty"`
	ProcessID   int            `json:"process_id"`
	ProcessName string         `json:"process_name"`
	Context     map[string]any `json:"context,omitempty"`
	Checksum    string         `json:"checksum"`
}

// AuditConfig configures the audit system
type AuditConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// OutputFile selects the backend: a .jsonl file is appended to as JSON
	// lines, a .db file is used as the SQLite database, and an empty value
	// selects the shared database under the system temp directory.
	OutputFile    string        `json:"output_file" yaml:"output_file"`
	MinLevel      AuditLevel    `json:"min_level" yaml:"min_level"`
	BufferSize    int           `json:"buffer_size" yaml:"buffer_size"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultAuditConfig returns the audit settings applied when auditing is
// switched on without further tuning. Auditing itself stays disabled.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:       false,
		OutputFile:    "",
		MinLevel:      AuditInfo,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}
}

// AuditLogger buffers audit events and hands them to a storage backend in
// batches. A nil *AuditLogger is valid and discards everything, so callers
// never need to check whether auditing is enabled.
type AuditLogger struct {
	config      AuditConfig
	backend     auditBackend
	buffer      []AuditEvent
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
	processID   int
	processName string
}

// NewAuditLogger creates a new audit logger with automatic backend selection.
func NewAuditLogger(config AuditConfig) (*AuditLogger, error) {
	backend, err := createAuditBackend(config)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError, "failed to initialize audit backend")
	}

	logger := &AuditLogger{
		config:      config,
		backend:     backend,
		buffer:      make([]AuditEvent, 0, max(config.BufferSize, 0)),
		stopCh:      make(chan struct{}),
		processID:   os.Getpid(),
		processName: getProcessName(),
	}

	if config.FlushInterval > 0 {
		logger.flushTicker = time.NewTicker(config.FlushInterval)
		go logger.flushLoop()
	}

	return logger, nil
}

// Log records an audit event.
func (al *AuditLogger) Log(level AuditLevel, event, monitorID, targetType string, signals []string, context map[string]any) {
	if al == nil || al.backend == nil || !al.config.Enabled || level < al.config.MinLevel {
		return
	}

	auditEvent := AuditEvent{
		Timestamp:   timecache.CachedTime(),
		Level:       level,
		Event:       event,
		Component:   auditComponent,
		MonitorID:   monitorID,
		TargetType:  targetType,
		Signals:     signals,
		ProcessID:   al.processID,
		ProcessName: al.processName,
		Context:     context,
	}
	auditEvent.Checksum = generateChecksum(auditEvent)

	al.bufferMu.Lock()
	al.buffer = append(al.buffer, auditEvent)
	if len(al.buffer) >= al.config.BufferSize {
		_ = al.flushBufferUnsafe() // retried on the next flush
	}
	al.bufferMu.Unlock()
}

// LogMonitorCreated records a new registry entry.
func (al *AuditLogger) LogMonitorCreated(monitorID, targetType string) {
	al.Log(AuditInfo, AuditMonitorCreated, monitorID, targetType, nil, nil)
}

// LogSignalsAttached records the signals wired by one Attach call.
func (al *AuditLogger) LogSignalsAttached(monitorID, targetType string, signals []string) {
	al.Log(AuditInfo, AuditSignalsAttached, monitorID, targetType, signals, nil)
}

// LogMonitorReset records a ResetAll.
func (al *AuditLogger) LogMonitorReset(monitorID, targetType string) {
	al.Log(AuditInfo, AuditMonitorReset, monitorID, targetType, nil, nil)
}

// LogMonitorDisposed records a disposal. Disposing a monitor whose object
// was already collected is logged at warn level: its handlers could not be
// unwired.
func (al *AuditLogger) LogMonitorDisposed(monitorID, targetType string, signals []string, targetAlive bool) {
	level := AuditInfo
	if !targetAlive {
		level = AuditWarn
	}
	al.Log(level, AuditMonitorDisposed, monitorID, targetType, signals,
		map[string]any{"target_alive": targetAlive})
}

// LogMonitorPruned records the removal of a monitor whose object was
// collected.
func (al *AuditLogger) LogMonitorPruned(monitorID, targetType string) {
	al.Log(AuditWarn, AuditMonitorPruned, monitorID, targetType, nil, nil)
}

// LogRegistryClosed records a registry shutdown.
func (al *AuditLogger) LogRegistryClosed(disposed int) {
	al.Log(AuditInfo, AuditRegistryClosed, "", "", nil, map[string]any{"disposed_monitors": disposed})
}

// Flush immediately writes all buffered events
func (al *AuditLogger) Flush() error {
	if al == nil {
		return nil
	}
	al.bufferMu.Lock()
	defer al.bufferMu.Unlock()
	return al.flushBufferUnsafe()
}

// Stats returns statistics of the underlying storage. Buffered events are
// flushed first so they are counted.
func (al *AuditLogger) Stats() (*AuditDatabaseStats, error) {
	if al == nil {
		return nil, errors.New(ErrCodeInvalidAuditConfig, "audit logging is disabled")
	}
	if err := al.Flush(); err != nil {
		return nil, err
	}
	return al.backend.GetStats()
}

// Maintenance runs the retention cleanup of the storage backend.
func (al *AuditLogger) Maintenance() error {
	if al == nil {
		return nil
	}
	if err := al.Flush(); err != nil {
		return err
	}
	return al.backend.Maintenance()
}

// Close gracefully shuts down the audit logger. It is safe to call more
// than once.
func (al *AuditLogger) Close() error {
	if al == nil {
		return nil
	}
	var err error
	al.closeOnce.Do(func() {
		close(al.stopCh)
		if al.flushTicker != nil {
			al.flushTicker.Stop()
		}

		if ferr := al.Flush(); ferr != nil {
			err = fmt.Errorf("failed to flush audit logger during close: %w", ferr)
			return
		}

		if al.backend != nil {
			if cerr := al.backend.Close(); cerr != nil {
				err = fmt.Errorf("failed to close audit backend: %w", cerr)
			}
		}
	})
	return err
}

func (al *AuditLogger) flushLoop() {
	for {
		select {
		case <-al.flushTicker.C:
			_ = al.Flush() // retried on the next tick
		case <-al.stopCh:
			return
		}
	}
}

// flushBufferUnsafe writes buffer to backend storage (caller must hold bufferMu).
func (al *AuditLogger) flushBufferUnsafe() error {
	if len(al.buffer) == 0 {
		return nil
	}

	if err := al.backend.Write(al.buffer); err != nil {
		return fmt.Errorf("failed to write audit events to backend: %w", err)
	}

	al.buffer = al.buffer[:0]
	return nil
}

// generateChecksum creates a tamper-detection checksum using SHA-256
func generateChecksum(event AuditEvent) string {
	data := fmt.Sprintf("%s:%s:%s:%s:%s:%s:%v",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Event, event.Component, event.MonitorID, event.TargetType,
		strings.Join(event.Signals, ","), event.Context)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// VerifyChecksum reports whether event still matches its checksum.
func VerifyChecksum(event AuditEvent) bool {
	return event.Checksum == generateChecksum(event)
}

func getProcessName() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return auditComponent
	}
	return filepath.Base(os.Args[0])
}

// audit_backend.go: Storage backends for the eventmon audit trail
//
// Two backends share one small interface: SQLite for queryable trails and
// JSONL for files that are shipped to log aggregators. The extension of
// AuditConfig.OutputFile picks one; SQLite failures fall back to JSONL when
// a file name is available.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// auditBackend persists batches of audit events.
type auditBackend interface {
	// Write persists a batch of audit events. Implementations must handle
	// concurrent writes safely.
	Write(events []AuditEvent) error

	// Flush commits pending writes to storage.
	Flush() error

	// Close releases all resources. The backend must not be used afterwards.
	Close() error

	// Maintenance applies the retention policy.
	Maintenance() error

	// GetStats summarizes the stored events.
	GetStats() (*AuditDatabaseStats, error)
}

// auditRetentionDays bounds how long SQLite keeps audit records.
const auditRetentionDays = 90

// createAuditBackend selects the backend for config.
func createAuditBackend(config AuditConfig) (auditBackend, error) {
	if filepath.Ext(config.OutputFile) == ".jsonl" {
		return newJSONLBackend(config)
	}

	backend, err := newSQLiteBackend(config)
	if err == nil {
		return backend, nil
	}
	if config.OutputFile == "" {
		return nil, err
	}

	jsonlConfig := config
	jsonlConfig.OutputFile = strings.TrimSuffix(config.OutputFile, filepath.Ext(config.OutputFile)) + ".jsonl"
	jsonlBackend, jsonlErr := newJSONLBackend(jsonlConfig)
	if jsonlErr != nil {
		return nil, fmt.Errorf("all audit backends failed - SQLite: %w, JSONL: %v", err, jsonlErr)
	}
	return jsonlBackend, nil
}

// defaultAuditPath is the shared database used when no output file is set.
func defaultAuditPath() string {
	return filepath.Join(os.TempDir(), "eventmon", "audit.db")
}

// OpenAuditStats reads the statistics of an existing audit store without
// starting a logger.
func OpenAuditStats(path string) (*AuditDatabaseStats, error) {
	backend, err := openAuditStore(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = backend.Close() }()
	return backend.GetStats()
}

// RunAuditMaintenance applies the retention policy to an existing audit
// store.
func RunAuditMaintenance(path string) error {
	backend, err := openAuditStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()
	return backend.Maintenance()
}

func openAuditStore(path string) (auditBackend, error) {
	if path == "" {
		path = defaultAuditPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audit store %q is not accessible: %w", path, err)
	}
	return createAuditBackend(AuditConfig{Enabled: true, OutputFile: path})
}

// sqliteAuditBackend stores audit events in a SQLite database.
type sqliteAuditBackend struct {
	db         *sql.DB
	dbPath     string
	insertStmt *sql.Stmt
	mu         sync.RWMutex
	closed     bool
}

func newSQLiteBackend(config AuditConfig) (*sqliteAuditBackend, error) {
	dbPath := defaultAuditPath()
	if config.OutputFile != "" {
		dbPath = config.OutputFile
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create audit database directory: %w", err)
	}

	db, err := openSQLiteDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	backend := &sqliteAuditBackend{db: db, dbPath: dbPath}

	if err := backend.ensureSchemaVersion(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit database schema: %w", err)
	}
	if err := backend.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare audit database statements: %w", err)
	}

	// Retention is not critical for startup.
	_ = backend.performMaintenance()

	return backend, nil
}

// openSQLiteDatabase opens dbPath in WAL mode so readers of the trail never
// block the writer.
func openSQLiteDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_cache_size=1000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database (close error: %v): %w", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	return db, nil
}

// ensureSchemaVersion migrates the database to the current schema.
//   - Version 1: monitor_events table
//   - Version 2: composite indexes for per-monitor and per-type queries
func (s *sqliteAuditBackend) ensureSchemaVersion() error {
	const currentSchemaVersion = 2

	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create schema_info table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}
	if err := s.migrateSchema(version, currentSchemaVersion); err != nil {
		return fmt.Errorf("schema migration from v%d to v%d failed: %w", version, currentSchemaVersion, err)
	}

	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO schema_info (version, updated_at)
		VALUES (?, CURRENT_TIMESTAMP)
	`, currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) migrateSchema(oldVersion, newVersion int) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for version := oldVersion; version < newVersion; version++ {
		switch version {
		case 0:
			err = migrateToV1(tx)
		case 1:
			err = migrateToV2(tx)
		default:
			err = fmt.Errorf("unknown migration path from version %d", version)
		}
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}
	return nil
}

func migrateToV1(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS monitor_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		level TEXT NOT NULL,
		event TEXT NOT NULL,
		component TEXT NOT NULL,

		monitor_id TEXT,
		target_type TEXT,
		signals TEXT, -- comma separated signal names

		process_id INTEGER NOT NULL,
		process_name TEXT NOT NULL,

		context TEXT, -- JSON object
		checksum TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("failed to create monitor_events table: %w", err)
	}

	for _, indexSQL := range []string{
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_timestamp ON monitor_events(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_level ON monitor_events(level)",
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_event ON monitor_events(event)",
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_created_at ON monitor_events(created_at)",
	} {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create basic index: %w", err)
		}
	}
	return nil
}

func migrateToV2(tx *sql.Tx) error {
	for _, indexSQL := range []string{
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_monitor ON monitor_events(monitor_id, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(target_type, event)",
	} {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create composite index: %w", err)
		}
	}
	return nil
}

func (s *sqliteAuditBackend) performMaintenance() error {
	if _, err := s.db.Exec(`
		DELETE FROM monitor_events
		WHERE created_at < datetime('now', '-' || ? || ' days')
	`, auditRetentionDays); err != nil {
		return fmt.Errorf("failed to cleanup old audit events: %w", err)
	}

	for _, task := range []string{"PRAGMA optimize", "PRAGMA wal_checkpoint(FULL)"} {
		_, _ = s.db.Exec(task) // optimizations only
	}
	return nil
}

func (s *sqliteAuditBackend) prepareStatements() error {
	stmt, err := s.db.Prepare(`
	INSERT INTO monitor_events (
		timestamp, level, event, component,
		monitor_id, target_type, signals,
		process_id, process_name, context, checksum
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	s.insertStmt = stmt
	return nil
}

// AuditDatabaseStats summarizes an audit store.
type AuditDatabaseStats struct {
	TotalEvents   int64            `json:"total_events" yaml:"total_events"`
	EventsByLevel map[string]int64 `json:"events_by_level" yaml:"events_by_level"`
	EventsByName  map[string]int64 `json:"events_by_name" yaml:"events_by_name"`
	OldestEvent   *time.Time       `json:"oldest_event" yaml:"oldest_event"`
	NewestEvent   *time.Time       `json:"newest_event" yaml:"newest_event"`
	DatabaseSize  int64            `json:"database_size_bytes" yaml:"database_size_bytes"`
	SchemaVersion int              `json:"schema_version" yaml:"schema_version"`
}

func newAuditStats() *AuditDatabaseStats {
	return &AuditDatabaseStats{
		EventsByLevel: make(map[string]int64),
		EventsByName:  make(map[string]int64),
	}
}

// observe folds one event into the statistics.
func (st *AuditDatabaseStats) observe(level, event string, ts time.Time) {
	st.TotalEvents++
	st.EventsByLevel[level]++
	st.EventsByName[event]++
	if st.OldestEvent == nil || ts.Before(*st.OldestEvent) {
		t := ts
		st.OldestEvent = &t
	}
	if st.NewestEvent == nil || ts.After(*st.NewestEvent) {
		t := ts
		st.NewestEvent = &t
	}
}

func (s *sqliteAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("cannot read statistics of closed SQLite audit backend")
	}

	stats := newAuditStats()
	rows, err := s.db.Query("SELECT level, event, timestamp FROM monitor_events")
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var level, event, ts string
		if err := rows.Scan(&level, &event, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp %q: %w", ts, err)
		}
		stats.observe(level, event, parsed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}

	err = s.db.QueryRow("SELECT version FROM schema_info ORDER BY version DESC LIMIT 1").Scan(&stats.SchemaVersion)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

// Write inserts a batch of events in one transaction.
func (s *sqliteAuditBackend) Write(events []AuditEvent) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("cannot write to closed SQLite audit backend")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txStmt := tx.Stmt(s.insertStmt)
	defer func() { _ = txStmt.Close() }()

	for _, event := range events {
		if err = insertEvent(txStmt, event); err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

func insertEvent(stmt *sql.Stmt, event AuditEvent) error {
	contextJSON := ""
	if event.Context != nil {
		data, err := json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("failed to serialize context: %w", err)
		}
		contextJSON = string(data)
	}

	_, err := stmt.Exec(
		event.Timestamp.Format(time.RFC3339Nano),
		event.Level.String(),
		event.Event,
		event.Component,
		event.MonitorID,
		event.TargetType,
		strings.Join(event.Signals, ","),
		event.ProcessID,
		event.ProcessName,
		contextJSON,
		event.Checksum,
	)
	return err
}

// Flush checkpoints the WAL.
func (s *sqliteAuditBackend) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to flush SQLite audit backend: %w", err)
	}
	return nil
}

func (s *sqliteAuditBackend) Maintenance() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	return s.performMaintenance()
}

// Close checkpoints pending WAL data and closes the database. It is safe to
// call more than once.
func (s *sqliteAuditBackend) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	if s.insertStmt != nil {
		if err := s.insertStmt.Close(); err != nil {
			errs = append(errs, "insert statement: "+err.Error())
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, "database: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing SQLite audit backend: %s", strings.Join(errs, "; "))
	}
	return nil
}

// jsonlAuditBackend appends one JSON object per line.
type jsonlAuditBackend struct {
	file       *os.File
	sourceFile string
	mu         sync.Mutex
	closed     bool
}

func newJSONLBackend(config AuditConfig) (*jsonlAuditBackend, error) {
	if config.OutputFile == "" {
		return nil, fmt.Errorf("JSONL backend requires OutputFile to be specified")
	}

	if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0750); err != nil {
		return nil, fmt.Errorf("failed to create JSONL audit log directory: %w", err)
	}

	file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 - audit path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}

	return &jsonlAuditBackend{file: file, sourceFile: config.OutputFile}, nil
}

func (j *jsonlAuditBackend) Write(events []AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("cannot write to closed JSONL audit backend")
	}

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize audit event: %w", err)
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit event to JSONL: %w", err)
		}
	}
	return nil
}

func (j *jsonlAuditBackend) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync JSONL audit file: %w", err)
	}
	return nil
}

// Maintenance is a no-op: JSONL files are rotated by external tooling.
func (j *jsonlAuditBackend) Maintenance() error {
	return nil
}

// GetStats scans the file. Lines that do not decode are skipped.
func (j *jsonlAuditBackend) GetStats() (*AuditDatabaseStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := newAuditStats()
	stats.SchemaVersion = 1

	f, err := os.Open(j.sourceFile) // #nosec G304 - audit path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL audit log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		stats.observe(event.Level.String(), event.Event, event.Timestamp)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL audit log file: %w", err)
	}

	if info, err := f.Stat(); err == nil {
		stats.DatabaseSize = info.Size()
	}
	return stats, nil
}

func (j *jsonlAuditBackend) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

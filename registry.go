// registry.go: Identity-keyed monitor registry, one per execution context
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"context"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/rs/zerolog"
)

// Registry maps monitored objects to their monitors.
//
// Entries are keyed by object identity through weak pointers, so the
// registry never keeps a monitored object alive. A Registry is meant to be
// owned by one execution context (a test, a worker); independent contexts
// create their own instead of sharing a process-wide instance.
type Registry struct {
	config Config
	audit  *AuditLogger

	mu      sync.Mutex
	entries map[any]*Monitor
	closed  bool
}

// New creates a registry. The configuration is validated after defaults
// are applied; an audit logger is started when Config.Audit.Enabled is set.
func New(config Config) (*Registry, error) {
	cfg := config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		config:  *cfg,
		entries: make(map[any]*Monitor),
	}

	if cfg.Audit.Enabled {
		auditLogger, err := NewAuditLogger(cfg.Audit)
		if err != nil {
			return nil, errors.Wrap(err, ErrCodeInvalidAuditConfig, "failed to start audit logger")
		}
		r.audit = auditLogger
	}

	return r, nil
}

// GetOrCreate returns the monitor of target, creating an empty one when the
// object is not monitored yet.
func GetOrCreate[T any](r *Registry, target *T) (*Monitor, error) {
	if target == nil {
		return nil, errors.New(ErrCodeInvalidArgument, "cannot monitor the signals of a <nil> object")
	}
	if r == nil {
		return nil, errors.New(ErrCodeInvalidArgument, "registry is nil")
	}

	ref := makeTarget(target)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errRegistryClosed()
	}
	if m, ok := r.entries[ref.key()]; ok {
		r.mu.Unlock()
		return m, nil
	}
	m := newMonitor(r, ref)
	r.entries[ref.key()] = m
	active := len(r.entries)
	r.mu.Unlock()

	r.config.Metrics.SetActiveMonitors(active)
	r.logger().Debug().
		Str("monitor_id", m.id).
		Str("target_type", ref.typeName()).
		Msg("monitor created")
	r.audit.LogMonitorCreated(m.id, ref.typeName())
	return m, nil
}

// Get returns the monitor of target.
func Get[T any](r *Registry, target *T) (*Monitor, error) {
	if target == nil {
		return nil, errors.New(ErrCodeInvalidArgument, "cannot look up the monitor of a <nil> object")
	}
	if r == nil {
		return nil, errors.New(ErrCodeInvalidArgument, "registry is nil")
	}

	ref := makeTarget(target)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errRegistryClosed()
	}
	m, ok := r.entries[ref.key()]
	if !ok {
		return nil, errors.New(ErrCodeNotFound, "object is not monitored").
			WithContext("target_type", ref.typeName())
	}
	return m, nil
}

// Lookup is Get under the name used by assertion helpers.
func Lookup[T any](r *Registry, target *T) (*Monitor, error) {
	return Get(r, target)
}

// Remove drops the entry of target without disposing its monitor. Removing
// an unknown object is not an error.
func Remove[T any](r *Registry, target *T) {
	if r == nil || target == nil {
		return
	}
	ref := makeTarget(target)

	r.mu.Lock()
	delete(r.entries, ref.key())
	active := len(r.entries)
	r.mu.Unlock()

	r.config.Metrics.SetActiveMonitors(active)
}

// Attach monitors the signals d selects on target and returns its monitor.
// Attaching again merges new signals into the existing monitor.
func Attach[T any](r *Registry, target *T, d Descriptor) (*Monitor, error) {
	m, err := GetOrCreate(r, target)
	if err != nil {
		return nil, err
	}
	if err := m.Attach(d); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of registered monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Prune disposes the monitors whose object was collected and returns how
// many were removed.
func (r *Registry) Prune() int {
	r.mu.Lock()
	var dead []*Monitor
	for key, m := range r.entries {
		if !m.target.alive() {
			dead = append(dead, m)
			delete(r.entries, key)
		}
	}
	active := len(r.entries)
	r.mu.Unlock()

	if len(dead) == 0 {
		return 0
	}

	r.config.Metrics.SetActiveMonitors(active)
	for _, m := range dead {
		m.Dispose()
		r.audit.LogMonitorPruned(m.id, m.target.typeName())
	}
	r.logger().Debug().Int("pruned", len(dead)).Msg("pruned monitors of collected objects")
	return len(dead)
}

// Close disposes every monitor and stops the audit logger. It is safe to
// call more than once.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	monitors := make([]*Monitor, 0, len(r.entries))
	for _, m := range r.entries {
		monitors = append(monitors, m)
	}
	r.mu.Unlock()

	for _, m := range monitors {
		m.Dispose()
	}
	r.config.Metrics.SetActiveMonitors(0)

	if r.audit == nil {
		return nil
	}
	r.audit.LogRegistryClosed(len(monitors))
	if err := r.audit.Close(); err != nil {
		return errors.Wrap(err, ErrCodeIOError, "failed to close audit logger")
	}
	return nil
}

// forget removes m from the registry unless the entry was already replaced.
func (r *Registry) forget(m *Monitor) {
	key := m.target.key()

	r.mu.Lock()
	if current, ok := r.entries[key]; ok && current == m {
		delete(r.entries, key)
	}
	active := len(r.entries)
	r.mu.Unlock()

	r.config.Metrics.SetActiveMonitors(active)
}

// report forwards a problem that has no caller to return to.
func (r *Registry) report(err error, signal string) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err, signal)
		return
	}
	r.logger().Warn().Err(err).Str("signal", signal).Msg("eventmon error")
}

func (r *Registry) logger() *zerolog.Logger {
	return r.config.Logger
}

func errRegistryClosed() error {
	return errors.New(ErrCodeRegistryClosed, "registry is closed")
}

type registryKey struct{}

// NewContext returns a copy of ctx carrying r, so that code running in the
// same execution context shares one registry.
func NewContext(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// FromContext returns the registry carried by ctx.
func FromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok && r != nil
}

// monitor.go: Per-object signal wiring
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/agilira/go-errors"
	"github.com/google/uuid"
)

// Monitor owns the recorders of one monitored object.
//
// A Monitor holds its object through a weak reference only. Signals are
// wired lazily by Attach; each signal name is wired at most once.
type Monitor struct {
	id       string
	target   targetRef
	registry *Registry
	seq      atomic.Uint64

	mu       sync.Mutex
	wired    map[string]*handlerAdapter
	disposed bool
}

func newMonitor(r *Registry, target targetRef) *Monitor {
	return &Monitor{
		id:       uuid.NewString(),
		target:   target,
		registry: r,
		wired:    make(map[string]*handlerAdapter),
	}
}

// ID returns the identifier used to correlate audit records.
func (m *Monitor) ID() string { return m.id }

// Target returns the monitored object, or nil once it was collected.
func (m *Monitor) Target() any { return m.target.value() }

// Disposed reports whether Dispose was called.
func (m *Monitor) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Attach wires a recorder for every signal selected by d that is not wired
// yet. Signals wired by an earlier call are kept as they are.
//
// If any selected signal has a shape that cannot be adapted nothing is
// wired. If the object refuses a handler, the signals wired by this call are
// unwired again before the error is returned, and any unsubscribe error of
// that rollback goes to Config.ErrorHandler.
func (m *Monitor) Attach(d Descriptor) error {
	target := m.target.value()
	if target == nil {
		return errors.New(ErrCodeTargetGone, "cannot monitor signals on a garbage-collected object").
			WithContext("monitor_id", m.id)
	}
	defer runtime.KeepAlive(target)

	cfg := &m.registry.config
	specs, err := resolveSignals(d, cfg.SubscribePrefix, cfg.UnsubscribePrefix)
	if err != nil {
		return err
	}
	targetValue := reflect.ValueOf(target)
	if err := checkTarget(d, targetValue.Type()); err != nil {
		return err
	}

	added, rollback, err := m.wire(specs, targetValue)
	for _, failed := range rollback {
		m.registry.report(failed.err, failed.signal)
	}
	if err != nil {
		return err
	}

	if len(added) > 0 {
		m.registry.logger().Debug().
			Str("monitor_id", m.id).
			Str("target_type", m.target.typeName()).
			Strs("signals", added).
			Msg("signals attached")
		m.registry.audit.LogSignalsAttached(m.id, m.target.typeName(), added)
		cfg.Metrics.IncWired(m.target.typeName(), len(added))
	}
	return nil
}

// signalError is an error tied to one signal, reported once m.mu is released.
type signalError struct {
	signal string
	err    error
}

// wire subscribes the signals of specs not wired yet and returns their names.
// On failure it unwires what it added and returns the unsubscribe errors of
// that rollback next to the subscribe error.
func (m *Monitor) wire(specs []signalSpec, targetValue reflect.Value) ([]string, []signalError, error) {
	cfg := &m.registry.config

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil, nil, errors.New(ErrCodeMonitorDisposed, "monitor was disposed").
			WithContext("monitor_id", m.id)
	}

	var added []*handlerAdapter
	for _, spec := range specs {
		if _, ok := m.wired[spec.name]; ok {
			continue
		}
		rec := newRecorder(spec.name, m.target, &m.seq, cfg.Clock, cfg.Metrics)
		adapter := newHandlerAdapter(spec, rec)
		if err := adapter.subscribe(targetValue); err != nil {
			var rollback []signalError
			for _, a := range added {
				if uerr := a.unsubscribe(targetValue); uerr != nil {
					rollback = append(rollback, signalError{signal: a.spec.name, err: uerr})
				}
				delete(m.wired, a.spec.name)
				a.recorder.release()
			}
			return nil, rollback, err
		}
		m.wired[spec.name] = adapter
		added = append(added, adapter)
	}

	names := make([]string, len(added))
	for i, a := range added {
		names[i] = a.spec.name
	}
	return names, nil, nil
}

// Recorder returns the recorder wired for signal name.
func (m *Monitor) Recorder(name string) (*Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.wired[name]
	if !ok {
		return nil, errors.New(ErrCodeNotFound, fmt.Sprintf("not monitoring any signal named %q", name)).
			WithContext("signal", name).
			WithContext("monitor_id", m.id)
	}
	return a.recorder, nil
}

// Signals returns the wired signal names in lexical order.
func (m *Monitor) Signals() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.wired))
	for name := range m.wired {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ResetAll clears every recorder and keeps the wiring.
func (m *Monitor) ResetAll() {
	m.mu.Lock()
	for _, a := range m.wired {
		a.recorder.Reset()
	}
	m.mu.Unlock()

	m.registry.audit.LogMonitorReset(m.id, m.target.typeName())
}

// Dispose unwires every handler from the object (when it is still alive),
// releases the recorders and removes the monitor from its registry.
//
// Dispose is idempotent and never fails: unsubscribe errors are reported to
// Config.ErrorHandler once no monitor lock is held. Once Dispose returns
// nothing more is recorded, even for a handler the object failed to drop.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.disposed = true
	wired := m.wired
	m.wired = make(map[string]*handlerAdapter)
	m.mu.Unlock()

	m.registry.forget(m)

	names := make([]string, 0, len(wired))
	for name := range wired {
		names = append(names, name)
	}
	slices.Sort(names)

	target := m.target.value()
	if target != nil {
		targetValue := reflect.ValueOf(target)
		for _, name := range names {
			if err := wired[name].unsubscribe(targetValue); err != nil {
				m.registry.report(err, name)
			}
		}
		runtime.KeepAlive(target)
	}

	for _, a := range wired {
		a.recorder.release()
	}

	m.registry.logger().Debug().
		Str("monitor_id", m.id).
		Str("target_type", m.target.typeName()).
		Bool("target_alive", target != nil).
		Msg("monitor disposed")
	m.registry.audit.LogMonitorDisposed(m.id, m.target.typeName(), names, target != nil)
}

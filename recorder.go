// recorder.go: Ordered, thread-safe occurrence log for a single signal
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recorder records every occurrence of one signal on one monitored object.
//
// Occurrences are kept in arrival order. Appends from concurrent goroutines
// never interleave partially, and Snapshot always returns a copy so callers
// can iterate while the signal keeps firing.
type Recorder struct {
	name    string
	owner   targetRef
	seq     *atomic.Uint64 // shared by all recorders of a monitor
	clock   func() time.Time
	metrics Collector

	mu  sync.Mutex
	log []Occurrence

	released atomic.Bool
}

func newRecorder(name string, owner targetRef, seq *atomic.Uint64, clock func() time.Time, metrics Collector) *Recorder {
	return &Recorder{
		name:    name,
		owner:   owner,
		seq:     seq,
		clock:   clock,
		metrics: metrics,
	}
}

// Name returns the name of the recorded signal.
func (r *Recorder) Name() string { return r.name }

// Source returns the object the signal is recorded from, or nil once it was
// collected.
func (r *Recorder) Source() any { return r.owner.value() }

// Released reports whether the owning monitor was disposed.
func (r *Recorder) Released() bool { return r.released.Load() }

// Record appends an occurrence with the given arguments, sourced from the
// monitored object. Handler adapters call it for every signal delivery; it
// is exported for dispatchers that are wired by hand. A released recorder
// drops the occurrence.
func (r *Recorder) Record(args ...any) {
	r.record(append(make([]any, 0, len(args)), args...))
}

// record takes ownership of args.
func (r *Recorder) record(args []any) {
	occ := Occurrence{
		Signal: r.name,
		Source: Ref{target: r.owner},
		Args:   args,
	}

	r.mu.Lock()
	if r.released.Load() {
		// The handler outlived Dispose, e.g. Off<Name> failed.
		r.mu.Unlock()
		return
	}
	occ.Seq = r.seq.Add(1)
	occ.Time = r.clock()
	r.log = append(r.log, occ)
	r.mu.Unlock()

	r.metrics.IncOccurrence(r.name)
}

// Snapshot returns a point-in-time copy of the log.
func (r *Recorder) Snapshot() []Occurrence {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Occurrence, len(r.log))
	copy(out, r.log)
	return out
}

// Len returns the number of recorded occurrences.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

// Last returns the most recent occurrence.
func (r *Recorder) Last() (Occurrence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.log) == 0 {
		return Occurrence{}, false
	}
	return r.log[len(r.log)-1], true
}

// Reset clears the log. The recorder stays wired and keeps recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.log = nil
	r.mu.Unlock()
}

// release is called by Monitor.Dispose and by a failed Attach. Nothing is
// recorded after it returns.
func (r *Recorder) release() {
	r.mu.Lock()
	r.released.Store(true)
	r.log = nil
	r.mu.Unlock()
}

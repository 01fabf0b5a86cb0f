// Package eventmon intercepts and records the signals raised by live Go
// objects, so that tests and diagnostics can assert on what an object did
// without writing a dedicated listener for every signal.
//
// # Signals
//
// eventmon has no notion of events of its own. A type declares a signal X by
// a pair of methods:
//
//	OnX(handler F) Token            // or (Token, error)
//	OffX(token Token)               // may return an error
//
// F is any func type without results, for example func(), func(reason
// string) or func(sender any, args ...int). The prefixes default to "On" and
// "Off" and can be changed through Config. A method that starts with the
// prefix but is not followed by an upper-case letter ("Online") is not a
// signal, and neither is an On method without its Off counterpart. OnX is
// called with the monitor locked and must not call back into that Monitor.
//
// # Monitoring an Object
//
// A Registry maps objects to their Monitor. It holds objects through weak
// pointers only, so monitoring never extends an object's lifetime:
//
//	registry, err := eventmon.New(eventmon.Config{})
//	if err != nil {
//		return err
//	}
//	defer registry.Close()
//
//	monitor, err := eventmon.Attach(registry, door, eventmon.AllOf[*Door]())
//	if err != nil {
//		return err
//	}
//	defer monitor.Dispose()
//
//	door.Close("timeout")
//
//	closed, _ := monitor.Recorder("Closed")
//	for _, occ := range closed.Snapshot() {
//		fmt.Println(occ.Seq, occ.Args) // 1 [timeout]
//	}
//
// Named restricts monitoring to a subset of the declared signals, and
// descriptors built from an interface type monitor every object
// implementing it:
//
//	eventmon.Named[*Door]("Closed")
//	eventmon.AllOf[Conn]()
//
// Attach is idempotent: attaching the same signals again keeps the existing
// recorders and their history, and new signals are merged in.
//
// # Recorders
//
// Each wired signal has a Recorder that appends one Occurrence per delivery.
// Occurrences carry the positional arguments as opaque values, a
// monitor-wide sequence number that gives a total order across signals, and
// the arrival time. Recording is safe from any number of goroutines;
// Snapshot returns a copy that stays stable while signals keep firing.
// Reset clears a recorder without unwiring it.
//
// # Execution Contexts
//
// Go has no goroutine-local storage. Code that wants one registry per test
// or per worker creates one and passes it explicitly, or carries it in a
// context.Context with NewContext and FromContext.
//
// # Lifecycle
//
// Dispose hands every subscription token back through the Off methods (when
// the object is still alive), releases the recorders and removes the monitor
// from its registry. Prune disposes the monitors of collected objects; Close
// disposes everything. A delivery already in flight when Dispose runs may
// still be recorded; no delivery that starts afterwards is.
//
// # Errors
//
// Errors are github.com/agilira/go-errors values carrying one of the
// ErrCode* constants; ErrorCode and HasCode extract them:
//
//	if eventmon.HasCode(err, eventmon.ErrCodeNotFound) {
//		// the signal is not monitored
//	}
//
// # Ambient Stack
//
// Config accepts a zerolog logger, a metrics Collector (PrometheusCollector
// exports occurrence and wiring counters) and an AuditConfig that writes a
// lifecycle trail to SQLite or JSONL. Configuration can be loaded from
// EVENTMON_* environment variables, YAML or JSON files and FlashFlags
// command-line flags.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package eventmon

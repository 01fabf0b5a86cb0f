// fixtures_test.go: Signal emitters shared by the eventmon tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	goerrors "errors"
	"sync"
	"testing"
)

// listeners is a minimal multicast list keyed by subscription id.
type listeners[F any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]F
}

func (l *listeners[F]) add(fn F) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]F)
	}
	l.next++
	l.fns[l.next] = fn
	return l.next
}

func (l *listeners[F]) remove(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.fns[id]
	delete(l.fns, id)
	return ok
}

func (l *listeners[F]) each(call func(F)) {
	l.mu.Lock()
	fns := make([]F, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		call(fn)
	}
}

func (l *listeners[F]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// testDoor declares Opened and Closed. Online and OnLocked look like
// signals but are not: the first has no upper-case name, the second has no
// Off counterpart.
type testDoor struct {
	opened listeners[func()]
	closed listeners[func(reason string)]
	locked listeners[func()]
}

func (d *testDoor) OnOpened(h func()) int { return d.opened.add(h) }
func (d *testDoor) OffOpened(id int)      { d.opened.remove(id) }

func (d *testDoor) OnClosed(h func(reason string)) int { return d.closed.add(h) }
func (d *testDoor) OffClosed(id int)                   { d.closed.remove(id) }

func (d *testDoor) OnLocked(h func()) int { return d.locked.add(h) }

func (d *testDoor) Online() bool { return true }

func (d *testDoor) Open() { d.opened.each(func(h func()) { h() }) }

func (d *testDoor) Close(reason string) {
	d.closed.each(func(h func(string)) { h(reason) })
}

func (d *testDoor) subscribers() int { return d.opened.len() + d.closed.len() }

// sensor covers multi-argument, variadic and error-returning declarations.
type sensor struct {
	reading listeners[func(name string, value float64)]
	batch   listeners[func(prefix string, values ...int)]
	failed  listeners[func(err error)]
}

func (s *sensor) OnReading(h func(name string, value float64)) int { return s.reading.add(h) }
func (s *sensor) OffReading(id int)                                { s.reading.remove(id) }

func (s *sensor) OnBatch(h func(prefix string, values ...int)) int { return s.batch.add(h) }
func (s *sensor) OffBatch(id int)                                  { s.batch.remove(id) }

func (s *sensor) OnFailed(h func(err error)) (int, error) { return s.failed.add(h), nil }

func (s *sensor) OffFailed(id int) error {
	if !s.failed.remove(id) {
		return goerrors.New("unknown subscription")
	}
	return nil
}

func (s *sensor) Read(name string, value float64) {
	s.reading.each(func(h func(string, float64)) { h(name, value) })
}

func (s *sensor) Batch(prefix string, values ...int) {
	s.batch.each(func(h func(string, ...int)) { h(prefix, values...) })
}

func (s *sensor) Fail(err error) {
	s.failed.each(func(h func(error)) { h(err) })
}

// silent declares no signals at all.
type silent struct {
	value int
}

func (s *silent) Value() int { return s.value }

// badShape declares a valid Alpha next to a Tick whose handler returns a
// value.
type badShape struct {
	alpha listeners[func()]
}

func (b *badShape) OnAlpha(h func()) int  { return b.alpha.add(h) }
func (b *badShape) OffAlpha(id int)       { b.alpha.remove(id) }
func (b *badShape) OnTick(func() int) int { return 0 }
func (b *badShape) OffTick(int)           {}

// mismatchedToken returns a string token but expects an int back.
type mismatchedToken struct{ calls int }

func (m *mismatchedToken) OnPing(func()) string { m.calls++; return "" }
func (m *mismatchedToken) OffPing(int)          {}

// picky accepts Alpha and refuses Beta, so Attach must roll Alpha back.
type picky struct {
	alpha listeners[func()]
}

func (p *picky) OnAlpha(h func()) (int, error) { return p.alpha.add(h), nil }
func (p *picky) OffAlpha(id int)               { p.alpha.remove(id) }

func (p *picky) OnBeta(func()) (int, error) { return 0, goerrors.New("beta is read-only") }
func (p *picky) OffBeta(int)                {}

// panicky panics while subscribing.
type panicky struct{}

func (p *panicky) OnBoom(func()) int { panic("boom") }
func (p *panicky) OffBoom(int)       {}

// stubborn cannot be unsubscribed.
type stubborn struct {
	ticks listeners[func()]
}

func (s *stubborn) OnTick(h func()) int { return s.ticks.add(h) }

func (s *stubborn) OffTick(int) error { return goerrors.New("still ticking") }

func (s *stubborn) Tick() { s.ticks.each(func(h func()) { h() }) }

// flaky accepts Alpha but cannot drop it again, and refuses Beta.
type flaky struct {
	alpha listeners[func()]
}

func (f *flaky) OnAlpha(h func()) int { return f.alpha.add(h) }
func (f *flaky) OffAlpha(int) error   { return goerrors.New("alpha is stuck") }

func (f *flaky) OnBeta(func()) (int, error) { return 0, goerrors.New("beta is read-only") }
func (f *flaky) OffBeta(int)                {}

// Conn is implemented by pipe and used to test interface descriptors.
type Conn interface {
	OnData(h func(payload []byte)) int
	OffData(id int)
}

type pipe struct {
	data listeners[func([]byte)]
}

func (p *pipe) OnData(h func(payload []byte)) int { return p.data.add(h) }
func (p *pipe) OffData(id int)                    { p.data.remove(id) }

func (p *pipe) Write(payload []byte) {
	p.data.each(func(h func([]byte)) { h(payload) })
}

// gauge follows an Add/Remove naming convention.
type gauge struct {
	changed listeners[func(value int)]
}

func (g *gauge) AddChanged(h func(value int)) int { return g.changed.add(h) }
func (g *gauge) RemoveChanged(id int)             { g.changed.remove(id) }

func (g *gauge) Set(v int) { g.changed.each(func(h func(int)) { h(v) }) }

// newTestRegistry returns a registry closed at the end of the test.
func newTestRegistry(t testing.TB, config Config) *Registry {
	t.Helper()
	r, err := New(config)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

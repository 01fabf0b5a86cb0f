// registry_test.go: Tests for identity-keyed, weak monitor registries
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsNil(t *testing.T) {
	r := newTestRegistry(t, Config{})

	_, err := GetOrCreate[testDoor](r, nil)
	assert.Equal(t, ErrCodeInvalidArgument, ErrorCode(err))

	_, err = Attach[testDoor](r, nil, AllOf[*testDoor]())
	assert.Equal(t, ErrCodeInvalidArgument, ErrorCode(err))

	_, err = Get[testDoor](r, nil)
	assert.Equal(t, ErrCodeInvalidArgument, ErrorCode(err))

	_, err = GetOrCreate(nil, &testDoor{})
	assert.Equal(t, ErrCodeInvalidArgument, ErrorCode(err))

	assert.NotPanics(t, func() { Remove[testDoor](r, nil) })
	assert.NotPanics(t, func() { Remove(nil, &testDoor{}) })
}

func TestRegistryIdentity(t *testing.T) {
	r := newTestRegistry(t, Config{})
	a, b := &testDoor{}, &testDoor{}

	ma, err := GetOrCreate(r, a)
	require.NoError(t, err)
	again, err := GetOrCreate(r, a)
	require.NoError(t, err)
	mb, err := GetOrCreate(r, b)
	require.NoError(t, err)

	assert.Same(t, ma, again)
	assert.NotSame(t, ma, mb)
	assert.Equal(t, 2, r.Len())

	found, err := Lookup(r, a)
	require.NoError(t, err)
	assert.Same(t, ma, found)
}

func TestRegistryGetNotFound(t *testing.T) {
	r := newTestRegistry(t, Config{})
	_, err := Get(r, &testDoor{})
	assert.True(t, HasCode(err, ErrCodeNotFound))
}

func TestRegistryRemoveKeepsMonitorWired(t *testing.T) {
	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)

	Remove(r, door)
	assert.Equal(t, 0, r.Len())
	_, err = Get(r, door)
	assert.True(t, HasCode(err, ErrCodeNotFound))

	// The detached monitor is still wired and still records.
	door.Open()
	opened, err := m.Recorder("Opened")
	require.NoError(t, err)
	assert.Equal(t, 1, opened.Len())

	// A fresh monitor does not disturb the detached one.
	fresh, err := GetOrCreate(r, door)
	require.NoError(t, err)
	assert.NotSame(t, m, fresh)
	m.Dispose()
	assert.Equal(t, 1, r.Len(), "disposing the detached monitor leaves the new entry alone")

	Remove(r, &testDoor{})
}

func TestRegistryDoesNotKeepTargetsAlive(t *testing.T) {
	r := newTestRegistry(t, Config{})

	m, opened := attachAbandonedDoor(t, r)
	require.Equal(t, 1, r.Len())

	pruned := 0
	for i := 0; i < 20 && pruned == 0; i++ {
		runtime.GC()
		pruned = r.Prune()
	}
	require.Equal(t, 1, pruned, "the door must be collectable while monitored")

	assert.Equal(t, 0, r.Len())
	assert.Nil(t, m.Target())
	assert.True(t, m.Disposed())
	assert.True(t, opened.Released())
	assert.Nil(t, opened.Source())

	err := m.Attach(AllOf[*testDoor]())
	assert.True(t, HasCode(err, ErrCodeTargetGone))
}

// attachAbandonedDoor monitors a door that nothing else references once the
// function returns.
//
//go:noinline
func attachAbandonedDoor(t *testing.T, r *Registry) (*Monitor, *Recorder) {
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)
	door.Open()

	opened, err := m.Recorder("Opened")
	require.NoError(t, err)
	require.Equal(t, 1, opened.Len())
	return m, opened
}

func TestRegistryTargetGoneBeforeAttach(t *testing.T) {
	r := newTestRegistry(t, Config{})

	m := createAbandonedMonitor(t, r)
	for i := 0; i < 20 && m.Target() != nil; i++ {
		runtime.GC()
	}
	require.Nil(t, m.Target())

	err := m.Attach(AllOf[*testDoor]())
	assert.Equal(t, ErrCodeTargetGone, ErrorCode(err))
}

//go:noinline
func createAbandonedMonitor(t *testing.T, r *Registry) *Monitor {
	m, err := GetOrCreate(r, &testDoor{})
	require.NoError(t, err)
	return m
}

func TestRegistryPruneKeepsLiveTargets(t *testing.T) {
	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	_, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)

	runtime.GC()
	assert.Equal(t, 0, r.Prune())
	assert.Equal(t, 1, r.Len())
	runtime.KeepAlive(door)
}

func TestRegistryClose(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)

	door, s := &testDoor{}, &sensor{}
	md, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)
	ms, err := Attach(r, s, AllOf[*sensor]())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.True(t, md.Disposed())
	assert.True(t, ms.Disposed())
	assert.Equal(t, 0, door.subscribers())
	assert.Equal(t, 0, r.Len())

	_, err = GetOrCreate(r, door)
	assert.True(t, HasCode(err, ErrCodeRegistryClosed))
	_, err = Get(r, door)
	assert.True(t, HasCode(err, ErrCodeRegistryClosed))

	assert.NoError(t, r.Close())
}

func TestRegistriesAreIndependent(t *testing.T) {
	first := newTestRegistry(t, Config{})
	second := newTestRegistry(t, Config{})
	door := &testDoor{}

	m1, err := Attach(first, door, Named[*testDoor]("Opened"))
	require.NoError(t, err)
	m2, err := Attach(second, door, Named[*testDoor]("Opened"))
	require.NoError(t, err)
	assert.NotSame(t, m1, m2)

	door.Open()
	r1, _ := m1.Recorder("Opened")
	r2, _ := m2.Recorder("Opened")
	assert.Equal(t, 1, r1.Len())
	assert.Equal(t, 1, r2.Len())

	require.NoError(t, first.Close())
	door.Open()
	assert.Equal(t, 2, r2.Len())
}

func TestRegistryContext(t *testing.T) {
	r := newTestRegistry(t, Config{})

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), r)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = FromContext(NewContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{SubscribePrefix: "on"})
	assert.True(t, HasCode(err, ErrCodeInvalidPrefix))

	_, err = New(Config{SubscribePrefix: "Add", UnsubscribePrefix: "Add"})
	assert.True(t, HasCode(err, ErrCodeInvalidPrefix))
}

func TestRegistryReportFallsBackToLogger(t *testing.T) {
	r := newTestRegistry(t, Config{})
	s := &stubborn{}
	m, err := Attach(r, s, AllOf[*stubborn]())
	require.NoError(t, err)

	assert.NotPanics(t, m.Dispose)
}

// recorder_test.go: Tests for the per-signal occurrence log
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStandaloneRecorder(t *testing.T, name string, owner *testDoor) (*Recorder, *atomic.Uint64) {
	t.Helper()
	seq := new(atomic.Uint64)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := newRecorder(name, makeTarget(owner), seq, func() time.Time { return fixed }, NoopCollector())
	return rec, seq
}

func TestRecorderKeepsArrivalOrder(t *testing.T) {
	door := &testDoor{}
	rec, _ := newStandaloneRecorder(t, "Closed", door)

	rec.Record("first")
	rec.Record("second")
	rec.Record("third")

	snapshot := rec.Snapshot()
	require.Len(t, snapshot, 3)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, "Closed", snapshot[i].Signal)
		assert.Equal(t, []any{want}, snapshot[i].Args)
		assert.Equal(t, uint64(i+1), snapshot[i].Seq)
		assert.Equal(t, 2025, snapshot[i].Time.Year())
		assert.Same(t, door, snapshot[i].Source.Value())
	}
}

func TestRecorderSharesSequenceWithSiblings(t *testing.T) {
	door := &testDoor{}
	opened, seq := newStandaloneRecorder(t, "Opened", door)
	closed := newRecorder("Closed", makeTarget(door), seq, time.Now, NoopCollector())

	opened.Record()
	closed.Record("timeout")
	opened.Record()

	o := opened.Snapshot()
	c := closed.Snapshot()
	require.Len(t, o, 2)
	require.Len(t, c, 1)
	assert.Equal(t, uint64(1), o[0].Seq)
	assert.Equal(t, uint64(2), c[0].Seq)
	assert.Equal(t, uint64(3), o[1].Seq)
}

func TestRecorderRecordCopiesArguments(t *testing.T) {
	rec, _ := newStandaloneRecorder(t, "Closed", &testDoor{})

	args := []any{"a", "b"}
	rec.Record(args...)
	args[0] = "mutated"

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, last.Args)
	assert.Equal(t, 2, last.Len())
	assert.Equal(t, "b", last.Arg(1))
	assert.Nil(t, last.Arg(2))
	assert.Nil(t, last.Arg(-1))
}

func TestRecorderSnapshotIsACopy(t *testing.T) {
	rec, _ := newStandaloneRecorder(t, "Opened", &testDoor{})
	rec.Record()

	snapshot := rec.Snapshot()
	rec.Record()
	rec.Record()

	assert.Len(t, snapshot, 1)
	assert.Equal(t, 3, rec.Len())

	snapshot[0].Signal = "changed"
	first := rec.Snapshot()[0]
	assert.Equal(t, "Opened", first.Signal)
}

func TestRecorderResetKeepsRecording(t *testing.T) {
	rec, _ := newStandaloneRecorder(t, "Opened", &testDoor{})
	rec.Record()
	rec.Record()

	rec.Reset()
	assert.Equal(t, 0, rec.Len())
	_, ok := rec.Last()
	assert.False(t, ok)
	assert.Empty(t, rec.Snapshot())

	rec.Record("again")
	require.Equal(t, 1, rec.Len())
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, []any{"again"}, last.Args)
	// The sequence is monitor-wide and does not restart.
	assert.Equal(t, uint64(3), last.Seq)
}

func TestRecorderRelease(t *testing.T) {
	rec, _ := newStandaloneRecorder(t, "Opened", &testDoor{})
	rec.Record()
	assert.False(t, rec.Released())

	rec.release()
	assert.True(t, rec.Released())
	assert.Equal(t, 0, rec.Len())
	assert.Equal(t, "Opened", rec.Name())

	rec.Record("late")
	assert.Equal(t, 0, rec.Len(), "released recorders drop occurrences")
	_, ok := rec.Last()
	assert.False(t, ok)
}

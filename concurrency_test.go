// concurrency_test.go: Concurrent delivery, attach and dispose
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentRaisesAreAllRecorded(t *testing.T) {
	const (
		goroutines = 16
		raises     = 500
	)

	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < raises; i++ {
				door.Close(fmt.Sprintf("%d-%d", g, i))
			}
		}(g)
	}
	wg.Wait()

	closed, err := m.Recorder("Closed")
	require.NoError(t, err)
	snapshot := closed.Snapshot()
	require.Len(t, snapshot, goroutines*raises)

	seen := make(map[string]bool, len(snapshot))
	for i, occ := range snapshot {
		require.Len(t, occ.Args, 1, "occurrence %d is incomplete", i)
		reason := occ.Args[0].(string)
		assert.False(t, seen[reason], "reason %s recorded twice", reason)
		seen[reason] = true
		if i > 0 {
			assert.Less(t, snapshot[i-1].Seq, occ.Seq, "sequence must follow arrival order")
		}
	}
}

func TestConcurrentSignalsShareOneSequence(t *testing.T) {
	const raises = 1000

	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < raises; i++ {
			door.Open()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < raises; i++ {
			door.Close("x")
		}
	}()
	wg.Wait()

	opened, _ := m.Recorder("Opened")
	closed, _ := m.Recorder("Closed")

	seqs := make(map[uint64]bool, 2*raises)
	for _, occ := range append(opened.Snapshot(), closed.Snapshot()...) {
		assert.False(t, seqs[occ.Seq], "duplicate sequence %d", occ.Seq)
		seqs[occ.Seq] = true
	}
	assert.Len(t, seqs, 2*raises)
	for seq := uint64(1); seq <= 2*raises; seq++ {
		assert.True(t, seqs[seq], "sequence %d missing", seq)
	}
}

func TestConcurrentSnapshotsDuringDelivery(t *testing.T) {
	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)
	opened, err := m.Recorder("Opened")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			door.Open()
		}
	}()

	last := 0
	for {
		select {
		case <-done:
			assert.Equal(t, 2000, opened.Len())
			return
		default:
			n := len(opened.Snapshot())
			assert.GreaterOrEqual(t, n, last, "snapshots never shrink without a reset")
			last = n
		}
	}
}

func TestConcurrentAttachWiresOnce(t *testing.T) {
	const goroutines = 32

	r := newTestRegistry(t, Config{})
	door := &testDoor{}

	monitors := make([]*Monitor, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			m, err := Attach(r, door, AllOf[*testDoor]())
			assert.NoError(t, err)
			monitors[g] = m
		}(g)
	}
	wg.Wait()

	for _, m := range monitors[1:] {
		assert.Same(t, monitors[0], m)
	}
	assert.Equal(t, 2, door.subscribers())
	assert.Equal(t, 1, r.Len())
}

func TestConcurrentDisposeDuringDelivery(t *testing.T) {
	r := newTestRegistry(t, Config{})
	door := &testDoor{}
	m, err := Attach(r, door, AllOf[*testDoor]())
	require.NoError(t, err)
	opened, err := m.Recorder("Opened")
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				door.Open()
			}
		}
	}()

	m.Dispose()
	close(stop)
	wg.Wait()

	// Deliveries that were in flight may have landed; new ones must not.
	opened.Reset()
	door.Open()
	assert.Equal(t, 0, opened.Len())
	assert.Equal(t, 0, door.subscribers())
}

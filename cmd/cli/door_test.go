// door_test.go: Tests for the demo signal emitter
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"testing"

	"github.com/agilira/eventmon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoorDeliversToSubscribers(t *testing.T) {
	door := NewDoor()

	opened := 0
	var reasons []string
	openID := door.OnOpened(func() { opened++ })
	closeID := door.OnClosed(func(reason string) { reasons = append(reasons, reason) })
	assert.NotEqual(t, openID, closeID)
	assert.Equal(t, 2, door.Listeners())

	door.Open()
	door.Close("wind")
	assert.Equal(t, 1, opened)
	assert.Equal(t, []string{"wind"}, reasons)

	door.OffOpened(openID)
	door.OffClosed(closeID)
	assert.Equal(t, 0, door.Listeners())

	door.Open()
	assert.Equal(t, 1, opened)
}

func TestDoorDeclaresTwoSignals(t *testing.T) {
	registry, err := eventmon.New(eventmon.Config{})
	require.NoError(t, err)
	defer func() { _ = registry.Close() }()

	door := NewDoor()
	monitor, err := eventmon.Attach(registry, door, eventmon.AllOf[*Door]())
	require.NoError(t, err)
	assert.Equal(t, []string{"Closed", "Opened"}, monitor.Signals())

	monitor.Dispose()
	assert.Equal(t, 0, door.Listeners())
}

// door.go: Sample signal emitter used by the demo command
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import "sync"

// SubscriptionID identifies a handler registered with a Door.
type SubscriptionID uint64

// Door declares two signals, Opened and Closed, using the On/Off method
// convention.
type Door struct {
	mu     sync.Mutex
	next   SubscriptionID
	opened map[SubscriptionID]func()
	closed map[SubscriptionID]func(reason string)
}

// NewDoor creates a closed door without listeners.
func NewDoor() *Door {
	return &Door{
		opened: make(map[SubscriptionID]func()),
		closed: make(map[SubscriptionID]func(reason string)),
	}
}

// OnOpened registers h for the Opened signal.
func (d *Door) OnOpened(h func()) SubscriptionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.opened[d.next] = h
	return d.next
}

// OffOpened removes an Opened handler.
func (d *Door) OffOpened(id SubscriptionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.opened, id)
}

// OnClosed registers h for the Closed signal.
func (d *Door) OnClosed(h func(reason string)) SubscriptionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.closed[d.next] = h
	return d.next
}

// OffClosed removes a Closed handler.
func (d *Door) OffClosed(id SubscriptionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.closed, id)
}

// Open raises Opened.
func (d *Door) Open() {
	d.mu.Lock()
	handlers := make([]func(), 0, len(d.opened))
	for _, h := range d.opened {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Close raises Closed with reason.
func (d *Door) Close(reason string) {
	d.mu.Lock()
	handlers := make([]func(string), 0, len(d.closed))
	for _, h := range d.closed {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, h := range handlers {
		h(reason)
	}
}

// Listeners returns the number of registered handlers.
func (d *Door) Listeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened) + len(d.closed)
}

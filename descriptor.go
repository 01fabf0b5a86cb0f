// descriptor.go: Signal descriptors and signal discovery by reflection
//
// A signal named X is declared by the method pair
//
//	OnX(handler F) R          or  OnX(handler F) (R, error)
//	OffX(token R)
//
// where F is any func type without results. The On/Off prefixes are
// configurable through Config.
//
// OnX runs while the monitor holds its lock, and so does OffX when Attach
// rolls back a failed call. Neither may call back into the same Monitor
// (Attach, Recorder, Signals, Dispose) or it deadlocks. Raising the signal
// from inside OnX is allowed: recording only takes the recorder lock.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agilira/go-errors"
)

var errorType = reflect.TypeFor[error]()

// Descriptor identifies the set of signals to monitor: every signal declared
// by a type, or a closed enumeration of them.
type Descriptor struct {
	typ   reflect.Type
	names []string // nil means every declared signal
}

// AllOf describes every signal declared by T. T is usually an interface or
// the pointer type of the monitored struct; for a struct type the pointer
// method set is used.
func AllOf[T any]() Descriptor {
	return TypeOf(reflect.TypeFor[T]())
}

// Named describes only the listed signals of T.
func Named[T any](names ...string) Descriptor {
	d := AllOf[T]()
	d.names = append(make([]string, 0, len(names)), names...)
	return d
}

// TypeOf is the runtime form of AllOf.
func TypeOf(t reflect.Type) Descriptor {
	return Descriptor{typ: t}
}

// Type returns the type the descriptor resolves signals against.
func (d Descriptor) Type() reflect.Type { return d.typ }

// Names returns the enumerated signal names, or nil for "all signals".
func (d Descriptor) Names() []string { return slices.Clone(d.names) }

func (d Descriptor) String() string {
	if d.typ == nil {
		return "<nil>"
	}
	if d.names == nil {
		return "all signals of " + d.typ.String()
	}
	return fmt.Sprintf("signals %s of %s", strings.Join(d.names, ", "), d.typ.String())
}

// methodSet returns the type whose methods declare the signals.
func (d Descriptor) methodSet() reflect.Type {
	switch d.typ.Kind() {
	case reflect.Interface, reflect.Pointer:
		return d.typ
	default:
		return reflect.PointerTo(d.typ)
	}
}

// signalSpec is the resolved shape of one declared signal.
type signalSpec struct {
	name          string
	handlerType   reflect.Type
	tokenType     reflect.Type
	onMethod      string
	offMethod     string
	onReturnsErr  bool
	offReturnsErr bool
}

// resolveSignals lists the signals d selects, validating every shape before
// anything gets wired.
func resolveSignals(d Descriptor, subscribePrefix, unsubscribePrefix string) ([]signalSpec, error) {
	if d.typ == nil {
		return nil, errors.New(ErrCodeUnsupportedTarget, "descriptor does not name a type")
	}

	mset := d.methodSet()
	receiver := mset.Kind() != reflect.Interface

	var specs []signalSpec
	for i := 0; i < mset.NumMethod(); i++ {
		on := mset.Method(i)
		name, ok := signalName(on.Name, subscribePrefix)
		if !ok {
			continue
		}
		off, ok := mset.MethodByName(unsubscribePrefix + name)
		if !ok {
			continue
		}
		if d.names != nil && !slices.Contains(d.names, name) {
			continue
		}
		spec, err := buildSpec(name, on, off, receiver)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	for _, want := range d.names {
		if !slices.ContainsFunc(specs, func(s signalSpec) bool { return s.name == want }) {
			return nil, errors.New(ErrCodeUnsupportedTarget,
				fmt.Sprintf("type %s does not declare a signal named %q", d.typ, want)).
				WithContext("signal", want)
		}
	}

	if len(specs) == 0 {
		return nil, errors.New(ErrCodeUnsupportedTarget,
			fmt.Sprintf("type %s does not expose any signals", d.typ)).
			WithContext("type", d.typ.String())
	}
	return specs, nil
}

// signalName strips prefix from a method name. The remainder must start with
// an upper-case letter so that "Online" is not read as signal "line".
func signalName(method, prefix string) (string, bool) {
	if !strings.HasPrefix(method, prefix) || len(method) == len(prefix) {
		return "", false
	}
	name := method[len(prefix):]
	r, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(r) {
		return "", false
	}
	return name, true
}

func buildSpec(name string, on, off reflect.Method, receiver bool) (signalSpec, error) {
	in := 0
	if receiver {
		in = 1
	}
	onType, offType := on.Type, off.Type

	if onType.NumIn()-in != 1 {
		return signalSpec{}, shapeError(name, on.Name+" must take exactly one handler argument")
	}
	handler := onType.In(in)
	if handler.Kind() != reflect.Func {
		return signalSpec{}, shapeError(name, "handler type "+handler.String()+" is not a func")
	}
	if handler.NumOut() != 0 {
		return signalSpec{}, shapeError(name, "handler type "+handler.String()+" returns values")
	}

	spec := signalSpec{
		name:        name,
		handlerType: handler,
		onMethod:    on.Name,
		offMethod:   off.Name,
	}

	switch {
	case onType.NumOut() == 1 && onType.Out(0) != errorType:
		spec.tokenType = onType.Out(0)
	case onType.NumOut() == 2 && onType.Out(1) == errorType:
		spec.tokenType = onType.Out(0)
		spec.onReturnsErr = true
	default:
		return signalSpec{}, shapeError(name, on.Name+" must return a subscription token")
	}

	if offType.NumIn()-in != 1 || !spec.tokenType.AssignableTo(offType.In(in)) {
		return signalSpec{}, shapeError(name,
			off.Name+" must accept the "+spec.tokenType.String()+" token returned by "+on.Name)
	}
	spec.offReturnsErr = offType.NumOut() > 0 && offType.Out(offType.NumOut()-1) == errorType

	return spec, nil
}

func shapeError(signal, reason string) error {
	return errors.New(ErrCodeUnsupportedSignalShape,
		fmt.Sprintf("signal %q cannot be monitored: %s", signal, reason)).
		WithContext("signal", signal)
}

// checkTarget verifies that the monitored object actually carries the
// methods the descriptor resolved.
func checkTarget(d Descriptor, target reflect.Type) error {
	mset := d.methodSet()
	if mset.Kind() == reflect.Interface {
		if target.Implements(mset) {
			return nil
		}
	} else if target.AssignableTo(mset) {
		return nil
	}
	return errors.New(ErrCodeUnsupportedTarget,
		fmt.Sprintf("object of type %s does not match descriptor %s", target, d)).
		WithContext("target_type", target.String())
}

func typeNameOf[T any]() string {
	return reflect.TypeFor[*T]().String()
}

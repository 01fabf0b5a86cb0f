// adapter.go: Shape-generic handler construction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	"fmt"
	"reflect"

	"github.com/agilira/go-errors"
)

// handlerAdapter is the listener registered with the monitored object for a
// single signal. fn has exactly the handler type the signal declares and
// forwards every invocation to recorder.
type handlerAdapter struct {
	spec     signalSpec
	recorder *Recorder
	fn       reflect.Value
	token    reflect.Value // returned by On<Name>, handed back to Off<Name>
}

func newHandlerAdapter(spec signalSpec, recorder *Recorder) *handlerAdapter {
	a := &handlerAdapter{spec: spec, recorder: recorder}
	a.fn = reflect.MakeFunc(spec.handlerType, a.invoke)
	return a
}

// invoke collects the positional arguments as opaque values. A variadic tail
// arrives as one slice value and is recorded that way.
func (a *handlerAdapter) invoke(in []reflect.Value) []reflect.Value {
	args := make([]any, len(in))
	for i, v := range in {
		args[i] = v.Interface()
	}
	a.recorder.record(args)
	return nil
}

// subscribe registers fn through the target's On<Name> method.
func (a *handlerAdapter) subscribe(target reflect.Value) (err error) {
	method := target.MethodByName(a.spec.onMethod)
	if !method.IsValid() {
		return errors.New(ErrCodeUnsupportedTarget,
			fmt.Sprintf("object of type %s has no method %s", target.Type(), a.spec.onMethod)).
			WithContext("signal", a.spec.name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(ErrCodeSubscribeFailed,
				fmt.Sprintf("%s panicked: %v", a.spec.onMethod, r)).
				WithContext("signal", a.spec.name)
		}
	}()

	out := method.Call([]reflect.Value{a.fn})
	if a.spec.onReturnsErr {
		if cause, _ := out[1].Interface().(error); cause != nil {
			return errors.Wrap(cause, ErrCodeSubscribeFailed,
				fmt.Sprintf("%s refused the handler", a.spec.onMethod)).
				WithContext("signal", a.spec.name)
		}
	}
	a.token = out[0]
	return nil
}

// unsubscribe hands the token back through Off<Name>.
func (a *handlerAdapter) unsubscribe(target reflect.Value) (err error) {
	if !a.token.IsValid() {
		return nil
	}
	method := target.MethodByName(a.spec.offMethod)
	if !method.IsValid() {
		return errors.New(ErrCodeUnsubscribeFailed,
			fmt.Sprintf("object of type %s has no method %s", target.Type(), a.spec.offMethod)).
			WithContext("signal", a.spec.name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.New(ErrCodeUnsubscribeFailed,
				fmt.Sprintf("%s panicked: %v", a.spec.offMethod, r)).
				WithContext("signal", a.spec.name)
		}
	}()

	out := method.Call([]reflect.Value{a.token})
	a.token = reflect.Value{}
	if a.spec.offReturnsErr {
		if cause, _ := out[len(out)-1].Interface().(error); cause != nil {
			return errors.Wrap(cause, ErrCodeUnsubscribeFailed,
				fmt.Sprintf("%s failed", a.spec.offMethod)).
				WithContext("signal", a.spec.name)
		}
	}
	return nil
}

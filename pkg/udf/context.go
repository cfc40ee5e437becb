/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package udf

import (
	"time"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/window"
)

// TimerSetter sets and deletes timers in the namespace it is bound to.
type TimerSetter struct {
	store *timers.Store
	ns    window.Namespace
}

// Set schedules the timer, overriding the pending timer of the same id and family. A zero output
// timestamp defaults to the fire timestamp.
func (ts *TimerSetter) Set(id, family string, domain timers.Domain, fire, output time.Time) error {
	return ts.store.SetTimer(timers.New(ts.ns, id, family, domain, fire, output))
}

// Delete removes the timer of the id and family, deleting a timer that is not pending is a no-op.
func (ts *TimerSetter) Delete(id, family string, domain timers.Domain) error {
	t := timers.New(ts.ns, id, family, domain, time.Time{}, time.Time{})
	if pending, ok := ts.store.Lookup(t.StringKey()); ok {
		t = pending
	}
	return ts.store.DeleteTimer(t)
}

// emitter collects the outputs of a bundle per tag.
type emitter[Out any] struct {
	tags    []string
	outputs map[string][]isb.WindowedElement[Out]
}

func newEmitter[Out any]() *emitter[Out] {
	return &emitter[Out]{outputs: make(map[string][]isb.WindowedElement[Out])}
}

func (e *emitter[Out]) emit(tag string, el isb.WindowedElement[Out]) {
	if _, ok := e.outputs[tag]; !ok {
		e.tags = append(e.tags, tag)
	}
	e.outputs[tag] = append(e.outputs[tag], el)
}

// mark returns the number of outputs per tag.
func (e *emitter[Out]) mark() map[string]int {
	m := make(map[string]int, len(e.outputs))
	for tag, els := range e.outputs {
		m[tag] = len(els)
	}
	return m
}

// truncate drops the outputs emitted after the mark.
func (e *emitter[Out]) truncate(m map[string]int) {
	tags := e.tags[:0]
	for _, tag := range e.tags {
		n, ok := m[tag]
		if !ok {
			delete(e.outputs, tag)
			continue
		}
		e.outputs[tag] = e.outputs[tag][:n]
		tags = append(tags, tag)
	}
	e.tags = tags
}

func (e *emitter[Out]) bundles() []isb.Bundle[Out] {
	out := make([]isb.Bundle[Out], 0, len(e.tags))
	for _, tag := range e.tags {
		out = append(out, isb.Bundle[Out]{Tag: tag, Elements: e.outputs[tag]})
	}
	return out
}

// ProcessContext is handed to ProcessElement, it is bound to one element in one window.
type ProcessContext[In, Out any] struct {
	key      string
	element  isb.WindowedElement[In]
	scope    *state.Scoped
	timers   *TimerSetter
	out      *emitter[Out]
	pushback bool
}

// Key returns the key of the bundle.
func (pc *ProcessContext[In, Out]) Key() string { return pc.key }

// Element returns the element, assigned to a single window.
func (pc *ProcessContext[In, Out]) Element() isb.WindowedElement[In] { return pc.element }

// Value returns the value of the element.
func (pc *ProcessContext[In, Out]) Value() In { return pc.element.Value }

// Timestamp returns the event time of the element.
func (pc *ProcessContext[In, Out]) Timestamp() time.Time { return pc.element.EventTime }

// Window returns the window the element is processed in.
func (pc *ProcessContext[In, Out]) Window() window.Window { return pc.element.Windows[0] }

// Pane returns the pane of the element.
func (pc *ProcessContext[In, Out]) Pane() isb.PaneInfo { return pc.element.Pane }

// State returns the state of the (key, window) namespace.
func (pc *ProcessContext[In, Out]) State() *state.Scoped { return pc.scope }

// Timers returns the timer setter of the (key, window) namespace.
func (pc *ProcessContext[In, Out]) Timers() *TimerSetter { return pc.timers }

// Output emits a value with the element's timestamp and window.
func (pc *ProcessContext[In, Out]) Output(v Out) {
	pc.OutputTagged(isb.DefaultTag, v, pc.element.EventTime)
}

// OutputWithTimestamp emits a value in the element's window.
func (pc *ProcessContext[In, Out]) OutputWithTimestamp(v Out, ts time.Time) {
	pc.OutputTagged(isb.DefaultTag, v, ts)
}

// OutputTagged emits a value to the output tag.
func (pc *ProcessContext[In, Out]) OutputTagged(tag string, v Out, ts time.Time) {
	pc.out.emit(tag, isb.NewWindowedElement(v, ts, pc.element.Pane, pc.Window()))
}

// Pushback asks the engine to retry the element in a later bundle. Pushback is meant to be called before
// the element touched state, state written before it is kept.
func (pc *ProcessContext[In, Out]) Pushback() { pc.pushback = true }

// TimerContext is handed to OnTimer.
type TimerContext[Out any] struct {
	timer  timers.TimerData
	scope  *state.Scoped
	timers *TimerSetter
	out    *emitter[Out]
}

// Key returns the key of the bundle.
func (tc *TimerContext[Out]) Key() string { return tc.timer.Namespace.Key }

// Timer returns the firing timer.
func (tc *TimerContext[Out]) Timer() timers.TimerData { return tc.timer }

// Window returns the window of the timer.
func (tc *TimerContext[Out]) Window() window.Window { return tc.timer.Window() }

// State returns the state of the timer's namespace.
func (tc *TimerContext[Out]) State() *state.Scoped { return tc.scope }

// Timers returns the timer setter of the timer's namespace.
func (tc *TimerContext[Out]) Timers() *TimerSetter { return tc.timers }

// Output emits a value at the output timestamp of the timer.
func (tc *TimerContext[Out]) Output(v Out) {
	tc.OutputTagged(isb.DefaultTag, v, tc.timer.OutputTimestamp)
}

// OutputTagged emits a value to the output tag in the timer's window.
func (tc *TimerContext[Out]) OutputTagged(tag string, v Out, ts time.Time) {
	tc.out.emit(tag, isb.NewWindowedElement(v, ts, isb.NoFiringPane, tc.timer.Window()))
}

// FinishContext is handed to FinishBundle.
type FinishContext[Out any] struct {
	key           string
	out           *emitter[Out]
	finalizations []Finalization
}

// Key returns the key of the bundle.
func (fc *FinishContext[Out]) Key() string { return fc.key }

// Output emits a value in the window.
func (fc *FinishContext[Out]) Output(v Out, ts time.Time, w window.Window) {
	fc.OutputTagged(isb.DefaultTag, v, ts, w)
}

// OutputTagged emits a value to the output tag in the window.
func (fc *FinishContext[Out]) OutputTagged(tag string, v Out, ts time.Time, w window.Window) {
	fc.out.emit(tag, isb.NewWindowedElement(v, ts, isb.NoFiringPane, w))
}

// RegisterFinalization registers a callback invoked after the outputs of the bundle are durably written.
func (fc *FinishContext[Out]) RegisterFinalization(f Finalization) {
	fc.finalizations = append(fc.finalizations, f)
}

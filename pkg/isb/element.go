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

package isb

import (
	"time"

	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/window"
)

// Timing is the timing class of a pane relative to the watermark.
type Timing int

const (
	TimingUnknown Timing = iota
	TimingEarly
	TimingOnTime
	TimingLate
)

func (t Timing) String() string {
	switch t {
	case TimingEarly:
		return "EARLY"
	case TimingOnTime:
		return "ON_TIME"
	case TimingLate:
		return "LATE"
	default:
		return "UNKNOWN"
	}
}

// PaneInfo describes the firing of a window that produced an element. It is produced and consumed by the
// windowing layer, the engine passes it through.
type PaneInfo struct {
	Index   int64
	IsFirst bool
	IsLast  bool
	Timing  Timing
}

// NoFiringPane is the pane of an element that was not produced by a window firing.
var NoFiringPane = PaneInfo{IsFirst: true, IsLast: true, Timing: TimingUnknown}

// WindowedElement is a value with its event time, the windows it was assigned to and its pane.
type WindowedElement[V any] struct {
	Value     V
	EventTime time.Time
	Windows   []window.Window
	Pane      PaneInfo
}

// NewWindowedElement returns a WindowedElement.
func NewWindowedElement[V any](value V, eventTime time.Time, pane PaneInfo, windows ...window.Window) WindowedElement[V] {
	return WindowedElement[V]{
		Value:     value,
		EventTime: eventTime,
		Windows:   windows,
		Pane:      pane,
	}
}

// WithValue returns a copy of the element carrying another value, the value type may change.
func WithValue[V, W any](e WindowedElement[V], value W) WindowedElement[W] {
	windows := make([]window.Window, len(e.Windows))
	copy(windows, e.Windows)
	return WindowedElement[W]{
		Value:     value,
		EventTime: e.EventTime,
		Windows:   windows,
		Pane:      e.Pane,
	}
}

// InWindow returns a copy of the element assigned to the single window.
func (e WindowedElement[V]) InWindow(w window.Window) WindowedElement[V] {
	return WindowedElement[V]{
		Value:     e.Value,
		EventTime: e.EventTime,
		Windows:   []window.Window{w},
		Pane:      e.Pane,
	}
}

// Explode returns one element per window.
func (e WindowedElement[V]) Explode() []WindowedElement[V] {
	out := make([]WindowedElement[V], 0, len(e.Windows))
	for _, w := range e.Windows {
		out = append(out, e.InWindow(w))
	}
	return out
}

// KeyedWorkItem is the input of one bundle, the elements and the due timers of one key.
type KeyedWorkItem[V any] struct {
	Key      string
	Elements []WindowedElement[V]
	Timers   []timers.TimerData
}

// ElementsWorkItem returns a work item carrying only elements.
func ElementsWorkItem[V any](key string, elements ...WindowedElement[V]) KeyedWorkItem[V] {
	return KeyedWorkItem[V]{Key: key, Elements: elements}
}

// TimersWorkItem returns a work item carrying only timers.
func TimersWorkItem[V any](key string, ts ...timers.TimerData) KeyedWorkItem[V] {
	return KeyedWorkItem[V]{Key: key, Timers: ts}
}

// IsEmpty returns true if the work item carries neither elements nor timers.
func (k KeyedWorkItem[V]) IsEmpty() bool {
	return len(k.Elements) == 0 && len(k.Timers) == 0
}

// Bundle is the output of a bundle for one output tag.
type Bundle[O any] struct {
	Tag      string
	Elements []WindowedElement[O]
}

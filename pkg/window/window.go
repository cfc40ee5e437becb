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

package window

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// MinTimestamp is the smallest timestamp an element, timer or hold can carry.
	MinTimestamp = time.UnixMilli(math.MinInt64 / 1000).UTC()
	// MaxTimestamp is the largest timestamp an element, timer or hold can carry.
	MaxTimestamp = time.UnixMilli(math.MaxInt64 / 1000).UTC()
)

const globalWindowID = "global"

type Window interface {
	// ID uniquely identifies the window, two windows are equal iff their IDs are equal.
	ID() string
	// StartTime returns the inclusive start of the window.
	StartTime() time.Time
	// EndTime returns the exclusive end of the window.
	EndTime() time.Time
}

// IntervalWindow is a window over [start, end).
type IntervalWindow struct {
	start time.Time
	end   time.Time
}

var _ Window = (*IntervalWindow)(nil)

// NewIntervalWindow returns a new IntervalWindow for [start, end).
func NewIntervalWindow(start, end time.Time) *IntervalWindow {
	return &IntervalWindow{
		start: start,
		end:   end,
	}
}

func (w *IntervalWindow) ID() string {
	return fmt.Sprintf("%d-%d", w.start.UnixMilli(), w.end.UnixMilli())
}

func (w *IntervalWindow) StartTime() time.Time {
	return w.start
}

func (w *IntervalWindow) EndTime() time.Time {
	return w.end
}

func (w *IntervalWindow) String() string {
	return "[" + w.start.UTC().Format(time.RFC3339Nano) + ", " + w.end.UTC().Format(time.RFC3339Nano) + ")"
}

// GlobalWindow is the single window covering all of time.
type GlobalWindow struct{}

var _ Window = GlobalWindow{}

// Global returns the global window.
func Global() GlobalWindow {
	return GlobalWindow{}
}

func (GlobalWindow) ID() string {
	return globalWindowID
}

func (GlobalWindow) StartTime() time.Time {
	return MinTimestamp
}

func (GlobalWindow) EndTime() time.Time {
	return MaxTimestamp
}

func (GlobalWindow) String() string {
	return globalWindowID
}

// Equal reports whether the two windows are the same window.
func Equal(a, b Window) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}

// Compare orders windows by end time, then start time, then ID. It returns -1, 0 or 1.
func Compare(a, b Window) int {
	if !a.EndTime().Equal(b.EndTime()) {
		if a.EndTime().Before(b.EndTime()) {
			return -1
		}
		return 1
	}
	if !a.StartTime().Equal(b.StartTime()) {
		if a.StartTime().Before(b.StartTime()) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID(), b.ID())
}

// FromBounds rebuilds a window from its bounds. The global window is recognized by its bounds, every
// other pair of bounds becomes an IntervalWindow.
func FromBounds(start, end time.Time) Window {
	if start.Equal(MinTimestamp) && end.Equal(MaxTimestamp) {
		return Global()
	}
	return NewIntervalWindow(start, end)
}

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

// Package hold keeps the watermark holds of a key as EARLIEST combining cells of its state. A hold keeps
// the output watermark of the stage from passing the earliest timestamp still owed by the key.
package hold

import (
	"time"

	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/window"
)

// Holds manages hold cells over the state of one key.
type Holds struct {
	internals *state.Internals
}

// New returns the Holds over the state internals.
func New(internals *state.Internals) *Holds {
	return &Holds{internals: internals}
}

func tag(holdID string) state.HoldTag {
	return state.MakeSystemHoldTag(holdID, state.Earliest)
}

// Add folds the timestamp into the hold cell of the namespace.
func (h *Holds) Add(ns window.Namespace, holdID string, ts time.Time) error {
	cell, err := state.WatermarkHold(h.internals.Scope(ns), tag(holdID))
	if err != nil {
		return err
	}
	cell.Add(ts)
	return nil
}

// Clear removes the hold cell of the namespace, clearing a hold that was never set is a no-op.
func (h *Holds) Clear(ns window.Namespace, holdID string) error {
	t := tag(holdID)
	if !h.internals.Exists(ns, t.ID()) {
		return nil
	}
	cell, err := state.WatermarkHold(h.internals.Scope(ns), t)
	if err != nil {
		return err
	}
	cell.Clear()
	return nil
}

// Get returns the uncommitted value of the hold cell.
func (h *Holds) Get(ns window.Namespace, holdID string) (time.Time, bool, error) {
	t := tag(holdID)
	if !h.internals.Exists(ns, t.ID()) {
		return time.Time{}, false, nil
	}
	cell, err := state.WatermarkHold(h.internals.Scope(ns), t)
	if err != nil {
		return time.Time{}, false, err
	}
	ts, ok := cell.Read()
	return ts, ok, nil
}

// EarliestAcrossAllCells returns the minimum timestamp held by the snapshot, user holds included.
func EarliestAcrossAllCells(s *state.Snapshot) (time.Time, bool) {
	return s.EarliestWatermarkHold()
}

// TimerHoldID is the hold id of a timer, it only depends on the timer id and family so that the hold
// set with a timer is the one cleared with it.
func TimerHoldID(t timers.TimerData) string {
	return "timer-" + t.TimerID + "+" + t.TimerFamilyID
}

// AddTimerHold holds the watermark at the output timestamp of the timer.
func (h *Holds) AddTimerHold(t timers.TimerData) error {
	return h.Add(t.Namespace, TimerHoldID(t), t.OutputTimestamp)
}

// ResetTimerHold replaces the hold of the timer with its output timestamp, the hold of an overridden timer
// moves with it.
func (h *Holds) ResetTimerHold(t timers.TimerData) error {
	cell, err := state.WatermarkHold(h.internals.Scope(t.Namespace), tag(TimerHoldID(t)))
	if err != nil {
		return err
	}
	cell.Clear()
	cell.Add(t.OutputTimestamp)
	return nil
}

// ClearTimerHold releases the hold of the timer.
func (h *Holds) ClearTimerHold(t timers.TimerData) error {
	return h.Clear(t.Namespace, TimerHoldID(t))
}

// TimerHold returns the uncommitted hold of the timer.
func (h *Holds) TimerHold(t timers.TimerData) (time.Time, bool, error) {
	return h.Get(t.Namespace, TimerHoldID(t))
}

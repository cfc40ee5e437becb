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

package stateful

import (
	"time"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
)

// HoldSource tells which bookkeeping the watermark hold of a CommitRecord was taken from.
type HoldSource int

const (
	HoldNone HoldSource = iota
	// HoldFromState is the hold declared by the processor's own hold cells, no timer changed.
	HoldFromState
	// HoldFromTimers is the earliest hold of the committed state after applying the timer holds.
	HoldFromTimers
	// HoldFromTimersAndState is HoldFromTimers when the state also holds through user hold cells.
	HoldFromTimersAndState
)

func (s HoldSource) String() string {
	switch s {
	case HoldFromState:
		return "State"
	case HoldFromTimers:
		return "Timers"
	case HoldFromTimersAndState:
		return "TimersAndState"
	default:
		return "None"
	}
}

// CommitRecord is everything a bundle produced. The execution layer applies it as a whole or not at all.
type CommitRecord[In, Out any] struct {
	Key         string
	Outputs     []isb.Bundle[Out]
	TimerUpdate timers.Update
	// State is the new baseline of the key, it still has to be advanced in the arena.
	State *state.Snapshot
	// WatermarkHold is nil when the key holds nothing.
	WatermarkHold *time.Time
	// Unprocessed holds one work item per pushed back element.
	Unprocessed   []isb.KeyedWorkItem[In]
	Finalizations []udf.Finalization
	HoldSource    HoldSource
}

// Assemble merges the raw result of a bundle with the chosen hold, the net timer update and the final
// state snapshot.
func Assemble[In, Out any](key string, raw *udf.TransformResult[In, Out], hold *time.Time, update timers.Update, snapshot *state.Snapshot) *CommitRecord[In, Out] {
	record := &CommitRecord[In, Out]{
		Key:           key,
		Outputs:       raw.Outputs,
		TimerUpdate:   update,
		State:         snapshot,
		Finalizations: raw.Finalizations,
	}
	if hold != nil {
		h := *hold
		record.WatermarkHold = &h
		switch {
		case !update.IsEmpty() && raw.DataHold != nil:
			record.HoldSource = HoldFromTimersAndState
		case !update.IsEmpty():
			record.HoldSource = HoldFromTimers
		default:
			record.HoldSource = HoldFromState
		}
	}
	for _, e := range raw.Unprocessed {
		record.Unprocessed = append(record.Unprocessed, isb.ElementsWorkItem(key, e))
	}
	return record
}

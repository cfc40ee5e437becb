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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
	"github.com/numaproj/stateful/pkg/window"
)

func TestAssemble(t *testing.T) {
	snapshot := state.NewArena().Current("k1")
	dataHold := ms(300)
	raw := &udf.TransformResult[int, int]{
		Outputs:       []isb.Bundle[int]{{Tag: isb.DefaultTag, Elements: []isb.WindowedElement[int]{element(1, 1)}}},
		State:         snapshot,
		WatermarkHold: &dataHold,
		DataHold:      &dataHold,
		Unprocessed:   []isb.WindowedElement[int]{element(5, 10, w1), element(6, 11, w2)},
	}

	tests := []struct {
		name     string
		hold     *int64
		update   timers.Update
		expected HoldSource
	}{
		{name: "no hold", expected: HoldNone},
		{name: "state only", hold: ptr(300), expected: HoldFromState},
		{name: "timers and state", hold: ptr(200), update: timers.Update{Set: []timers.TimerData{eventTimer("t1", 200, 200)}}, expected: HoldFromTimersAndState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hold := tt.hold
			record := Assemble("k1", raw, toTime(hold), tt.update, snapshot)
			assert.Equal(t, "k1", record.Key)
			assert.Equal(t, tt.expected, record.HoldSource)
			assert.Equal(t, raw.Outputs, record.Outputs)
			assert.Equal(t, tt.update, record.TimerUpdate)
			if hold == nil {
				assert.Nil(t, record.WatermarkHold)
			} else {
				assert.Equal(t, ms(*hold), *record.WatermarkHold)
			}
			assert.Len(t, record.Unprocessed, 2)
			for i, kwi := range record.Unprocessed {
				assert.Equal(t, "k1", kwi.Key)
				assert.Len(t, kwi.Elements, 1)
				assert.Empty(t, kwi.Timers)
				assert.Equal(t, raw.Unprocessed[i], kwi.Elements[0])
			}
			assert.Equal(t, []window.Window{w2}, record.Unprocessed[1].Elements[0].Windows)
		})
	}

	// the hold of a timer set by an earlier bundle is not a data hold
	raw.DataHold = nil
	record := Assemble("k1", raw, toTime(ptr(100)), timers.Update{Set: []timers.TimerData{eventTimer("t2", 100, 100)}}, snapshot)
	assert.Equal(t, HoldFromTimers, record.HoldSource)

	raw.WatermarkHold = nil
	record = Assemble("k1", raw, toTime(ptr(100)), timers.Update{Deleted: []timers.TimerData{eventTimer("t1", 1, 1)}}, snapshot)
	assert.Equal(t, HoldFromTimers, record.HoldSource)
}

func ptr(v int64) *int64 {
	return &v
}

func toTime(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := ms(*v)
	return &t
}

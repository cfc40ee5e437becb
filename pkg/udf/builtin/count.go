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

package builtin

import (
	"context"
	"strconv"

	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
)

const (
	countTimerID = "count-window-end"
	countTagID   = "count"
	countHoldTag = "count-hold"
)

type countFn struct{}

func (countFn) CreateAccumulator() int64 { return 0 }
func (countFn) AddInput(acc int64, _ []byte) int64 { return acc + 1 }
func (countFn) ExtractOutput(acc int64) int64 { return acc }
func (countFn) MergeAccumulators(accs ...int64) int64 {
	var total int64
	for _, a := range accs {
		total += a
	}
	return total
}

// count counts the elements of every (key, window) and emits the count when the watermark passes the
// end of the window. The watermark is held at the earliest counted element until then.
type count struct {
	counter state.CombiningTag[[]byte, int64, int64]
	hold    state.HoldTag
}

func newCount(map[string]string) (udf.Processor[[]byte, []byte], error) {
	c := &count{
		counter: state.MakeCombiningTag[[]byte, int64, int64](countTagID, countFn{}),
		hold:    state.MakeHoldTag(countHoldTag, state.Earliest),
	}
	return &udf.Funcs[[]byte, []byte]{Process: c.process, Timer: c.onTimer}, nil
}

func (c *count) process(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
	counter, err := state.Combining(pc.State(), c.counter)
	if err != nil {
		return err
	}
	hold, err := state.WatermarkHold(pc.State(), c.hold)
	if err != nil {
		return err
	}
	if counter.IsEmpty() {
		end := pc.Window().EndTime()
		if err := pc.Timers().Set(countTimerID, "", timers.EventTime, end, end); err != nil {
			return err
		}
	}
	counter.Add(pc.Value())
	hold.Add(pc.Timestamp())
	return nil
}

func (c *count) onTimer(_ context.Context, tc *udf.TimerContext[[]byte]) error {
	counter, err := state.Combining(tc.State(), c.counter)
	if err != nil {
		return err
	}
	hold, err := state.WatermarkHold(tc.State(), c.hold)
	if err != nil {
		return err
	}
	tc.Output([]byte(strconv.FormatInt(counter.Read(), 10)))
	counter.Clear()
	hold.Clear()
	return nil
}

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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udferr"
	"github.com/numaproj/stateful/pkg/window"
)

var (
	w1 = window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(1000))
	w2 = window.NewIntervalWindow(time.UnixMilli(500), time.UnixMilli(1500))
)

func newTestRunner(p Processor[int, int]) (*Runner[int, int], *state.Internals, *timers.Store) {
	in := state.NewInternals(state.NewArena(), "k1")
	store := timers.NewStore()
	return NewRunner[int, int](context.Background(), "k1", p, in, store), in, store
}

func TestRunner_ExplodesWindows(t *testing.T) {
	var windows []string
	p := &Funcs[int, int]{
		Process: func(_ context.Context, pc *ProcessContext[int, int]) error {
			windows = append(windows, pc.Window().ID())
			assert.Equal(t, "k1", pc.Key())
			assert.Len(t, pc.Element().Windows, 1)
			pc.Output(pc.Value() + 1)
			return nil
		},
	}
	r, _, _ := newTestRunner(p)
	require.NoError(t, r.ProcessElement(context.Background(), isb.NewWindowedElement(1, time.UnixMilli(700), isb.NoFiringPane, w1, w2)))
	assert.Equal(t, []string{w1.ID(), w2.ID()}, windows)

	result, err := r.FinishBundle(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	require.Len(t, result.Outputs[0].Elements, 2)
	assert.Equal(t, []window.Window{w2}, result.Outputs[0].Elements[1].Windows)
	assert.Equal(t, time.UnixMilli(700), result.Outputs[0].Elements[0].EventTime)
	assert.Nil(t, result.WatermarkHold)
}

func TestRunner_NoWindow(t *testing.T) {
	r, _, _ := newTestRunner(&Funcs[int, int]{})
	assert.Error(t, r.ProcessElement(context.Background(), isb.WindowedElement[int]{Value: 1}))
}

func TestRunner_Errors(t *testing.T) {
	boom := errors.New("boom")
	p := &Funcs[int, int]{
		Process: func(_ context.Context, pc *ProcessContext[int, int]) error {
			switch pc.Value() {
			case 1:
				return udferr.New(udferr.Retryable, "later")
			case 2:
				pc.Pushback()
				return nil
			default:
				return boom
			}
		},
	}
	r, _, _ := newTestRunner(p)
	ctx := context.Background()
	require.NoError(t, r.ProcessElement(ctx, isb.NewWindowedElement(1, time.UnixMilli(1), isb.NoFiringPane, w1)))
	require.NoError(t, r.ProcessElement(ctx, isb.NewWindowedElement(2, time.UnixMilli(2), isb.NoFiringPane, w1)))
	err := r.ProcessElement(ctx, isb.NewWindowedElement(3, time.UnixMilli(3), isb.NoFiringPane, w1))
	assert.True(t, errors.Is(err, boom))

	result, err := r.FinishBundle(ctx)
	require.NoError(t, err)
	require.Len(t, result.Unprocessed, 2)
	assert.Equal(t, 1, result.Unprocessed[0].Value)
	assert.Equal(t, 2, result.Unprocessed[1].Value)
}

func TestRunner_StateAndTimers(t *testing.T) {
	count := state.MakeValueTag[int]("count")
	held := state.MakeHoldTag("held", state.Earliest)
	p := &Funcs[int, int]{
		Process: func(_ context.Context, pc *ProcessContext[int, int]) error {
			v, err := state.Value(pc.State(), count)
			if err != nil {
				return err
			}
			n, _ := v.Read()
			v.Write(n + 1)
			h, err := state.WatermarkHold(pc.State(), held)
			if err != nil {
				return err
			}
			h.Add(pc.Timestamp())
			return pc.Timers().Set("end", "", timers.EventTime, pc.Window().EndTime(), time.Time{})
		},
		Timer: func(_ context.Context, tc *TimerContext[int]) error {
			tc.Output(42)
			return tc.Timers().Delete("other", "", timers.ProcessingTime)
		},
	}
	r, _, store := newTestRunner(p)
	ctx := context.Background()
	require.NoError(t, r.ProcessElement(ctx, isb.NewWindowedElement(1, time.UnixMilli(300), isb.NoFiringPane, w1)))
	require.NoError(t, r.ProcessElement(ctx, isb.NewWindowedElement(1, time.UnixMilli(200), isb.NoFiringPane, w1)))
	pending := store.PendingOrdered(timers.EventTime)
	require.Len(t, pending, 1)
	assert.Equal(t, w1.EndTime(), pending[0].OutputTimestamp)

	require.NoError(t, r.OnTimer(ctx, pending[0]))

	result, err := r.FinishBundle(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.WatermarkHold)
	assert.Equal(t, time.UnixMilli(200), *result.WatermarkHold)
	got, ok := state.ReadValue(result.State, window.NewNamespace("k1", w1), count)
	assert.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Len(t, result.TimerUpdate.Set, 1)
	assert.Len(t, result.TimerUpdate.Deleted, 1)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, w1.EndTime(), result.Outputs[0].Elements[0].EventTime)
}

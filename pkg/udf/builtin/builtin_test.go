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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/reduce/stateful"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
	"github.com/numaproj/stateful/pkg/window"
)

var w1 = window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(1000))

func payload(v string, ts int64) isb.WindowedElement[[]byte] {
	return isb.NewWindowedElement([]byte(v), time.UnixMilli(ts), isb.NoFiringPane, w1)
}

func values(bundles []isb.Bundle[[]byte]) []string {
	var out []string
	for _, b := range bundles {
		for _, e := range b.Elements {
			out = append(out, string(e.Value))
		}
	}
	return out
}

func evaluator(t *testing.T, name string, kwargs map[string]string) (*stateful.Evaluator[[]byte, []byte], *state.Arena) {
	registry := udf.NewRegistry[[]byte, []byte]()
	b := &Builtin{Name: name, KWArgs: kwargs}
	require.NoError(t, b.Register(registry, name))
	p, err := registry.Get(context.Background(), name)
	require.NoError(t, err)
	arena := state.NewArena()
	e, err := stateful.NewEvaluator[[]byte, []byte](name, p, arena)
	require.NoError(t, err)
	return e, arena
}

func TestBuiltin_Unknown(t *testing.T) {
	b := &Builtin{Name: "nope"}
	assert.Error(t, b.Register(udf.NewRegistry[[]byte, []byte](), "nope"))
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	e, arena := evaluator(t, "count", nil)
	record, err := e.ProcessBundle(ctx, isb.ElementsWorkItem("k1", payload("a", 300), payload("b", 200), payload("c", 400)), nil)
	require.NoError(t, err)
	require.NoError(t, arena.Advance(record.State))
	assert.Empty(t, record.Outputs)
	require.Len(t, record.TimerUpdate.Set, 1)
	end := record.TimerUpdate.Set[0]
	assert.Equal(t, w1.EndTime(), end.FireTimestamp)
	// the element hold is earlier than the timer hold
	assert.Equal(t, time.UnixMilli(200), *record.WatermarkHold)
	assert.Equal(t, stateful.HoldFromTimersAndState, record.HoldSource)

	record, err = e.ProcessBundle(ctx, isb.TimersWorkItem[[]byte]("k1", end), []timers.TimerData{end})
	require.NoError(t, err)
	require.NoError(t, arena.Advance(record.State))
	assert.Equal(t, []string{"3"}, values(record.Outputs))
	assert.Nil(t, record.WatermarkHold)
	assert.True(t, record.State.IsEmpty())
}

func TestFilter(t *testing.T) {
	_, err := newFilter(map[string]string{})
	assert.Error(t, err)

	e, _ := evaluator(t, "filter", map[string]string{"expression": `int(json(payload).v) > 1`})
	record, err := e.ProcessBundle(context.Background(), isb.ElementsWorkItem("k1", payload(`{"v": 1}`, 1), payload(`{"v": 2}`, 2), payload(`bad`, 3)), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"v": 2}`}, values(record.Outputs))
}

func TestDedup(t *testing.T) {
	ctx := context.Background()
	e, arena := evaluator(t, "dedup", map[string]string{"id": `json(payload).id`})
	record, err := e.ProcessBundle(ctx, isb.ElementsWorkItem("k1", payload(`{"id": "x"}`, 1), payload(`{"id": "y"}`, 2), payload(`{"id": "x", "n": 2}`, 3)), nil)
	require.NoError(t, err)
	require.NoError(t, arena.Advance(record.State))
	assert.Equal(t, []string{`{"id": "x"}`, `{"id": "y"}`}, values(record.Outputs))

	pending := record.TimerUpdate.Set
	record, err = e.ProcessBundle(ctx, isb.ElementsWorkItem("k1", payload(`{"id": "y"}`, 4)), pending)
	require.NoError(t, err)
	require.NoError(t, arena.Advance(record.State))
	assert.Empty(t, record.Outputs)

	record, err = e.ProcessBundle(ctx, isb.TimersWorkItem[[]byte]("k1", pending...), pending)
	require.NoError(t, err)
	require.NoError(t, arena.Advance(record.State))
	assert.True(t, record.State.IsEmpty())
}

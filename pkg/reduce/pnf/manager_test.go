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

package pnf

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/isb/stores/simplebuffer"
	"github.com/numaproj/stateful/pkg/reduce/stateful"
	"github.com/numaproj/stateful/pkg/shared/config"
	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/kvs/inmem"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/timers/schedule"
	"github.com/numaproj/stateful/pkg/udf"
	"github.com/numaproj/stateful/pkg/udf/builtin"
	"github.com/numaproj/stateful/pkg/udferr"
	"github.com/numaproj/stateful/pkg/watermark/publish"
	"github.com/numaproj/stateful/pkg/watermark/wmb"
	"github.com/numaproj/stateful/pkg/window"
)

var w1 = window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(1000))

func element(v string, ts int64) isb.WindowedElement[[]byte] {
	return isb.NewWindowedElement([]byte(v), time.UnixMilli(ts), isb.NoFiringPane, w1)
}

type stores struct {
	timers kvs.KVStorer
	holds  kvs.KVStorer
}

func newStores(t *testing.T) stores {
	ctx := context.Background()
	ts, err := inmem.NewKVInMemKVStore(ctx, "timers")
	require.NoError(t, err)
	hs, err := inmem.NewKVInMemKVStore(ctx, "holds")
	require.NoError(t, err)
	return stores{timers: ts, holds: hs}
}

type fixture struct {
	manager   *Manager[[]byte, []byte]
	buffer    *simplebuffer.InMemoryBuffer[[]byte]
	schedule  *schedule.Schedule
	publisher *publish.HoldPublisher
}

func newFixture(t *testing.T, s stores, processor udf.Processor[[]byte, []byte], bufferOpts []simplebuffer.Option, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	e, err := stateful.NewEvaluator[[]byte, []byte]("test", processor, state.NewArena())
	require.NoError(t, err)
	sched, err := schedule.New(ctx, s.timers)
	require.NoError(t, err)
	publisher, err := publish.NewHoldPublisher(ctx, s.holds)
	require.NoError(t, err)
	buffer := simplebuffer.NewInMemoryBuffer[[]byte]("out", 100, bufferOpts...)
	opts = append([]Option{WithWorkers(3), WithRetryBackoff(time.Millisecond, 1, 0, 0)}, opts...)
	m, err := NewManager[[]byte, []byte](ctx, e, sched, publisher,
		map[string]isb.BufferWriter[[]byte]{isb.DefaultTag: buffer}, opts...)
	require.NoError(t, err)
	return &fixture{manager: m, buffer: buffer, schedule: sched, publisher: publisher}
}

func countProcessor(t *testing.T) udf.Processor[[]byte, []byte] {
	registry := udf.NewRegistry[[]byte, []byte]()
	require.NoError(t, (&builtin.Builtin{Name: "count"}).Register(registry, "count"))
	p, err := registry.Get(context.Background(), "count")
	require.NoError(t, err)
	return p
}

func written(b *simplebuffer.InMemoryBuffer[[]byte]) []string {
	var out []string
	for _, e := range b.GetElements() {
		out = append(out, string(e.Value))
	}
	sort.Strings(out)
	return out
}

func waitIdle(t *testing.T, m *Manager[[]byte, []byte]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.WaitIdle(ctx))
}

func TestManager_CountFiresWhenWatermarkPassesWindowEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, newStores(t), countProcessor(t), nil)
	require.NoError(t, f.manager.Start(ctx))

	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k1", element("a", 300), element("b", 200))))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k2", element("c", 500))))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k1", element("d", 700))))
	waitIdle(t, f.manager)

	assert.Empty(t, written(f.buffer))
	input := wmb.Watermark(time.UnixMilli(2000))
	assert.Equal(t, int64(200), f.manager.OutputWatermark(input).UnixMilli())
	assert.Equal(t, []string{"k1", "k2"}, f.publisher.HeldKeys())

	n, err := f.manager.AdvanceWatermark(ctx, timers.EventTime, time.UnixMilli(999))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = f.manager.AdvanceWatermark(ctx, timers.EventTime, time.UnixMilli(1000))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	waitIdle(t, f.manager)

	assert.Equal(t, []string{"1", "3"}, written(f.buffer))
	assert.Equal(t, input, f.manager.OutputWatermark(input))
	assert.Empty(t, f.publisher.HeldKeys())
	assert.Empty(t, f.schedule.Keys())

	// a second advance finds nothing due
	n, err = f.manager.AdvanceWatermark(ctx, timers.EventTime, time.UnixMilli(5000))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.manager.Shutdown())
	assert.ErrorIs(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k1", element("e", 1))), ErrShutdown)
	assert.Error(t, f.manager.Start(ctx))
}

func TestManager_PushbackIsResubmitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var pushbacks atomic.Int32
	p := &udf.Funcs[[]byte, []byte]{
		Process: func(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
			if pushbacks.Load() < 2 {
				pushbacks.Inc()
				pc.Pushback()
				return nil
			}
			pc.Output(pc.Value())
			return nil
		},
	}
	f := newFixture(t, newStores(t), p, nil)
	require.NoError(t, f.manager.Start(ctx))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k", element("x", 10))))
	waitIdle(t, f.manager)
	assert.Equal(t, int32(2), pushbacks.Load())
	assert.Equal(t, []string{"x"}, written(f.buffer))
	require.NoError(t, f.manager.Shutdown())
}

func TestManager_FailedBundleIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var attempts atomic.Int32
	var finalized atomic.Int32
	p := &udf.Funcs[[]byte, []byte]{
		Process: func(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
			pc.Output(pc.Value())
			if attempts.Inc() < 3 {
				return errors.New("flaky")
			}
			return nil
		},
		Finish: func(_ context.Context, fc *udf.FinishContext[[]byte]) error {
			fc.RegisterFinalization(func(context.Context) error {
				finalized.Inc()
				return errors.New("ack failed")
			})
			return nil
		},
	}
	f := newFixture(t, newStores(t), p, nil)
	require.NoError(t, f.manager.Start(ctx))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k", element("x", 10))))
	waitIdle(t, f.manager)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int32(1), finalized.Load())
	// outputs of the failed attempts were never written
	assert.Equal(t, []string{"x"}, written(f.buffer))
	require.NoError(t, f.manager.Shutdown())
}

func TestManager_NonRetryableBundleIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var attempts atomic.Int32
	p := &udf.Funcs[[]byte, []byte]{
		Process: func(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
			if pc.Key() == "poison" {
				attempts.Inc()
				return udferr.New(udferr.NonRetryable, "bad input")
			}
			pc.Output(pc.Value())
			return nil
		},
	}
	dropped := testutil.ToFloat64(bundlesDropped.WithLabelValues("", ""))
	f := newFixture(t, newStores(t), p, nil, WithWorkers(1))
	require.NoError(t, f.manager.Start(ctx))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("poison", element("x", 10))))
	// a timer of another key is an inconsistent work item
	foreign := timers.New(window.NewNamespace("other", w1), "t", "", timers.EventTime, time.UnixMilli(999), time.UnixMilli(999))
	require.NoError(t, f.manager.Submit(ctx, isb.TimersWorkItem[[]byte]("inconsistent", foreign)))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("healthy", element("y", 20))))
	waitIdle(t, f.manager)

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, []string{"y"}, written(f.buffer))
	assert.Equal(t, dropped+2, testutil.ToFloat64(bundlesDropped.WithLabelValues("", "")))
	require.NoError(t, f.manager.Shutdown())
}

func TestManager_DropsNonRetryableAndUnknownTags(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &udf.Funcs[[]byte, []byte]{
		Process: func(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
			pc.Output(pc.Value())
			pc.OutputTagged("side", pc.Value(), pc.Timestamp())
			return nil
		},
	}
	opts := []simplebuffer.Option{simplebuffer.WithOnFullWritingStrategy(isb.DiscardLatest)}
	s := newStores(t)
	f := newFixture(t, s, p, opts)
	// replace the buffer by a single slot one
	f.buffer = simplebuffer.NewInMemoryBuffer[[]byte]("tiny", 1, opts...)
	f.manager.toBuffers[isb.DefaultTag] = f.buffer
	require.NoError(t, f.manager.Start(ctx))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k", element("a", 1), element("b", 2), element("c", 3))))
	waitIdle(t, f.manager)
	assert.Equal(t, []string{"a"}, written(f.buffer))
	require.NoError(t, f.manager.Shutdown())
}

func TestManager_RestartRestoresTimersAndHolds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStores(t)
	first := newFixture(t, s, countProcessor(t), nil)
	require.NoError(t, first.manager.Start(ctx))
	require.NoError(t, first.manager.Submit(ctx, isb.ElementsWorkItem("k", element("a", 400))))
	waitIdle(t, first.manager)
	require.NoError(t, first.manager.Shutdown())

	second := newFixture(t, s, countProcessor(t), nil)
	require.NoError(t, second.manager.Start(ctx))
	input := wmb.Watermark(time.UnixMilli(3000))
	assert.Equal(t, int64(400), second.manager.OutputWatermark(input).UnixMilli())

	n, err := second.manager.AdvanceWatermark(ctx, timers.EventTime, time.UnixMilli(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	waitIdle(t, second.manager)
	assert.Len(t, written(second.buffer), 1)
	assert.Equal(t, input, second.manager.OutputWatermark(input))
	require.NoError(t, second.manager.Shutdown())
}

func TestManager_ProcessingTimeTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fakeClock := testingclock.NewFakeClock(time.UnixMilli(5000))
	p := &udf.Funcs[[]byte, []byte]{
		Process: func(_ context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
			return pc.Timers().Set("flush", "", timers.ProcessingTime, time.UnixMilli(4000), pc.Timestamp())
		},
		Timer: func(_ context.Context, tc *udf.TimerContext[[]byte]) error {
			tc.Output([]byte("flushed"))
			return nil
		},
	}
	f := newFixture(t, newStores(t), p, nil, WithClock(fakeClock), WithProcessingTimeTick("@every 1s"))
	require.NoError(t, f.manager.Start(ctx))
	require.NoError(t, f.manager.Submit(ctx, isb.ElementsWorkItem("k", element("a", 100))))
	assert.Eventually(t, func() bool {
		return len(f.buffer.GetElements()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"flushed"}, written(f.buffer))
	require.NoError(t, f.manager.Shutdown())
}

func TestManager_Options(t *testing.T) {
	s := newStores(t)
	p := countProcessor(t)
	ctx := context.Background()
	e, err := stateful.NewEvaluator[[]byte, []byte]("opts", p, state.NewArena())
	require.NoError(t, err)
	sched, err := schedule.New(ctx, s.timers)
	require.NoError(t, err)
	publisher, err := publish.NewHoldPublisher(ctx, s.holds)
	require.NoError(t, err)

	for _, bad := range []Option{WithWorkers(0), WithProcessingTimeTick("not a schedule"), WithRetryBackoff(0, 1, 0, 0)} {
		_, err := NewManager[[]byte, []byte](ctx, e, sched, publisher, nil, bad)
		assert.Error(t, err)
	}

	cfg := config.EngineConfig{Stage: "counter", Pipeline: "p", Workers: 7, ProcessingTimeTick: "@every 2s",
		Retry: config.RetryConfig{Interval: time.Second, Factor: 1.5, Jitter: 0.1}}
	m, err := NewManager[[]byte, []byte](ctx, e, sched, publisher, nil, WithEngineConfig(cfg))
	require.NoError(t, err)
	assert.Len(t, m.shards, 7)
	assert.Equal(t, "counter", m.opts.vertexName)
	assert.Equal(t, time.Second, m.opts.retryBackoff.Duration)
	assert.Equal(t, "@every 2s", m.opts.processingTimeTick)
	assert.Equal(t, m.shardOf("some-key"), m.shardOf("some-key"))
	require.NoError(t, m.Shutdown())
}

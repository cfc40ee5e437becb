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

// Package pnf is the execution layer of the stateful engine. It processes the bundles of every key in
// order, applies their commit records and retries the failed ones.
//
// Keys are sharded over a fixed number of workers, each worker drains its own queue, so the bundles of one
// key never run concurrently. A commit record is applied in this order: outputs are written to the
// buffers, the state is advanced, the timer update is persisted, the watermark hold is published, the
// finalization callbacks are invoked and the pushed back elements are resubmitted.
package pnf

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spaolacci/murmur3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/reduce/stateful"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/shared/queue"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/timers/schedule"
	"github.com/numaproj/stateful/pkg/watermark/publish"
	"github.com/numaproj/stateful/pkg/watermark/wmb"
)

// ErrShutdown is returned when work is submitted after Shutdown.
var ErrShutdown = errors.New("manager is shut down")

// task is either a work item or a tick asking for the due timers of a key.
type task[In any] struct {
	kwi    isb.KeyedWorkItem[In]
	tick   bool
	domain timers.Domain
	upTo   time.Time
}

func (t task[In]) key() string {
	return t.kwi.Key
}

// Manager runs the bundles of one stateful step.
type Manager[In, Out any] struct {
	evaluator *stateful.Evaluator[In, Out]
	schedule  *schedule.Schedule
	publisher *publish.HoldPublisher
	toBuffers map[string]isb.BufferWriter[Out]
	shards    []*queue.Queue[task[In]]
	inflight  atomic.Int64
	started   atomic.Bool
	group     *errgroup.Group
	cron      *cron.Cron
	closeOnce sync.Once
	opts      *options
	log       *zap.SugaredLogger
}

// NewManager returns a Manager. toBuffers maps an output tag to the buffer its elements are written to,
// elements of any other tag are dropped.
func NewManager[In, Out any](ctx context.Context,
	evaluator *stateful.Evaluator[In, Out],
	sched *schedule.Schedule,
	publisher *publish.HoldPublisher,
	toBuffers map[string]isb.BufferWriter[Out],
	opts ...Option) (*Manager[In, Out], error) {

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.vertexName == "" {
		o.vertexName = evaluator.Step()
	}
	m := &Manager[In, Out]{
		evaluator: evaluator,
		schedule:  sched,
		publisher: publisher,
		toBuffers: toBuffers,
		shards:    make([]*queue.Queue[task[In]], o.workers),
		opts:      o,
		log:       logging.FromContext(ctx).With("step", evaluator.Step()),
	}
	for i := range m.shards {
		m.shards[i] = queue.New[task[In]]()
	}
	return m, nil
}

// Start restores the pending timers and the published holds, then starts the workers. The workers stop
// when ctx is done or after Shutdown.
func (m *Manager[In, Out]) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("manager of %s already started", m.evaluator.Step())
	}
	pending, err := m.schedule.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore timers: %w", err)
	}
	holds, err := m.publisher.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore holds: %w", err)
	}
	m.log.Infow("Starting workers", zap.Int("workers", len(m.shards)), zap.Int("pendingTimers", pending), zap.Int("holds", holds))

	m.group, ctx = errgroup.WithContext(ctx)
	for i := range m.shards {
		shard := i
		m.group.Go(func() error {
			return m.work(ctx, shard)
		})
	}
	if m.opts.processingTimeTick != "" {
		m.cron = cron.New(cron.WithParser(tickParser))
		if _, err := m.cron.AddFunc(m.opts.processingTimeTick, func() {
			now := m.opts.clock.Now()
			for _, d := range []timers.Domain{timers.ProcessingTime, timers.SynchronizedProcessingTime} {
				if _, err := m.AdvanceWatermark(ctx, d, now); err != nil && !errors.Is(err, ErrShutdown) {
					m.log.Warnw("Failed to advance processing time", zap.String("domain", d.String()), zap.Error(err))
				}
			}
		}); err != nil {
			return err
		}
		m.cron.Start()
	}
	return nil
}

func (m *Manager[In, Out]) shardOf(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(m.shards)))
}

func (m *Manager[In, Out]) enqueue(t task[In]) error {
	shard := m.shardOf(t.key())
	m.inflight.Inc()
	if !m.shards[shard].Append(t) {
		m.inflight.Dec()
		return ErrShutdown
	}
	shardQueueLength.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, strconv.Itoa(shard)).Inc()
	return nil
}

// Submit queues a work item behind the earlier work of its key.
func (m *Manager[In, Out]) Submit(_ context.Context, kwi isb.KeyedWorkItem[In]) error {
	if kwi.IsEmpty() {
		return nil
	}
	return m.enqueue(task[In]{kwi: kwi})
}

// AdvanceWatermark queues a tick for every key with a timer in domain firing at or before wm. It returns the
// number of keys ticked.
func (m *Manager[In, Out]) AdvanceWatermark(_ context.Context, domain timers.Domain, wm time.Time) (int, error) {
	keys := m.schedule.DueKeys(domain, wm)
	for _, key := range keys {
		t := task[In]{kwi: isb.KeyedWorkItem[In]{Key: key}, tick: true, domain: domain, upTo: wm}
		if err := m.enqueue(t); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// OutputWatermark returns the watermark of the step's output for the given input watermark.
func (m *Manager[In, Out]) OutputWatermark(input wmb.Watermark) wmb.Watermark {
	return m.publisher.OutputWatermark(input)
}

// WaitIdle waits until every queued task, including resubmitted ones, has been processed.
func (m *Manager[In, Out]) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for m.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Shutdown stops accepting work, waits for the queued work to be processed and closes the buffers.
func (m *Manager[In, Out]) Shutdown() error {
	var err error
	m.closeOnce.Do(func() {
		m.log.Infow("Shutting down")
		if m.cron != nil {
			<-m.cron.Stop().Done()
		}
		for _, q := range m.shards {
			q.Close()
		}
		if m.group != nil {
			err = m.group.Wait()
		}
		for tag, buffer := range m.toBuffers {
			if closeErr := buffer.Close(); closeErr != nil {
				m.log.Errorw("Failed to close buffer", zap.String("tag", tag), zap.Error(closeErr))
				err = multierr.Append(err, closeErr)
			}
		}
		m.log.Infow("All workers have finished")
	})
	return err
}

func (m *Manager[In, Out]) work(ctx context.Context, shard int) error {
	q := m.shards[shard]
	gauge := shardQueueLength.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, strconv.Itoa(shard))
	for {
		t, ok := q.Pop(ctx)
		if !ok {
			return nil
		}
		gauge.Dec()
		m.handle(ctx, t)
	}
}

func (m *Manager[In, Out]) handle(ctx context.Context, t task[In]) {
	defer m.inflight.Dec()
	kwi := t.kwi
	if t.tick {
		due, err := m.dueTimers(ctx, t)
		if err != nil {
			m.log.Errorw("Dropping timer tick", zap.String("key", t.key()), zap.Error(err))
			return
		}
		if len(due) == 0 {
			return
		}
		kwi = isb.TimersWorkItem[In](t.key(), due...)
	}
	if err := m.process(ctx, kwi); err != nil {
		m.log.Errorw("Failed to process work item", zap.String("key", kwi.Key), zap.Error(err))
	}
}

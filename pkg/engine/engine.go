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

// Package engine assembles a stateful stage from its configuration: the kv stores holding timers and
// holds, the durable timer schedule, the hold publisher, the bundle evaluator, the output writers and
// the process-and-forward manager running them.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	buildinfo "github.com/numaproj/stateful"
	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/reduce/pnf"
	"github.com/numaproj/stateful/pkg/reduce/stateful"
	"github.com/numaproj/stateful/pkg/shared/config"
	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/kvs/builder"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/sinks"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/timers/schedule"
	"github.com/numaproj/stateful/pkg/udf"
	"github.com/numaproj/stateful/pkg/udf/builtin"
	"github.com/numaproj/stateful/pkg/watermark/publish"
	"github.com/numaproj/stateful/pkg/watermark/wmb"
)

const (
	timersBucket = "timers"
	holdsBucket  = "holds"
)

// Engine runs the step named by the stage of its configuration.
type Engine[In, Out any] struct {
	conf      config.EngineConfig
	registry  *udf.Registry[In, Out]
	builder   *builder.Builder
	timers    kvs.KVStorer
	holds     kvs.KVStorer
	publisher *publish.HoldPublisher
	manager   *pnf.Manager[In, Out]
	log       *zap.SugaredLogger
}

// New builds an engine running the processor the registry holds for the stage. The engine owns the
// registry and tears it down on Shutdown.
func New[In, Out any](ctx context.Context, conf config.EngineConfig, registry *udf.Registry[In, Out], opts ...Option[Out]) (_ *Engine[In, Out], err error) {
	o := &options[Out]{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With("stage", conf.Stage).With("pipeline", conf.Pipeline)
	ctx = logging.WithLogger(ctx, log)
	e := &Engine[In, Out]{conf: conf, registry: registry, log: log}
	defer func() {
		if err != nil {
			if closeErr := e.close(ctx); closeErr != nil {
				log.Errorw("Failed to release a partially built engine", zap.Error(closeErr))
			}
		}
	}()

	processor, err := registry.Get(ctx, conf.Stage)
	if err != nil {
		return nil, err
	}
	if e.builder, err = builder.NewBuilder(ctx, conf.Store); err != nil {
		return nil, fmt.Errorf("failed to create the store builder, %w", err)
	}
	if e.timers, err = e.builder.Build(ctx, timersBucket); err != nil {
		return nil, err
	}
	if e.holds, err = e.builder.Build(ctx, holdsBucket); err != nil {
		return nil, err
	}

	sched, err := schedule.New(ctx, e.timers, schedule.WithCacheSize(conf.TimerCacheSize))
	if err != nil {
		return nil, err
	}
	r := conf.Retry
	if e.publisher, err = publish.NewHoldPublisher(ctx, e.holds, publish.WithRetryBackoff(r.Interval, r.Factor, r.Jitter, r.Cap)); err != nil {
		return nil, err
	}

	evalOpts := []stateful.Option{stateful.WithLogger(log), stateful.WithVertexName(conf.Stage), stateful.WithPipelineName(conf.Pipeline)}
	if o.clock != nil {
		evalOpts = append(evalOpts, stateful.WithClock(o.clock))
	}
	evaluator, err := stateful.NewEvaluator[In, Out](conf.Stage, processor, state.NewArena(), evalOpts...)
	if err != nil {
		return nil, err
	}

	toBuffers := o.toBuffers
	if toBuffers == nil {
		if toBuffers, err = sinks.NewBufferWriters[Out](ctx, conf); err != nil {
			return nil, err
		}
	}
	managerOpts := []pnf.Option{pnf.WithEngineConfig(conf)}
	if o.clock != nil {
		managerOpts = append(managerOpts, pnf.WithClock(o.clock))
	}
	if e.manager, err = pnf.NewManager[In, Out](ctx, evaluator, sched, e.publisher, toBuffers, managerOpts...); err != nil {
		closeBuffers(log, toBuffers)
		return nil, err
	}
	return e, nil
}

// NewBuiltin builds an engine running the builtin processor named by the configuration.
func NewBuiltin(ctx context.Context, conf config.EngineConfig, opts ...Option[[]byte]) (*Engine[[]byte, []byte], error) {
	registry := udf.NewRegistry[[]byte, []byte]()
	b := &builtin.Builtin{Name: conf.Processor.Builtin, KWArgs: conf.Processor.KWArgs}
	if err := b.Register(registry, conf.Stage); err != nil {
		return nil, fmt.Errorf("failed to register the builtin processor, %w", err)
	}
	return New[[]byte, []byte](ctx, conf, registry, opts...)
}

func closeBuffers[Out any](log *zap.SugaredLogger, toBuffers map[string]isb.BufferWriter[Out]) {
	for tag, b := range toBuffers {
		if err := b.Close(); err != nil {
			log.Errorw("Failed to close buffer", zap.String("tag", tag), zap.Error(err))
		}
	}
}

// Start restores the durable timers and holds and starts processing.
func (e *Engine[In, Out]) Start(ctx context.Context) error {
	e.log.Infow("Starting stateful engine", zap.String("version", buildinfo.GetVersion().Version),
		zap.String("store", string(e.conf.Store.Type)), zap.Int("workers", e.conf.Workers))
	return e.manager.Start(logging.WithLogger(ctx, e.log))
}

// Submit queues a work item for its key.
func (e *Engine[In, Out]) Submit(ctx context.Context, kwi isb.KeyedWorkItem[In]) error {
	return e.manager.Submit(ctx, kwi)
}

// AdvanceWatermark advances the input watermark of the domain and returns the number of keys with due
// timers.
func (e *Engine[In, Out]) AdvanceWatermark(ctx context.Context, domain timers.Domain, wm time.Time) (int, error) {
	return e.manager.AdvanceWatermark(ctx, domain, wm)
}

// OutputWatermark returns the watermark the stage may publish downstream for the input watermark.
func (e *Engine[In, Out]) OutputWatermark(input wmb.Watermark) wmb.Watermark {
	return e.manager.OutputWatermark(input)
}

// WaitIdle waits until every queued work item has been processed.
func (e *Engine[In, Out]) WaitIdle(ctx context.Context) error {
	return e.manager.WaitIdle(ctx)
}

// Shutdown drains the queued work, closes the output writers, tears down the processor and releases the
// stores.
func (e *Engine[In, Out]) Shutdown(ctx context.Context) error {
	err := e.manager.Shutdown()
	return multierr.Append(err, e.close(ctx))
}

func (e *Engine[In, Out]) close(ctx context.Context) error {
	err := e.registry.Close(ctx)
	if e.timers != nil {
		e.timers.Close()
	}
	switch {
	case e.publisher != nil:
		// closes the hold store
		err = multierr.Append(err, e.publisher.Close())
	case e.holds != nil:
		e.holds.Close()
	}
	if e.builder != nil {
		err = multierr.Append(err, e.builder.Close())
	}
	return err
}

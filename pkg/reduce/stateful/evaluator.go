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

// Package stateful evaluates bundles of keyed work against the state and timers of their key. A bundle
// processes its elements, fires its timers together with the timers it (re)scheduled earlier than them,
// maintains the watermark holds of every pending timer and returns a CommitRecord. Nothing a bundle does is
// visible outside of the evaluator until the execution layer applies the record.
package stateful

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
	"github.com/numaproj/stateful/pkg/watermark/hold"
)

// Evaluator processes the bundles of one step. Bundles of different keys may be processed concurrently,
// the bundles of one key must be processed one at a time.
type Evaluator[In, Out any] struct {
	step      string
	processor udf.Processor[In, Out]
	arena     *state.Arena
	opts      *options
}

// NewEvaluator returns an Evaluator of the step over the state arena.
func NewEvaluator[In, Out any](step string, processor udf.Processor[In, Out], arena *state.Arena, opts ...Option) (*Evaluator[In, Out], error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.vertexName == "" {
		o.vertexName = step
	}
	return &Evaluator[In, Out]{
		step:      step,
		processor: processor,
		arena:     arena,
		opts:      o,
	}, nil
}

// Step returns the name of the step.
func (e *Evaluator[In, Out]) Step() string {
	return e.step
}

// Arena returns the state arena of the step.
func (e *Evaluator[In, Out]) Arena() *state.Arena {
	return e.arena
}

// bundle is the per invocation state of ProcessBundle.
type bundle[In, Out any] struct {
	*Evaluator[In, Out]
	key       string
	phase     Phase
	internals *state.Internals
	store     *timers.Store
	holds     *hold.Holds
	runner    *udf.Runner[In, Out]
	// mark is the timer store mark of the bundle start.
	mark int64
	// visited are the modifications that were already fired or skipped.
	visited map[int64]struct{}
	log     *zap.SugaredLogger
}

func (b *bundle[In, Out]) transition(p Phase) {
	b.phase = p
	if b.opts.phaseObserver != nil {
		b.opts.phaseObserver(b.key, p)
	}
}

// ProcessBundle processes the work item against the current state of its key and the timers pending for
// it. On error nothing is committed, the returned *BundleError tells the phase that failed.
func (e *Evaluator[In, Out]) ProcessBundle(ctx context.Context, kwi isb.KeyedWorkItem[In], pending []timers.TimerData) (*CommitRecord[In, Out], error) {
	start := e.opts.clock.Now()
	log := e.opts.logger
	if log == nil {
		log = logging.FromContext(ctx)
	}
	log = log.With(zap.String("step", e.step), zap.String("key", kwi.Key))
	ctx = logging.WithLogger(ctx, log)

	internals := state.NewInternals(e.arena, kwi.Key)
	seed := make([]timers.TimerData, 0, len(pending)+len(kwi.Timers))
	seed = append(seed, pending...)
	seed = append(seed, kwi.Timers...)
	store := timers.NewStore(seed...)
	b := &bundle[In, Out]{
		Evaluator: e,
		key:       kwi.Key,
		internals: internals,
		store:     store,
		holds:     hold.New(internals),
		runner:    udf.NewRunner(ctx, kwi.Key, e.processor, internals, store),
		mark:      store.Mark(),
		visited:   make(map[int64]struct{}),
		log:       log,
	}
	b.transition(PhaseIdle)

	record, err := b.run(ctx, kwi)
	if err != nil {
		failed := b.phase
		internals.Discard()
		b.transition(PhaseFailed)
		bundlesFailed.WithLabelValues(e.opts.vertexName, e.opts.pipelineName, failed.String()).Inc()
		log.Errorw("Bundle failed, nothing was committed", zap.String("phase", failed.String()), zap.Error(err))
		return nil, &BundleError{Key: kwi.Key, Phase: failed, Err: err}
	}
	b.transition(PhaseCommitted)
	bundlesProcessed.WithLabelValues(e.opts.vertexName, e.opts.pipelineName).Inc()
	unprocessedElements.WithLabelValues(e.opts.vertexName, e.opts.pipelineName).Add(float64(len(record.Unprocessed)))
	bundleProcessTime.WithLabelValues(e.opts.vertexName, e.opts.pipelineName).Observe(float64(e.opts.clock.Since(start).Microseconds()))
	return record, nil
}

func (b *bundle[In, Out]) run(ctx context.Context, kwi isb.KeyedWorkItem[In]) (*CommitRecord[In, Out], error) {
	for _, t := range kwi.Timers {
		if err := b.validate(t); err != nil {
			return nil, err
		}
	}

	b.transition(PhaseProcessingElements)
	for _, element := range kwi.Elements {
		if err := b.runner.ProcessElement(ctx, element); err != nil {
			return nil, err
		}
	}

	b.transition(PhaseProcessingTimers)
	for _, t := range kwi.Timers {
		if err := b.processTimer(ctx, t); err != nil {
			return nil, err
		}
	}

	b.transition(PhaseFinishing)
	return b.finish(ctx)
}

func (b *bundle[In, Out]) validate(t timers.TimerData) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistentTimer, err)
	}
	if t.Namespace.Key != b.key {
		return fmt.Errorf("%w: timer %s belongs to key %q", ErrInconsistentTimer, t, t.Namespace.Key)
	}
	return nil
}

// processTimer fires the timers of the domain modified in this bundle up to the fire timestamp of the
// current timer, then the current timer. The modifications are queried again after every firing so that
// the timers set while firing are seen.
func (b *bundle[In, Out]) processTimer(ctx context.Context, current timers.TimerData) error {
	for {
		next, ok := b.nextEarlier(current)
		if !ok {
			break
		}
		b.visited[next.Seq] = struct{}{}
		if next.Timer.Deleted || b.store.Superseded(next.Timer) {
			if err := b.skip(next.Timer); err != nil {
				return err
			}
			continue
		}
		if err := b.store.DeleteTimer(next.Timer); err != nil {
			return err
		}
		// the delete recorded above must not be visited as a modification of its own.
		b.visited[b.store.Mark()] = struct{}{}
		if err := b.fire(ctx, next.Timer); err != nil {
			return err
		}
	}
	if b.store.Superseded(current) {
		return b.skip(current)
	}
	return b.fire(ctx, current)
}

func (b *bundle[In, Out]) nextEarlier(current timers.TimerData) (timers.Modification, bool) {
	for _, m := range b.store.ModifiedSince(current.Domain, b.mark) {
		if m.Timer.FireTimestamp.After(current.FireTimestamp) {
			break
		}
		if _, ok := b.visited[m.Seq]; ok {
			continue
		}
		return m, true
	}
	return timers.Modification{}, false
}

// fire invokes the processor for the timer, then releases the hold of the timer.
func (b *bundle[In, Out]) fire(ctx context.Context, t timers.TimerData) error {
	b.log.Debugw("Firing timer", zap.String("timer", t.String()))
	if err := b.runner.OnTimer(ctx, t); err != nil {
		return err
	}
	timersFired.WithLabelValues(b.opts.vertexName, b.opts.pipelineName, t.Domain.String()).Inc()
	return b.release(t)
}

// skip releases the hold of a superseded timer without firing it.
func (b *bundle[In, Out]) skip(t timers.TimerData) error {
	b.log.Debugw("Skipping superseded timer", zap.String("timer", t.String()))
	staleTimersSkipped.WithLabelValues(b.opts.vertexName, b.opts.pipelineName, t.Domain.String()).Inc()
	return b.release(t)
}

func (b *bundle[In, Out]) release(t timers.TimerData) error {
	if err := b.holds.ClearTimerHold(t); err != nil {
		return err
	}
	_, err := b.internals.Commit()
	return err
}

// finish finishes the bundle in the processor, holds the watermark at the output timestamp of every timer
// set by the bundle, releases the holds of the timers it deleted and picks the hold of the record.
func (b *bundle[In, Out]) finish(ctx context.Context) (*CommitRecord[In, Out], error) {
	raw, err := b.runner.FinishBundle(ctx)
	if err != nil {
		return nil, err
	}
	update := raw.TimerUpdate
	if update.IsEmpty() {
		// only the processor's own holds, no commit is forced.
		return Assemble(b.key, raw, raw.WatermarkHold, update, raw.State), nil
	}
	for _, t := range update.Set {
		if err := b.holds.ResetTimerHold(t); err != nil {
			return nil, err
		}
	}
	for _, t := range update.Deleted {
		if err := b.holds.ClearTimerHold(t); err != nil {
			return nil, err
		}
	}
	snapshot, err := b.internals.Commit()
	if err != nil {
		return nil, err
	}
	var wm *time.Time
	if h, ok := snapshot.EarliestWatermarkHold(); ok {
		wm = &h
	}
	return Assemble(b.key, raw, wm, update, snapshot), nil
}

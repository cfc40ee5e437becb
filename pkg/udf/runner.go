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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udferr"
	"github.com/numaproj/stateful/pkg/window"
)

// TransformResult is the raw result of a bundle as produced by the Runner.
type TransformResult[In, Out any] struct {
	Outputs     []isb.Bundle[Out]
	TimerUpdate timers.Update
	// State is the last committed snapshot of the bundle.
	State *state.Snapshot
	// WatermarkHold is the earliest hold of State, nil when nothing is held.
	WatermarkHold *time.Time
	// DataHold is the earliest hold of State declared through user tags, nil when there is none.
	DataHold *time.Time
	// Unprocessed are the elements pushed back by the processor, one window each.
	Unprocessed   []isb.WindowedElement[In]
	Finalizations []Finalization
}

// Runner drives a Processor over the state and timers of one key for one bundle.
type Runner[In, Out any] struct {
	key         string
	processor   Processor[In, Out]
	internals   *state.Internals
	timers      *timers.Store
	out         *emitter[Out]
	unprocessed []isb.WindowedElement[In]
	log         *zap.SugaredLogger
}

// NewRunner returns a Runner for the bundle of the key.
func NewRunner[In, Out any](ctx context.Context, key string, processor Processor[In, Out], internals *state.Internals, store *timers.Store) *Runner[In, Out] {
	return &Runner[In, Out]{
		key:       key,
		processor: processor,
		internals: internals,
		timers:    store,
		out:       newEmitter[Out](),
		log:       logging.FromContext(ctx).With("key", key),
	}
}

func (r *Runner[In, Out]) setter(ns window.Namespace) *TimerSetter {
	return &TimerSetter{store: r.timers, ns: ns}
}

// ProcessElement invokes the processor once per window of the element. A pushed back window is kept as
// an unprocessed element and the state, timers and outputs of that call are rolled back. Any other error
// fails the bundle.
func (r *Runner[In, Out]) ProcessElement(ctx context.Context, element isb.WindowedElement[In]) error {
	if len(element.Windows) == 0 {
		return fmt.Errorf("element of key %q at %s has no window", r.key, element.EventTime)
	}
	for _, exploded := range element.Explode() {
		ns := window.NewNamespace(r.key, exploded.Windows[0])
		pc := &ProcessContext[In, Out]{
			key:     r.key,
			element: exploded,
			scope:   r.internals.Scope(ns),
			timers:  r.setter(ns),
			out:     r.out,
		}
		r.internals.Checkpoint()
		r.timers.Checkpoint()
		outputs := r.out.mark()
		err := r.processor.ProcessElement(ctx, pc)
		if err != nil && !udferr.IsRetryable(err) {
			return fmt.Errorf("processing element in window %s: %w", exploded.Windows[0].ID(), err)
		}
		if err != nil || pc.pushback {
			// the element is retried as a bundle of its own, nothing it did here may survive.
			r.internals.Rollback()
			r.timers.Rollback()
			r.out.truncate(outputs)
			r.log.Debugw("Element pushed back", zap.String("window", exploded.Windows[0].ID()), zap.Time("eventTime", exploded.EventTime), zap.Error(err))
			r.unprocessed = append(r.unprocessed, exploded)
			continue
		}
		r.internals.Release()
		r.timers.Release()
	}
	return nil
}

// OnTimer invokes the processor for the timer.
func (r *Runner[In, Out]) OnTimer(ctx context.Context, t timers.TimerData) error {
	tc := &TimerContext[Out]{
		timer:  t,
		scope:  r.internals.Scope(t.Namespace),
		timers: r.setter(t.Namespace),
		out:    r.out,
	}
	if err := r.processor.OnTimer(ctx, tc); err != nil {
		return fmt.Errorf("firing timer %s: %w", t, err)
	}
	return nil
}

// FinishBundle invokes the processor's FinishBundle and commits the state it touched. The hold of the
// result is the earliest hold of the committed state.
func (r *Runner[In, Out]) FinishBundle(ctx context.Context) (*TransformResult[In, Out], error) {
	fc := &FinishContext[Out]{key: r.key, out: r.out}
	if err := r.processor.FinishBundle(ctx, fc); err != nil {
		return nil, fmt.Errorf("finishing bundle: %w", err)
	}
	snapshot, err := r.internals.Commit()
	if err != nil {
		return nil, err
	}
	result := &TransformResult[In, Out]{
		Outputs:       r.out.bundles(),
		TimerUpdate:   r.timers.Update(),
		State:         snapshot,
		Unprocessed:   r.unprocessed,
		Finalizations: fc.finalizations,
	}
	if hold, ok := snapshot.EarliestWatermarkHold(); ok {
		result.WatermarkHold = &hold
	}
	if hold, ok := snapshot.EarliestDataHold(); ok {
		result.DataHold = &hold
	}
	return result, nil
}

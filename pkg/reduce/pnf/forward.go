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
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/metrics"
	"github.com/numaproj/stateful/pkg/reduce/stateful"
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udferr"
)

// permanentError stops the retries of retry.
type permanentError struct {
	error
}

func (e permanentError) Unwrap() error {
	return e.error
}

// nonRetryable returns true if the bundle failed in a way a retry of the same work item cannot fix.
func nonRetryable(err error) bool {
	if errors.Is(err, stateful.ErrInconsistentTimer) || errors.Is(err, state.ErrTagKindMismatch) {
		return true
	}
	udfErr, ok := udferr.FromError(err)
	return ok && udfErr.ErrorKind() == udferr.NonRetryable
}

// retry runs fn with the retry backoff until it succeeds, returns a permanentError or ctx is done.
func (m *Manager[In, Out]) retry(ctx context.Context, what string, log *zap.SugaredLogger, fn func() error) error {
	return wait.ExponentialBackoff(m.opts.retryBackoff, func() (done bool, err error) {
		if fnErr := fn(); fnErr != nil {
			var permanent permanentError
			if errors.As(fnErr, &permanent) {
				return false, permanent.error
			}
			log.Warnw("Retrying", zap.String("operation", what), zap.Error(fnErr))
			if ctx.Err() != nil {
				// no need to retry if the context is closed
				return false, ctx.Err()
			}
			return false, nil
		}
		return true, nil
	})
}

func (m *Manager[In, Out]) dueTimers(ctx context.Context, t task[In]) ([]timers.TimerData, error) {
	var due []timers.TimerData
	err := m.retry(ctx, "load due timers", m.log.With(zap.String("key", t.key())), func() error {
		var err error
		due, err = m.schedule.Due(ctx, t.key(), t.domain, t.upTo)
		return err
	})
	return due, err
}

// process runs the bundle until it succeeds and applies its commit record. A bundle failing with a
// non retryable error is dropped.
func (m *Manager[In, Out]) process(ctx context.Context, kwi isb.KeyedWorkItem[In]) error {
	log := m.log.With(zap.String("bundleID", uuid.NewString()), zap.String("key", kwi.Key))
	var record *stateful.CommitRecord[In, Out]
	err := m.retry(ctx, "process bundle", log, func() error {
		pending, err := m.schedule.Pending(ctx, kwi.Key)
		if err != nil {
			return err
		}
		record, err = m.evaluator.ProcessBundle(ctx, kwi, pending)
		if err != nil && nonRetryable(err) {
			return permanentError{err}
		}
		if err != nil {
			bundleRetries.WithLabelValues(m.opts.vertexName, m.opts.pipelineName).Inc()
		}
		return err
	})
	if err != nil && ctx.Err() == nil && nonRetryable(err) {
		bundlesDropped.WithLabelValues(m.opts.vertexName, m.opts.pipelineName).Inc()
		log.Errorw("Dropping bundle", zap.Int("elements", len(kwi.Elements)), zap.Int("timers", len(kwi.Timers)), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	return m.commit(ctx, log, kwi, record)
}

func (m *Manager[In, Out]) commit(ctx context.Context, log *zap.SugaredLogger, kwi isb.KeyedWorkItem[In], record *stateful.CommitRecord[In, Out]) error {
	start := time.Now()
	defer func() {
		commitTime.WithLabelValues(m.opts.vertexName, m.opts.pipelineName).Observe(float64(time.Since(start).Microseconds()))
	}()

	for _, bundle := range record.Outputs {
		if err := m.writeToBuffer(ctx, log, bundle); err != nil {
			return err
		}
	}

	if err := m.evaluator.Arena().Advance(record.State); err != nil {
		metrics.PlatformError.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, "advance_state").Inc()
		return err
	}

	if err := m.retry(ctx, "apply timer update", log, func() error {
		return m.schedule.Apply(ctx, kwi.Key, kwi.Timers, record.TimerUpdate)
	}); err != nil {
		return err
	}

	if err := m.publisher.PublishHold(ctx, kwi.Key, record.WatermarkHold); err != nil {
		return err
	}

	var finalizeErr error
	for _, f := range record.Finalizations {
		finalizeErr = multierr.Append(finalizeErr, f(ctx))
	}
	if finalizeErr != nil {
		finalizationErrors.WithLabelValues(m.opts.vertexName, m.opts.pipelineName).Add(float64(len(multierr.Errors(finalizeErr))))
		log.Warnw("Finalization failed", zap.Error(finalizeErr))
	}

	for _, wi := range record.Unprocessed {
		if err := m.enqueue(task[In]{kwi: wi}); err != nil {
			log.Errorw("Failed to resubmit pushed back element", zap.Error(err))
			return err
		}
	}
	log.Debugw("Committed bundle", zap.Int("outputs", len(record.Outputs)), zap.String("holdSource", record.HoldSource.String()),
		zap.Int("unprocessed", len(record.Unprocessed)))
	return nil
}

// writeToBuffer writes the bundle to the buffer of its tag with infinite backoff, until shutdown is
// triggered. Elements rejected with a NoRetryableBufferWriteErr are dropped.
func (m *Manager[In, Out]) writeToBuffer(ctx context.Context, log *zap.SugaredLogger, bundle isb.Bundle[Out]) error {
	buffer, ok := m.toBuffers[bundle.Tag]
	if !ok {
		log.Warnw("No buffer for output tag, dropping elements", zap.String("tag", bundle.Tag), zap.Int("count", len(bundle.Elements)))
		metrics.DropMessagesCount.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, bundle.Tag).Add(float64(len(bundle.Elements)))
		return nil
	}
	var (
		writeCount int
		dropCount  int
	)
	writeElements := bundle.Elements
	ctxClosedErr := wait.ExponentialBackoff(m.opts.retryBackoff, func() (done bool, err error) {
		var failed []isb.WindowedElement[Out]
		writeErrs := buffer.Write(ctx, writeElements)
		for i, element := range writeElements {
			if writeErrs[i] == nil {
				writeCount++
				continue
			}
			if errors.As(writeErrs[i], &isb.NoRetryableBufferWriteErr{}) {
				// If the buffer returns us a NoRetryableBufferWriteErr, we drop the element.
				dropCount++
			} else {
				failed = append(failed, element)
			}
		}
		// retry only the failed elements
		if len(failed) > 0 {
			log.Warnw("Failed to write elements to buffer", zap.String("buffer", buffer.GetName()), zap.Errors("errors", writeErrs))
			writeElements = failed
			metrics.WriteMessagesError.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, buffer.GetName()).Add(float64(len(failed)))
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		return true, nil
	})
	if ctxClosedErr != nil {
		log.Errorw("Ctx closed while writing elements to buffer", zap.Error(ctxClosedErr))
		return ctxClosedErr
	}
	metrics.DropMessagesCount.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, buffer.GetName()).Add(float64(dropCount))
	metrics.WriteMessagesCount.WithLabelValues(m.opts.vertexName, m.opts.pipelineName, buffer.GetName()).Add(float64(writeCount))
	return nil
}

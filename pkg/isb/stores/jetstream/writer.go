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

// Package jetstream writes output elements to a JetStream stream subject.
package jetstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	natsclient "github.com/numaproj/stateful/pkg/shared/clients/nats"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// JetStreamWriter publishes every element as one message on the subject of a stream.
type JetStreamWriter[O any] struct {
	name    string
	stream  string
	subject string
	js      nats.JetStreamContext
	opts    *writeOptions
	isFull  *atomic.Bool
	// guards lastRefresh
	lock        sync.Mutex
	lastRefresh time.Time
	log         *zap.SugaredLogger
}

var _ isb.BufferWriter[string] = (*JetStreamWriter[string])(nil)

// NewJetStreamBufferWriter is used to provide a new instance of JetStreamWriter. The stream must exist.
func NewJetStreamBufferWriter[O any](ctx context.Context, client *natsclient.Client, name, stream, subject string, opts ...WriteOption) (*JetStreamWriter[O], error) {
	o := defaultWriteOptions()
	for _, opt := range opts {
		if opt != nil {
			if err := opt(o); err != nil {
				return nil, err
			}
		}
	}

	js, err := client.JetStreamContext(nats.PublishAsyncMaxPending(1024))
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context for writer, %w", err)
	}
	if _, err := js.StreamInfo(stream); err != nil {
		return nil, fmt.Errorf("failed to get info of stream %q, %w", stream, err)
	}

	return &JetStreamWriter[O]{
		name:    name,
		stream:  stream,
		subject: subject,
		js:      js,
		opts:    o,
		isFull:  atomic.NewBool(false),
		log:     logging.FromContext(ctx).With("bufferWriter", name).With("stream", stream).With("subject", subject),
	}, nil
}

func (jw *JetStreamWriter[O]) GetName() string {
	return jw.name
}

// Close doesn't have to do anything for JetStreamWriter, client will be closed by the caller.
func (jw *JetStreamWriter[O]) Close() error {
	return nil
}

// checkStatus updates the full flag from the stream info, at most once per refresh interval.
func (jw *JetStreamWriter[O]) checkStatus() {
	jw.lock.Lock()
	defer jw.lock.Unlock()
	if !jw.lastRefresh.IsZero() && time.Since(jw.lastRefresh) < jw.opts.refreshInterval {
		return
	}
	labels := map[string]string{"buffer": jw.GetName()}
	s, err := jw.js.StreamInfo(jw.stream)
	if err != nil {
		isbFullErrors.With(labels).Inc()
		jw.log.Errorw("Failed to get stream info in the writer", zap.Error(err))
		return
	}
	jw.lastRefresh = time.Now()
	usage := float64(s.State.Msgs) / float64(jw.opts.maxLength)
	if usage >= jw.opts.bufferUsageLimit {
		jw.log.Infow("Usage is greater than bufferUsageLimit", zap.Float64("usage", usage))
		jw.isFull.Store(true)
	} else {
		jw.isFull.Store(false)
	}
	isbUsage.With(labels).Set(usage)
}

// Write publishes the elements asynchronously and waits for their acks.
func (jw *JetStreamWriter[O]) Write(ctx context.Context, elements []isb.WindowedElement[O]) []error {
	labels := map[string]string{"buffer": jw.GetName()}
	var errs = make([]error, len(elements))
	jw.checkStatus()
	if jw.isFull.Load() {
		jw.log.Debugw("Is full")
		isbFull.With(labels).Inc()
		for i := 0; i < len(errs); i++ {
			switch jw.opts.onFullWritingStrategy {
			case isb.DiscardLatest:
				errs[i] = isb.NoRetryableBufferWriteErr{Name: jw.name, Message: isb.BufferFullMessage}
			default:
				errs[i] = isb.BufferWriteErr{Name: jw.name, Full: true, Message: isb.BufferFullMessage}
			}
		}
		isbWriteErrors.With(labels).Inc()
		return errs
	}
	defer func(t time.Time) {
		isbWriteTime.With(labels).Observe(float64(time.Since(t).Microseconds()))
	}(time.Now())
	return jw.asyncWrite(ctx, elements, errs, labels)
}

func (jw *JetStreamWriter[O]) asyncWrite(ctx context.Context, elements []isb.WindowedElement[O], errs []error, metricsLabels map[string]string) []error {
	var futures = make([]nats.PubAckFuture, len(elements))
	for index, e := range elements {
		payload, err := isb.MarshalElement(e)
		if err != nil {
			errs[index] = isb.NoRetryableBufferWriteErr{Name: jw.name, Message: err.Error()}
			continue
		}
		m := &nats.Msg{
			Subject: jw.subject,
			Data:    payload,
		}
		if future, err := jw.js.PublishMsgAsync(m); err != nil {
			errs[index] = err
		} else {
			futures[index] = future
		}
	}

	ctx, cancel := context.WithTimeout(ctx, jw.opts.writeTimeout)
	defer cancel()
	wg := new(sync.WaitGroup)
	for index, f := range futures {
		if f == nil {
			continue
		}
		wg.Add(1)
		go func(idx int, fu nats.PubAckFuture) {
			defer wg.Done()
			select {
			case pubAck := <-fu.Ok():
				errs[idx] = nil
				jw.log.Debugw("Succeeded to publish a message", zap.String("stream", pubAck.Stream), zap.Uint64("seq", pubAck.Sequence))
			case err := <-fu.Err():
				errs[idx] = err
				isbWriteErrors.With(metricsLabels).Inc()
			case <-ctx.Done():
				errs[idx] = isb.BufferWriteErr{Name: jw.name, InternalErr: true, Message: "timed out waiting for the publish ack"}
				isbWriteTimeout.With(metricsLabels).Inc()
			}
		}(index, f)
	}
	wg.Wait()
	return errs
}

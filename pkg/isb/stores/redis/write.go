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

// Package redis writes output elements to a redis stream.
package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	redisclient "github.com/numaproj/stateful/pkg/shared/clients/redis"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// ElementField is the stream entry field that carries the encoded element.
const ElementField = "element"

// StreamWriter is the buffer writer powered by a redis stream. Every element becomes one stream entry.
type StreamWriter[O any] struct {
	name   string
	stream string
	client *redisclient.RedisClient
	opts   *options
	isFull *atomic.Bool
	// guards lastRefresh
	lock        sync.Mutex
	lastRefresh time.Time
	log         *zap.SugaredLogger
}

var _ isb.BufferWriter[string] = (*StreamWriter[string])(nil)

// NewStreamWriter returns a writer of the named stream.
func NewStreamWriter[O any](ctx context.Context, client *redisclient.RedisClient, name string, opts ...Option) *StreamWriter[O] {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(o)
	}
	return &StreamWriter[O]{
		name:   name,
		stream: name,
		client: client,
		opts:   o,
		isFull: atomic.NewBool(false),
		log:    logging.FromContext(ctx).With("bufferWriter", name),
	}
}

// GetName gets the name of the buffer.
func (sw *StreamWriter[O]) GetName() string {
	return sw.name
}

// GetStreamName gets the stream name.
func (sw *StreamWriter[O]) GetStreamName() string {
	return sw.stream
}

// Close doesn't close the client, it is owned by the caller.
func (sw *StreamWriter[O]) Close() error {
	return nil
}

// refreshWriteInfo updates the full flag from the stream length, at most once per refresh interval.
func (sw *StreamWriter[O]) refreshWriteInfo(ctx context.Context) {
	sw.lock.Lock()
	defer sw.lock.Unlock()
	if !sw.lastRefresh.IsZero() && time.Since(sw.lastRefresh) < sw.opts.infoRefreshInterval {
		return
	}
	labels := map[string]string{"buffer": sw.GetName()}
	length, err := sw.client.Client.XLen(ctx, sw.stream).Result()
	if err != nil {
		// keep the previous flag
		isbIsFullErrors.With(labels).Inc()
		sw.log.Errorw("Failed to get the stream length", zap.Error(err))
		return
	}
	sw.lastRefresh = time.Now()
	usage := float64(length) / float64(sw.opts.maxLength)
	isbBufferUsage.With(labels).Set(usage)
	sw.isFull.Store(usage >= sw.opts.bufferUsageLimit)
}

// Write adds the elements to the stream.
func (sw *StreamWriter[O]) Write(ctx context.Context, elements []isb.WindowedElement[O]) []error {
	errs := make([]error, len(elements))
	labels := map[string]string{"buffer": sw.GetName()}

	sw.refreshWriteInfo(ctx)
	if sw.isFull.Load() {
		sw.log.Debugw("Is full")
		isbIsFull.With(labels).Inc()
		switch sw.opts.onFullWritingStrategy {
		case isb.DiscardLatest:
			initializeErrorArray(errs, isb.NoRetryableBufferWriteErr{Name: sw.name, Message: isb.BufferFullMessage})
		default:
			initializeErrorArray(errs, isb.BufferWriteErr{Name: sw.name, Full: true, Message: isb.BufferFullMessage})
		}
		isbWriteErrors.With(labels).Inc()
		return errs
	}

	payloads := make([][]byte, len(elements))
	for i, e := range elements {
		b, err := isb.MarshalElement(e)
		if err != nil {
			// the same element would never encode, drop it
			errs[i] = isb.NoRetryableBufferWriteErr{Name: sw.name, Message: err.Error()}
			continue
		}
		payloads[i] = b
	}

	if !sw.opts.pipelining {
		for i, p := range payloads {
			if errs[i] != nil {
				continue
			}
			errs[i] = sw.client.Client.XAdd(ctx, sw.addArgs(p)).Err()
		}
	} else {
		sw.pipelinedWrite(ctx, payloads, errs)
	}
	for _, err := range errs {
		if err != nil {
			isbWriteErrors.With(labels).Inc()
		}
	}
	return errs
}

func (sw *StreamWriter[O]) addArgs(payload []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: sw.stream,
		Values: map[string]interface{}{ElementField: payload},
	}
}

// pipelinedWrite sends every encodable payload in a single round trip.
func (sw *StreamWriter[O]) pipelinedWrite(ctx context.Context, payloads [][]byte, errs []error) {
	cmds := make([]*redis.StringCmd, len(payloads))
	pipe := sw.client.Client.Pipeline()
	for i, p := range payloads {
		if errs[i] != nil {
			continue
		}
		cmds[i] = pipe.XAdd(ctx, sw.addArgs(p))
	}
	// Exec reports the first failure, every command carries its own result.
	_, _ = pipe.Exec(ctx)
	for i, cmd := range cmds {
		if cmd != nil {
			errs[i] = cmd.Err()
		}
	}
}

// initializeErrorArray is used to initialize an empty array for
func initializeErrorArray(errs []error, err error) {
	for i := range errs {
		errs[i] = err
	}
}

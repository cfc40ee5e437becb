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

package jetstream

import (
	"time"

	"github.com/numaproj/stateful/pkg/isb"
)

// options for writing to JetStream
type writeOptions struct {
	// maxLength is the maximum length of the stream before it reaches full
	maxLength int64
	// bufferUsageLimit is the limit of buffer usage before we declare it as full
	bufferUsageLimit float64
	// refreshInterval is the minimum interval between two stream info checks
	refreshInterval time.Duration
	// writeTimeout bounds the wait for the publish acks of one write
	writeTimeout time.Duration
	// onFullWritingStrategy is the writing strategy when the stream is full
	onFullWritingStrategy isb.OnFullWritingStrategy
}

func defaultWriteOptions() *writeOptions {
	return &writeOptions{
		maxLength:             30000,
		bufferUsageLimit:      0.8,
		refreshInterval:       1 * time.Second,
		writeTimeout:          5 * time.Second,
		onFullWritingStrategy: isb.RetryUntilSuccess,
	}
}

type WriteOption func(*writeOptions) error

// WithMaxLength sets buffer max length option
func WithMaxLength(length int64) WriteOption {
	return func(o *writeOptions) error {
		o.maxLength = length
		return nil
	}
}

// WithBufferUsageLimit sets buffer usage limit option
func WithBufferUsageLimit(usageLimit float64) WriteOption {
	return func(o *writeOptions) error {
		o.bufferUsageLimit = usageLimit
		return nil
	}
}

// WithRefreshInterval sets refresh interval option
func WithRefreshInterval(refreshInterval time.Duration) WriteOption {
	return func(o *writeOptions) error {
		o.refreshInterval = refreshInterval
		return nil
	}
}

// WithWriteTimeout sets the publish ack timeout
func WithWriteTimeout(timeout time.Duration) WriteOption {
	return func(o *writeOptions) error {
		o.writeTimeout = timeout
		return nil
	}
}

// WithOnFullWritingStrategy sets the writing strategy when the stream is full
func WithOnFullWritingStrategy(s isb.OnFullWritingStrategy) WriteOption {
	return func(o *writeOptions) error {
		o.onFullWritingStrategy = s
		return nil
	}
}

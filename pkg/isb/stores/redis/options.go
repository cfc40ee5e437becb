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

package redis

import (
	"time"

	"github.com/numaproj/stateful/pkg/isb"
)

// options for writing to redis
type options struct {
	// pipelining enables redis pipeline
	pipelining bool
	// infoRefreshInterval is the minimum interval between two stream length checks
	infoRefreshInterval time.Duration
	// maxLength is the maximum length of the stream before it reaches full
	maxLength int64
	// bufferUsageLimit is the limit of buffer usage before we declare it as full
	bufferUsageLimit float64
	// onFullWritingStrategy is the writing strategy when the stream is full
	onFullWritingStrategy isb.OnFullWritingStrategy
}

func defaultOptions() *options {
	return &options{
		pipelining:            true,
		infoRefreshInterval:   time.Second,
		maxLength:             30000,
		bufferUsageLimit:      0.8,
		onFullWritingStrategy: isb.RetryUntilSuccess,
	}
}

// Option to apply different options
type Option interface {
	apply(*options)
}

// pipelining option
type pipelining bool

func (p pipelining) apply(opts *options) {
	opts.pipelining = bool(p)
}

// WithoutPipelining turns off redis pipelining
func WithoutPipelining() Option {
	return pipelining(false)
}

// infoRefreshInterval option
type infoRefreshInterval time.Duration

func (i infoRefreshInterval) apply(o *options) {
	o.infoRefreshInterval = time.Duration(i)
}

// WithInfoRefreshInterval sets the refresh interval
func WithInfoRefreshInterval(t time.Duration) Option {
	return infoRefreshInterval(t)
}

// maxLength option
type maxLength int64

func (m maxLength) apply(o *options) {
	o.maxLength = int64(m)
}

// WithMaxLength sets the maxLength
func WithMaxLength(m int64) Option {
	return maxLength(m)
}

// usageLimit option
type usageLimit float64

func (u usageLimit) apply(o *options) {
	o.bufferUsageLimit = float64(u)
}

// WithBufferUsageLimit sets the usage limit, a fraction of maxLength
func WithBufferUsageLimit(u float64) Option {
	return usageLimit(u)
}

// onFull option
type onFull isb.OnFullWritingStrategy

func (s onFull) apply(o *options) {
	o.onFullWritingStrategy = isb.OnFullWritingStrategy(s)
}

// WithOnFullWritingStrategy sets the writing strategy when the stream is full
func WithOnFullWritingStrategy(s isb.OnFullWritingStrategy) Option {
	return onFull(s)
}

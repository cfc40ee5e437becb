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
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"

	"github.com/numaproj/stateful/pkg/shared/config"
)

var tickParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type options struct {
	workers      int
	vertexName   string
	pipelineName string
	// retryBackoff is used for output writes, timer schedule writes and failed bundles.
	retryBackoff wait.Backoff
	// processingTimeTick is a cron spec, with seconds, advancing the processing time domains.
	processingTimeTick string
	clock              clock.Clock
}

// Option to apply different options
type Option func(*options) error

func defaultOptions() *options {
	return &options{
		workers: 4,
		retryBackoff: wait.Backoff{
			Steps:    math.MaxInt,
			Duration: 100 * time.Millisecond,
			Factor:   1,
			Jitter:   0.1,
		},
		clock: clock.RealClock{},
	}
}

// WithWorkers sets the number of shards processed in parallel.
func WithWorkers(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("workers must be positive, got %d", n)
		}
		o.workers = n
		return nil
	}
}

// WithVertexName sets the vertex label of the metrics.
func WithVertexName(name string) Option {
	return func(o *options) error {
		o.vertexName = name
		return nil
	}
}

// WithPipelineName sets the pipeline label of the metrics.
func WithPipelineName(name string) Option {
	return func(o *options) error {
		o.pipelineName = name
		return nil
	}
}

// WithRetryBackoff sets the backoff between retries. Retries stop when the context is done or a bundle
// fails with a non retryable error.
func WithRetryBackoff(interval time.Duration, factor, jitter float64, maxInterval time.Duration) Option {
	return func(o *options) error {
		if interval <= 0 {
			return fmt.Errorf("retry interval must be positive, got %s", interval)
		}
		o.retryBackoff.Duration = interval
		o.retryBackoff.Factor = factor
		o.retryBackoff.Jitter = jitter
		o.retryBackoff.Cap = maxInterval
		return nil
	}
}

// WithProcessingTimeTick advances the processing time domains to the clock's time on the given cron
// schedule, e.g. "@every 1s" or "*/5 * * * * *".
func WithProcessingTimeTick(spec string) Option {
	return func(o *options) error {
		if _, err := tickParser.Parse(spec); err != nil {
			return fmt.Errorf("invalid processing time tick %q: %w", spec, err)
		}
		o.processingTimeTick = spec
		return nil
	}
}

// WithClock sets the clock read by the processing time tick.
func WithClock(c clock.Clock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithEngineConfig applies the workers, retry and naming settings of the engine configuration.
func WithEngineConfig(c config.EngineConfig) Option {
	return func(o *options) error {
		if err := WithWorkers(c.Workers)(o); err != nil {
			return err
		}
		if err := WithRetryBackoff(c.Retry.Interval, c.Retry.Factor, c.Retry.Jitter, c.Retry.Cap)(o); err != nil {
			return err
		}
		if c.ProcessingTimeTick != "" {
			if err := WithProcessingTimeTick(c.ProcessingTimeTick)(o); err != nil {
				return err
			}
		}
		o.vertexName = c.Stage
		o.pipelineName = c.Pipeline
		return nil
	}
}

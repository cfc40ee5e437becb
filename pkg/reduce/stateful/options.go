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

package stateful

import (
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

type options struct {
	logger        *zap.SugaredLogger
	vertexName    string
	pipelineName  string
	clock         clock.PassiveClock
	phaseObserver func(key string, phase Phase)
}

// Option to apply different options
type Option func(*options) error

func defaultOptions() *options {
	return &options{
		clock: clock.RealClock{},
	}
}

// WithLogger sets the logger, the logger of the context is used otherwise.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) error {
		o.logger = l
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

// WithClock sets the clock used to measure bundles.
func WithClock(c clock.PassiveClock) Option {
	return func(o *options) error {
		o.clock = c
		return nil
	}
}

// WithPhaseObserver sets a callback invoked on every phase transition of a bundle.
func WithPhaseObserver(f func(key string, phase Phase)) Option {
	return func(o *options) error {
		o.phaseObserver = f
		return nil
	}
}

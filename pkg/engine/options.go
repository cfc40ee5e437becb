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

package engine

import (
	"k8s.io/utils/clock"

	"github.com/numaproj/stateful/pkg/isb"
)

type options[Out any] struct {
	// toBuffers replaces the writers built from the configured outputs
	toBuffers map[string]isb.BufferWriter[Out]
	clock     clock.Clock
}

type Option[Out any] func(*options[Out]) error

// WithBuffers sets the output writers, keyed by output tag, instead of building them from the
// configuration. The engine closes them on Shutdown.
func WithBuffers[Out any](toBuffers map[string]isb.BufferWriter[Out]) Option[Out] {
	return func(o *options[Out]) error {
		o.toBuffers = toBuffers
		return nil
	}
}

// WithClock sets the clock read by the processing time tick.
func WithClock[Out any](c clock.Clock) Option[Out] {
	return func(o *options[Out]) error {
		o.clock = c
		return nil
	}
}

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

// Package udf binds user logic to the stateful engine. A step implements Processor, the engine drives it
// through a Runner for the span of one bundle.
package udf

import (
	"context"
)

// Processor is the user logic of a stateful step.
type Processor[In, Out any] interface {
	// ProcessElement is invoked once per element and window.
	ProcessElement(ctx context.Context, pc *ProcessContext[In, Out]) error
	// OnTimer is invoked when a timer of the step fires.
	OnTimer(ctx context.Context, tc *TimerContext[Out]) error
	// FinishBundle is invoked once at the end of every bundle.
	FinishBundle(ctx context.Context, fc *FinishContext[Out]) error
}

// Lifecycle is implemented by processors that hold resources across bundles.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// Finalization is invoked by the execution layer once the outputs of the bundle that registered it are
// durably written.
type Finalization func(ctx context.Context) error

// Funcs adapts plain functions to a Processor, a nil function is a no-op.
type Funcs[In, Out any] struct {
	Process func(ctx context.Context, pc *ProcessContext[In, Out]) error
	Timer   func(ctx context.Context, tc *TimerContext[Out]) error
	Finish  func(ctx context.Context, fc *FinishContext[Out]) error
}

var _ Processor[int, int] = (*Funcs[int, int])(nil)

func (f *Funcs[In, Out]) ProcessElement(ctx context.Context, pc *ProcessContext[In, Out]) error {
	if f.Process == nil {
		return nil
	}
	return f.Process(ctx, pc)
}

func (f *Funcs[In, Out]) OnTimer(ctx context.Context, tc *TimerContext[Out]) error {
	if f.Timer == nil {
		return nil
	}
	return f.Timer(ctx, tc)
}

func (f *Funcs[In, Out]) FinishBundle(ctx context.Context, fc *FinishContext[Out]) error {
	if f.Finish == nil {
		return nil
	}
	return f.Finish(ctx, fc)
}

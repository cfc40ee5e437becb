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
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/shared/logging"
)

// Factory creates the processor of a step.
type Factory[In, Out any] func(ctx context.Context) (Processor[In, Out], error)

// Registry owns the processor instances of the steps run by an execution layer. Instances are created and
// set up on first use and torn down on Close.
type Registry[In, Out any] struct {
	sync.Mutex
	factories map[string]Factory[In, Out]
	instances map[string]Processor[In, Out]
	closed    bool
}

// NewRegistry returns an empty Registry.
func NewRegistry[In, Out any]() *Registry[In, Out] {
	return &Registry[In, Out]{
		factories: make(map[string]Factory[In, Out]),
		instances: make(map[string]Processor[In, Out]),
	}
}

// Register registers the factory of the step.
func (r *Registry[In, Out]) Register(step string, factory Factory[In, Out]) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.factories[step]; ok {
		return fmt.Errorf("step %q is already registered", step)
	}
	r.factories[step] = factory
	return nil
}

// Get returns the processor of the step, creating and setting it up on first use.
func (r *Registry[In, Out]) Get(ctx context.Context, step string) (Processor[In, Out], error) {
	r.Lock()
	defer r.Unlock()
	if r.closed {
		return nil, fmt.Errorf("registry is closed")
	}
	if p, ok := r.instances[step]; ok {
		return p, nil
	}
	factory, ok := r.factories[step]
	if !ok {
		return nil, fmt.Errorf("step %q is not registered", step)
	}
	p, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating processor of step %q: %w", step, err)
	}
	if lc, ok := p.(Lifecycle); ok {
		if err := lc.Setup(ctx); err != nil {
			return nil, fmt.Errorf("setting up processor of step %q: %w", step, err)
		}
	}
	logging.FromContext(ctx).Infow("Processor is set up", zap.String("step", step))
	r.instances[step] = p
	return p, nil
}

// Close tears down every instance, the errors of all instances are combined.
func (r *Registry[In, Out]) Close(ctx context.Context) error {
	r.Lock()
	defer r.Unlock()
	r.closed = true
	steps := make([]string, 0, len(r.instances))
	for step := range r.instances {
		steps = append(steps, step)
	}
	sort.Strings(steps)
	var err error
	for _, step := range steps {
		if lc, ok := r.instances[step].(Lifecycle); ok {
			if e := lc.Teardown(ctx); e != nil {
				err = multierr.Append(err, fmt.Errorf("tearing down processor of step %q: %w", step, e))
			}
		}
		delete(r.instances, step)
	}
	return err
}

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

package blackhole

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/metrics"
)

// sinkWriteCount is used to indicate the number of elements written to the blackhole
var sinkWriteCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "blackhole_sink",
	Name:      "write_total",
	Help:      "Total number of elements written to blackhole sink",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// Blackhole is a sink to emulate /dev/null
type Blackhole[O any] struct {
	name         string
	pipelineName string
}

var _ isb.BufferWriter[string] = (*Blackhole[string])(nil)

// NewBlackhole returns a new Blackhole sink.
func NewBlackhole[O any](name, pipelineName string) *Blackhole[O] {
	return &Blackhole[O]{
		name:         name,
		pipelineName: pipelineName,
	}
}

// GetName returns the name.
func (b *Blackhole[O]) GetName() string {
	return b.name
}

// Write writes to the blackhole.
func (b *Blackhole[O]) Write(_ context.Context, elements []isb.WindowedElement[O]) []error {
	sinkWriteCount.With(map[string]string{metrics.LabelVertex: b.name, metrics.LabelPipeline: b.pipelineName}).Add(float64(len(elements)))
	return make([]error, len(elements))
}

func (b *Blackhole[O]) Close() error {
	return nil
}

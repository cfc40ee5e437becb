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

package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/metrics"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// ToLog prints the output elements to the logger.
type ToLog[O any] struct {
	name         string
	pipelineName string
	logger       *zap.SugaredLogger
}

var _ isb.BufferWriter[string] = (*ToLog[string])(nil)

type Option[O any] func(*ToLog[O]) error

func WithLogger[O any](log *zap.SugaredLogger) Option[O] {
	return func(t *ToLog[O]) error {
		t.logger = log
		return nil
	}
}

// WithPipelineName sets the pipeline metric label.
func WithPipelineName[O any](name string) Option[O] {
	return func(t *ToLog[O]) error {
		t.pipelineName = name
		return nil
	}
}

// NewToLog returns ToLog type.
func NewToLog[O any](name string, opts ...Option[O]) (*ToLog[O], error) {
	toLog := &ToLog[O]{name: name}
	for _, o := range opts {
		if err := o(toLog); err != nil {
			return nil, err
		}
	}
	if toLog.logger == nil {
		toLog.logger = logging.NewLogger()
	}
	toLog.logger = toLog.logger.With("sinkType", "log").With("sink", name)
	return toLog, nil
}

// GetName returns the name.
func (t *ToLog[O]) GetName() string {
	return t.name
}

// Write writes to the log.
func (t *ToLog[O]) Write(_ context.Context, elements []isb.WindowedElement[O]) []error {
	for _, e := range elements {
		logSinkWriteCount.With(map[string]string{metrics.LabelVertex: t.name, metrics.LabelPipeline: t.pipelineName}).Inc()
		t.logger.Infow("Element", zap.Any("value", e.Value), zap.Int64("eventTime", e.EventTime.UnixMilli()),
			zap.Int("windows", len(e.Windows)), zap.Stringer("timing", e.Pane.Timing), zap.Int64("paneIndex", e.Pane.Index))
	}
	return make([]error, len(elements))
}

func (t *ToLog[O]) Close() error {
	return nil
}

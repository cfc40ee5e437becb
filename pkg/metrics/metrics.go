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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelPipeline      = "pipeline"
	LabelVertex        = "vertex"
	LabelPartitionName = "partition_name"
	LabelDomain        = "domain"
	LabelPhase         = "phase"
	LabelReason        = "reason"
	LabelBackend       = "backend"
)

// Generic writer metrics
var (
	// WriteMessagesCount is used to indicate the number of elements written
	WriteMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "writer",
		Name:      "write_total",
		Help:      "Total number of Elements Written",
	}, []string{LabelVertex, LabelPipeline, LabelPartitionName})

	// WriteMessagesError is used to indicate the number of errors while writing elements
	WriteMessagesError = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "writer",
		Name:      "write_error_total",
		Help:      "Total number of Write Errors",
	}, []string{LabelVertex, LabelPipeline, LabelPartitionName})

	// DropMessagesCount is used to indicate the number of elements dropped by a writer
	DropMessagesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "writer",
		Name:      "drop_total",
		Help:      "Total number of Elements Dropped",
	}, []string{LabelVertex, LabelPipeline, LabelPartitionName})

	// PlatformError is used to indicate the number of Internal/Platform errors
	PlatformError = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "platform",
		Name:      "error_total",
		Help:      "Total number of platform Errors",
	}, []string{LabelVertex, LabelPipeline, LabelReason})
)

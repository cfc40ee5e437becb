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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/stateful/pkg/metrics"
)

// bundlesProcessed is the number of committed bundles
var bundlesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful",
	Name:      "bundles_total",
	Help:      "Total number of committed bundles",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// bundlesFailed is the number of failed bundles per failing phase
var bundlesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful",
	Name:      "bundles_failed_total",
	Help:      "Total number of failed bundles",
}, []string{metrics.LabelVertex, metrics.LabelPipeline, metrics.LabelPhase})

// timersFired is the number of fired timers per domain
var timersFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful",
	Name:      "timers_fired_total",
	Help:      "Total number of fired timers",
}, []string{metrics.LabelVertex, metrics.LabelPipeline, metrics.LabelDomain})

// staleTimersSkipped is the number of timers skipped because they were superseded in the same bundle
var staleTimersSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful",
	Name:      "stale_timers_skipped_total",
	Help:      "Total number of superseded timers skipped",
}, []string{metrics.LabelVertex, metrics.LabelPipeline, metrics.LabelDomain})

// unprocessedElements is the number of pushed back elements
var unprocessedElements = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful",
	Name:      "unprocessed_elements_total",
	Help:      "Total number of elements pushed back for a later bundle",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// bundleProcessTime is the processing latency of a bundle
var bundleProcessTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "stateful",
	Name:      "bundle_process_time",
	Help:      "Bundle process time (1 to 1200000 microseconds)",
	Buckets:   prometheus.ExponentialBucketsRange(1, 1200000, 5),
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/numaproj/stateful/pkg/metrics"
)

// bundleRetries is the number of failed bundle attempts that were retried
var bundleRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful_pnf",
	Name:      "bundle_retries_total",
	Help:      "Total number of retried bundle attempts",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// bundlesDropped is the number of bundles dropped after a non retryable failure
var bundlesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful_pnf",
	Name:      "bundles_dropped_total",
	Help:      "Total number of bundles dropped after a non retryable failure",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// finalizationErrors is the number of finalization callbacks that returned an error
var finalizationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "stateful_pnf",
	Name:      "finalization_error_total",
	Help:      "Total number of failed finalization callbacks",
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// commitTime is the latency of applying a commit record
var commitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "stateful_pnf",
	Name:      "commit_time",
	Help:      "Commit application time (1 to 100000 microseconds)",
	Buckets:   prometheus.ExponentialBucketsRange(1, 100000, 5),
}, []string{metrics.LabelVertex, metrics.LabelPipeline})

// shardQueueLength is the number of tasks waiting per shard
var shardQueueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "stateful_pnf",
	Name:      "shard_queue_length",
	Help:      "Number of tasks waiting in a shard queue",
}, []string{metrics.LabelVertex, metrics.LabelPipeline, "shard"})

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

package jetstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// isbFullErrors is used to indicate the number of errors in the jetstream isFull check
var isbFullErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "isb_jetstream",
	Name:      "isFull_error_total",
	Help:      "Total number of jetstream isFull errors",
}, []string{"buffer"})

// isbFull is used to indicate the counter for number of times buffer is full
var isbFull = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "isb_jetstream",
	Name:      "isFull_total",
	Help:      "Total number of IsFull",
}, []string{"buffer"})

// isbWriteErrors is used to indicate the number of errors in the jetstream write check
var isbWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "isb_jetstream",
	Name:      "write_error_total",
	Help:      "Total number of jetstream write errors",
}, []string{"buffer"})

// isbUsage is the share of the stream capacity in use
var isbUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Subsystem: "isb_jetstream",
	Name:      "buffer_usage",
	Help:      "percentage of buffer usage",
}, []string{"buffer"})

// isbWriteTimeout records how many times of writing timeout
var isbWriteTimeout = promauto.NewCounterVec(prometheus.CounterOpts{
	Subsystem: "isb_jetstream",
	Name:      "write_timeout_total",
	Help:      "Total number of jetstream write timeouts",
}, []string{"buffer"})

// isbWriteTime is the time of one write in microseconds
var isbWriteTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "isb_jetstream",
	Name:      "write_time_total",
	Help:      "Processing times of Writes for jetstream",
	Buckets:   prometheus.ExponentialBucketsRange(100, 60000000*3, 10),
}, []string{"buffer"})

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

package publish

import (
	"fmt"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

type publishOptions struct {
	backoff wait.Backoff
}

func defaultOptions() *publishOptions {
	return &publishOptions{
		// retry until the context is canceled
		backoff: wait.Backoff{
			Steps:    math.MaxInt,
			Duration: 100 * time.Millisecond,
			Factor:   1,
			Jitter:   0.1,
		},
	}
}

// PublishOption sets options for the HoldPublisher.
type PublishOption func(*publishOptions) error

// WithRetryBackoff sets the interval between attempts to persist a hold.
func WithRetryBackoff(interval time.Duration, factor, jitter float64, maxInterval time.Duration) PublishOption {
	return func(opts *publishOptions) error {
		if interval <= 0 {
			return fmt.Errorf("retry interval must be positive, got %s", interval)
		}
		opts.backoff.Duration = interval
		opts.backoff.Factor = factor
		opts.backoff.Jitter = jitter
		opts.backoff.Cap = maxInterval
		return nil
	}
}

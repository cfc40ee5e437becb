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

package schedule

import "fmt"

type options struct {
	cacheSize int
}

// Option to apply different options
type Option func(*options) error

func defaultOptions() *options {
	return &options{cacheSize: 1024}
}

// WithCacheSize sets the number of keys whose decoded timers are kept in memory.
func WithCacheSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", size)
		}
		o.cacheSize = size
		return nil
	}
}

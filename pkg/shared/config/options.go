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

package config

import "fmt"

type options struct {
	configName  string
	configPaths []string
	watch       bool
	onReload    []func(EngineConfig)
}

func defaultOptions() *options {
	return &options{
		configName:  DefaultConfigName,
		configPaths: []string{DefaultConfigPath},
		watch:       true,
	}
}

// Option to customize the config loading.
type Option func(*options) error

// WithConfigPaths replaces the directories searched for the config file.
func WithConfigPaths(paths ...string) Option {
	return func(o *options) error {
		if len(paths) == 0 {
			return fmt.Errorf("at least one config path is required")
		}
		o.configPaths = paths
		return nil
	}
}

// WithConfigName sets the config file name without extension.
func WithConfigName(name string) Option {
	return func(o *options) error {
		if name == "" {
			return fmt.Errorf("empty config name")
		}
		o.configName = name
		return nil
	}
}

// WithoutWatch disables reloading on file changes.
func WithoutWatch() Option {
	return func(o *options) error {
		o.watch = false
		return nil
	}
}

// WithOnReload registers a hook called with every successfully reloaded configuration.
func WithOnReload(fn func(EngineConfig)) Option {
	return func(o *options) error {
		o.onReload = append(o.onReload, fn)
		return nil
	}
}

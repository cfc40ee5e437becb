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

// Package builtin provides stateful processors over raw payloads that can be registered by name.
package builtin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/udf"
)

type Builtin struct {
	Name   string
	KWArgs map[string]string
}

// Factory returns the factory of the builtin processor.
func (b *Builtin) Factory() udf.Factory[[]byte, []byte] {
	return func(ctx context.Context) (udf.Processor[[]byte, []byte], error) {
		logging.FromContext(ctx).Infow("Creating a builtin processor", zap.String("name", b.Name), zap.Any("kwargs", b.KWArgs))
		return b.processor()
	}
}

// Register registers the builtin processor as the step.
func (b *Builtin) Register(registry *udf.Registry[[]byte, []byte], step string) error {
	if _, err := b.processor(); err != nil {
		return err
	}
	return registry.Register(step, b.Factory())
}

func (b *Builtin) processor() (udf.Processor[[]byte, []byte], error) {
	switch b.Name {
	case "count":
		return newCount(b.KWArgs)
	case "filter":
		return newFilter(b.KWArgs)
	case "dedup":
		return newDedup(b.KWArgs)
	default:
		return nil, fmt.Errorf("unrecognized function %q", b.Name)
	}
}

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

package builtin

import (
	"context"
	"fmt"

	"github.com/numaproj/stateful/pkg/shared/expr"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/udf"
)

type filter struct {
	program *expr.Program
}

func newFilter(args map[string]string) (udf.Processor[[]byte, []byte], error) {
	expression, existing := args["expression"]
	if !existing {
		return nil, fmt.Errorf("missing \"expression\"")
	}
	program, err := expr.Compile(expression)
	if err != nil {
		return nil, err
	}
	f := filter{program: program}
	return &udf.Funcs[[]byte, []byte]{Process: f.process}, nil
}

func (f filter) process(ctx context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
	ok, err := f.program.EvalBool(pc.Value())
	if err != nil {
		logging.FromContext(ctx).Errorf("Filter function apply got an error: %v", err)
		return nil
	}
	if ok {
		pc.Output(pc.Value())
	}
	return nil
}

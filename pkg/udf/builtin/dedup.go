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
	"github.com/numaproj/stateful/pkg/state"
	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/udf"
)

const dedupExpireTimerID = "dedup-expire"

// dedup forwards the first element of every id within a (key, window) and drops the rest. The ids seen are
// released when the watermark passes the end of the window.
type dedup struct {
	id   *expr.Program
	seen state.BagTag[string]
}

func newDedup(args map[string]string) (udf.Processor[[]byte, []byte], error) {
	expression, existing := args["id"]
	if !existing {
		return nil, fmt.Errorf("missing \"id\"")
	}
	program, err := expr.Compile(expression)
	if err != nil {
		return nil, err
	}
	d := &dedup{id: program, seen: state.MakeBagTag[string]("dedup-seen")}
	return &udf.Funcs[[]byte, []byte]{Process: d.process, Timer: d.onTimer}, nil
}

func (d *dedup) process(ctx context.Context, pc *udf.ProcessContext[[]byte, []byte]) error {
	id, err := d.id.EvalString(pc.Value())
	if err != nil {
		logging.FromContext(ctx).Errorf("Dedup function failed to extract the id: %v", err)
		return nil
	}
	seen, err := state.Bag(pc.State(), d.seen)
	if err != nil {
		return err
	}
	if seen.IsEmpty() {
		end := pc.Window().EndTime()
		if err := pc.Timers().Set(dedupExpireTimerID, "", timers.EventTime, end, end); err != nil {
			return err
		}
	}
	for _, s := range seen.Read() {
		if s == id {
			return nil
		}
	}
	seen.Add(id)
	pc.Output(pc.Value())
	return nil
}

func (d *dedup) onTimer(_ context.Context, tc *udf.TimerContext[[]byte]) error {
	seen, err := state.Bag(tc.State(), d.seen)
	if err != nil {
		return err
	}
	seen.Clear()
	return nil
}

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

package isb

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/numaproj/stateful/pkg/window"
)

type windowRecord struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type paneRecord struct {
	Index   int64  `json:"index"`
	IsFirst bool   `json:"isFirst"`
	IsLast  bool   `json:"isLast"`
	Timing  string `json:"timing"`
}

type elementRecord[V any] struct {
	Value     V              `json:"value"`
	EventTime int64          `json:"eventTime"`
	Windows   []windowRecord `json:"windows"`
	Pane      paneRecord     `json:"pane"`
}

// MarshalElement encodes an element into the JSON envelope written to external buffers. Times are kept in
// epoch milliseconds.
func MarshalElement[V any](e WindowedElement[V]) ([]byte, error) {
	rec := elementRecord[V]{
		Value:     e.Value,
		EventTime: e.EventTime.UnixMilli(),
		Windows:   make([]windowRecord, 0, len(e.Windows)),
		Pane: paneRecord{
			Index:   e.Pane.Index,
			IsFirst: e.Pane.IsFirst,
			IsLast:  e.Pane.IsLast,
			Timing:  e.Pane.Timing.String(),
		},
	}
	for _, w := range e.Windows {
		rec.Windows = append(rec.Windows, windowRecord{Start: w.StartTime().UnixMilli(), End: w.EndTime().UnixMilli()})
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal element, %w", err)
	}
	return b, nil
}

// UnmarshalElement decodes an element encoded by MarshalElement.
func UnmarshalElement[V any](b []byte) (WindowedElement[V], error) {
	var rec elementRecord[V]
	if err := json.Unmarshal(b, &rec); err != nil {
		return WindowedElement[V]{}, fmt.Errorf("failed to unmarshal element, %w", err)
	}
	e := WindowedElement[V]{
		Value:     rec.Value,
		EventTime: time.UnixMilli(rec.EventTime),
		Pane: PaneInfo{
			Index:   rec.Pane.Index,
			IsFirst: rec.Pane.IsFirst,
			IsLast:  rec.Pane.IsLast,
			Timing:  parseTiming(rec.Pane.Timing),
		},
	}
	for _, w := range rec.Windows {
		e.Windows = append(e.Windows, window.FromBounds(time.UnixMilli(w.Start), time.UnixMilli(w.End)))
	}
	return e, nil
}

func parseTiming(s string) Timing {
	switch s {
	case "EARLY":
		return TimingEarly
	case "ON_TIME":
		return TimingOnTime
	case "LATE":
		return TimingLate
	default:
		return TimingUnknown
	}
}

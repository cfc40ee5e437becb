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

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/numaproj/stateful/pkg/timers"
	"github.com/numaproj/stateful/pkg/window"
)

// timestamps are persisted at millisecond precision.
type timerRecord struct {
	ID          string        `json:"id"`
	Family      string        `json:"family"`
	Domain      timers.Domain `json:"domain"`
	WindowStart int64         `json:"windowStart"`
	WindowEnd   int64         `json:"windowEnd"`
	Fire        int64         `json:"fire"`
	Output      int64         `json:"output"`
}

type keyRecord struct {
	Key    string        `json:"key"`
	Timers []timerRecord `json:"timers"`
}

// kvKey maps a user key to a key accepted by every backend.
func kvKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func encode(key string, pending []timers.TimerData) ([]byte, error) {
	rec := keyRecord{Key: key, Timers: make([]timerRecord, 0, len(pending))}
	for _, t := range pending {
		w := t.Window()
		rec.Timers = append(rec.Timers, timerRecord{
			ID:          t.TimerID,
			Family:      t.TimerFamilyID,
			Domain:      t.Domain,
			WindowStart: w.StartTime().UnixMilli(),
			WindowEnd:   w.EndTime().UnixMilli(),
			Fire:        t.FireTimestamp.UnixMilli(),
			Output:      t.OutputTimestamp.UnixMilli(),
		})
	}
	return json.Marshal(rec)
}

func decode(b []byte) (string, []timers.TimerData, error) {
	var rec keyRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return "", nil, fmt.Errorf("failed to decode pending timers: %w", err)
	}
	out := make([]timers.TimerData, 0, len(rec.Timers))
	for _, r := range rec.Timers {
		w := window.FromBounds(time.UnixMilli(r.WindowStart).UTC(), time.UnixMilli(r.WindowEnd).UTC())
		t := timers.New(window.NewNamespace(rec.Key, w), r.ID, r.Family, r.Domain,
			time.UnixMilli(r.Fire).UTC(), time.UnixMilli(r.Output).UTC())
		if err := t.Validate(); err != nil {
			return "", nil, err
		}
		out = append(out, t)
	}
	return rec.Key, out, nil
}

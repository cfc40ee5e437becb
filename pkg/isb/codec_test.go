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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/window"
)

func TestMarshalElement(t *testing.T) {
	w := window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(100))
	e := NewWindowedElement("a", time.UnixMilli(99), PaneInfo{Index: 2, IsLast: true, Timing: TimingLate}, w, window.Global())

	b, err := MarshalElement(e)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timing":"LATE"`)

	got, err := UnmarshalElement[string](b)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Value)
	assert.Equal(t, int64(99), got.EventTime.UnixMilli())
	assert.Equal(t, e.Pane, got.Pane)
	require.Len(t, got.Windows, 2)
	assert.True(t, window.Equal(w, got.Windows[0]))
	assert.True(t, window.Equal(window.Global(), got.Windows[1]))
}

func TestUnmarshalElement_Invalid(t *testing.T) {
	_, err := UnmarshalElement[int]([]byte(`{"value":"x"}`))
	assert.Error(t, err)
}

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

package timers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateBuilder_LastActionWins(t *testing.T) {
	b := NewUpdateBuilder()
	b.SetTimer(eventTimer("t1", 10))
	b.SetTimer(eventTimer("t2", 20))
	b.DeletedTimer(eventTimer("t1", 10))
	b.SetTimer(eventTimer("t3", 30))
	b.DeletedTimer(eventTimer("t3", 30))
	b.SetTimer(eventTimer("t3", 35))

	u := b.Build()
	assert.False(t, u.IsEmpty())
	if assert.Len(t, u.Set, 2) {
		assert.Equal(t, "t2", u.Set[0].TimerID)
		assert.Equal(t, "t3", u.Set[1].TimerID)
		assert.Equal(t, int64(35), u.Set[1].FireTimestamp.UnixMilli())
	}
	if assert.Len(t, u.Deleted, 1) {
		assert.Equal(t, "t1", u.Deleted[0].TimerID)
		assert.True(t, u.Deleted[0].Deleted)
	}
}

func TestUpdateBuilder_Empty(t *testing.T) {
	assert.True(t, NewUpdateBuilder().Build().IsEmpty())
}

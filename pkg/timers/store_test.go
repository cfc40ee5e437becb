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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/window"
)

var testNamespace = window.NewNamespace("k1", window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(1000)))

func eventTimer(id string, fire int64) TimerData {
	return New(testNamespace, id, "", EventTime, time.UnixMilli(fire), time.UnixMilli(fire))
}

func ids(mods []Modification) []string {
	var out []string
	for _, m := range mods {
		out = append(out, m.Timer.TimerID)
	}
	return out
}

func TestStore_SetOverridesByIdentity(t *testing.T) {
	s := NewStore(eventTimer("t1", 100))
	assert.Len(t, s.PendingOrdered(EventTime), 1)

	require.NoError(t, s.SetTimer(eventTimer("t1", 40)))
	pending := s.PendingOrdered(EventTime)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(40), pending[0].FireTimestamp.UnixMilli())

	u := s.Update()
	require.Len(t, u.Set, 1)
	assert.Empty(t, u.Deleted)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := NewStore(eventTimer("t1", 100))
	require.NoError(t, s.DeleteTimer(eventTimer("t1", 100)))
	require.NoError(t, s.DeleteTimer(eventTimer("t1", 100)))
	assert.Empty(t, s.PendingOrdered(EventTime))
	assert.Len(t, s.ModifiedSince(EventTime, 0), 1)

	// deleting something that never existed is not an error
	require.NoError(t, s.DeleteTimer(eventTimer("nope", 5)))
	u := s.Update()
	assert.Len(t, u.Deleted, 2)
	assert.True(t, u.Deleted[0].Deleted)
}

func TestStore_ModifiedSinceOrdering(t *testing.T) {
	s := NewStore(eventTimer("seeded", 1))
	mark := s.Mark()
	require.NoError(t, s.SetTimer(eventTimer("a", 60)))
	require.NoError(t, s.SetTimer(eventTimer("b", 40)))
	require.NoError(t, s.SetTimer(eventTimer("c", 60)))
	require.NoError(t, s.SetTimer(New(testNamespace, "p", "", ProcessingTime, time.UnixMilli(10), time.Time{})))

	// seeding is not a modification, ties keep insertion order
	assert.Equal(t, []string{"b", "a", "c"}, ids(s.ModifiedSince(EventTime, mark)))
	assert.Equal(t, []string{"p"}, ids(s.ModifiedSince(ProcessingTime, mark)))

	later := s.Mark()
	require.NoError(t, s.DeleteTimer(eventTimer("a", 60)))
	mods := s.ModifiedSince(EventTime, later)
	require.Len(t, mods, 1)
	assert.True(t, mods[0].Timer.Deleted)
}

func TestStore_Superseded(t *testing.T) {
	s := NewStore()
	t1 := eventTimer("t1", 60)
	assert.False(t, s.Superseded(t1))

	require.NoError(t, s.SetTimer(t1))
	assert.False(t, s.Superseded(t1))

	require.NoError(t, s.SetTimer(eventTimer("t1", 40)))
	assert.True(t, s.Superseded(t1))
	assert.False(t, s.Superseded(eventTimer("t1", 40)))

	require.NoError(t, s.DeleteTimer(eventTimer("t1", 40)))
	assert.True(t, s.Superseded(eventTimer("t1", 40)))
}

func TestStore_FamiliesAreDistinctIdentities(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetTimer(New(testNamespace, "t", "fam-a", EventTime, time.UnixMilli(5), time.Time{})))
	require.NoError(t, s.SetTimer(New(testNamespace, "t", "fam-b", EventTime, time.UnixMilli(6), time.Time{})))
	assert.Len(t, s.PendingOrdered(EventTime), 2)
	next, ok := s.NextPending(EventTime)
	assert.True(t, ok)
	assert.Equal(t, "fam-a", next.TimerFamilyID)
}

func TestStore_RejectsMalformed(t *testing.T) {
	s := NewStore()
	err := s.SetTimer(TimerData{Namespace: testNamespace})
	assert.True(t, errors.Is(err, ErrMalformedTimer))
	err = s.SetTimer(New(window.NewNamespace("", window.Global()), "x", "", EventTime, time.UnixMilli(1), time.Time{}))
	assert.True(t, errors.Is(err, ErrMalformedTimer))
	err = s.DeleteTimer(New(testNamespace, "x", "", Domain(42), time.UnixMilli(1), time.Time{}))
	assert.True(t, errors.Is(err, ErrMalformedTimer))
}

func TestTimerData_Equal(t *testing.T) {
	a := eventTimer("t1", 10)
	b := New(window.NewNamespace("k1", window.NewIntervalWindow(time.UnixMilli(0).UTC(), time.UnixMilli(1000).UTC())),
		"t1", "", EventTime, time.UnixMilli(10).UTC(), time.Time{})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(a.AsDeleted()))
	assert.Equal(t, a.StringKey(), a.AsDeleted().StringKey())
	assert.Equal(t, "k1/0-1000/:t1", a.StringKey())
}

func TestStore_Rollback(t *testing.T) {
	a := eventTimer("a", 10)
	b := eventTimer("b", 20)
	s := NewStore(a)
	require.NoError(t, s.SetTimer(b))
	mark := s.Mark()

	s.Checkpoint()
	require.NoError(t, s.DeleteTimer(a))
	require.NoError(t, s.SetTimer(eventTimer("b", 5)))
	require.NoError(t, s.SetTimer(eventTimer("c", 1)))
	s.Rollback()

	assert.Equal(t, []TimerData{a, b}, s.PendingOrdered(EventTime))
	assert.Empty(t, s.ModifiedSince(EventTime, mark))
	assert.False(t, s.Superseded(a))
	assert.False(t, s.Superseded(b))
	assert.Equal(t, Update{Set: []TimerData{b}}, s.Update())
}

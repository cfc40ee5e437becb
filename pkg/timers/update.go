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

// Update is the net timer change produced by a bundle.
type Update struct {
	Set     []TimerData
	Deleted []TimerData
}

// IsEmpty returns true if the update neither sets nor deletes a timer.
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Deleted) == 0
}

type updateEntry struct {
	timer TimerData
	order int
}

// UpdateBuilder accumulates timer sets and deletes; per identity the last action wins.
type UpdateBuilder struct {
	entries map[string]updateEntry
	next    int
}

// NewUpdateBuilder returns an empty UpdateBuilder.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{entries: make(map[string]updateEntry)}
}

// SetTimer records the timer as set.
func (b *UpdateBuilder) SetTimer(t TimerData) {
	t.Deleted = false
	b.put(t)
}

// DeletedTimer records the timer as deleted.
func (b *UpdateBuilder) DeletedTimer(t TimerData) {
	b.put(t.AsDeleted())
}

func (b *UpdateBuilder) put(t TimerData) {
	b.entries[t.StringKey()] = updateEntry{timer: t, order: b.next}
	b.next++
}

// Build returns the net update ordered by the time of the last action on each identity.
func (b *UpdateBuilder) Build() Update {
	ordered := make([]TimerData, b.next)
	used := make([]bool, b.next)
	for _, e := range b.entries {
		ordered[e.order] = e.timer
		used[e.order] = true
	}
	var u Update
	for i, t := range ordered {
		if !used[i] {
			continue
		}
		if t.Deleted {
			u.Deleted = append(u.Deleted, t)
		} else {
			u.Set = append(u.Set, t)
		}
	}
	return u
}

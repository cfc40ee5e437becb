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

package state

import (
	"sort"
	"strings"
	"time"

	"github.com/numaproj/stateful/pkg/window"
)

type address struct {
	ns  string
	tag string
}

type entry struct {
	ns window.Namespace
	c  cell
}

// Snapshot is an immutable view of every cell of a key as of a commit. A Snapshot is never mutated once
// it is allocated in the Arena.
type Snapshot struct {
	key        string
	generation uint64
	origin     uint64
	cells      map[address]entry
	hold       time.Time
	held       bool
	// dataHold is the earliest hold of the cells addressed by user tags.
	dataHold time.Time
	dataHeld bool
}

func newSnapshot(key string, generation, origin uint64, cells map[address]entry) *Snapshot {
	s := &Snapshot{
		key:        key,
		generation: generation,
		origin:     origin,
		cells:      cells,
	}
	for a, e := range cells {
		hc, ok := e.c.(*holdCell)
		if !ok || !hc.set {
			continue
		}
		if !s.held || hc.ts.Before(s.hold) {
			s.hold = hc.ts
			s.held = true
		}
		if strings.HasPrefix(a.tag, systemPrefix) {
			continue
		}
		if !s.dataHeld || hc.ts.Before(s.dataHold) {
			s.dataHold = hc.ts
			s.dataHeld = true
		}
	}
	return s
}

// emptySnapshot is the baseline of a key that never committed.
func emptySnapshot(key string) *Snapshot {
	return newSnapshot(key, 0, 0, map[address]entry{})
}

// Key returns the key the snapshot belongs to.
func (s *Snapshot) Key() string {
	return s.key
}

// Generation returns the arena generation of the snapshot, zero for the empty baseline.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Origin returns the generation that was current for the key when the bundle producing this snapshot
// started.
func (s *Snapshot) Origin() uint64 {
	return s.origin
}

// EarliestWatermarkHold returns the minimum timestamp held by any hold cell of the snapshot.
func (s *Snapshot) EarliestWatermarkHold() (time.Time, bool) {
	return s.hold, s.held
}

// EarliestDataHold returns the minimum timestamp held by the hold cells of user tags, the holds kept for
// timers are left out.
func (s *Snapshot) EarliestDataHold() (time.Time, bool) {
	return s.dataHold, s.dataHeld
}

// Len returns the number of non-empty cells.
func (s *Snapshot) Len() int {
	return len(s.cells)
}

// IsEmpty returns true if the snapshot holds no cell.
func (s *Snapshot) IsEmpty() bool {
	return len(s.cells) == 0
}

// Namespaces returns the namespaces that have at least one cell, ordered by window then key.
func (s *Snapshot) Namespaces() []window.Namespace {
	seen := make(map[string]window.Namespace)
	for a, e := range s.cells {
		seen[a.ns] = e.ns
	}
	out := make([]window.Namespace, 0, len(seen))
	for _, ns := range seen {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := window.Compare(out[i].Window, out[j].Window); c != 0 {
			return c < 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *Snapshot) lookup(ns window.Namespace, tagID string) (cell, bool) {
	e, ok := s.cells[address{ns: ns.StringKey(), tag: tagID}]
	if !ok {
		return nil, false
	}
	return e.c, true
}

// ReadValue reads a value cell from the snapshot.
func ReadValue[T any](s *Snapshot, ns window.Namespace, tag ValueTag[T]) (T, bool) {
	var zero T
	c, ok := s.lookup(ns, tag.ID())
	if !ok {
		return zero, false
	}
	vc, ok := c.(*valueCell[T])
	if !ok || !vc.set {
		return zero, false
	}
	return vc.value, true
}

// ReadBag reads a bag cell from the snapshot.
func ReadBag[T any](s *Snapshot, ns window.Namespace, tag BagTag[T]) []T {
	c, ok := s.lookup(ns, tag.ID())
	if !ok {
		return nil
	}
	bc, ok := c.(*bagCell[T])
	if !ok {
		return nil
	}
	out := make([]T, len(bc.items))
	copy(out, bc.items)
	return out
}

// ReadHold reads a hold cell from the snapshot.
func ReadHold(s *Snapshot, ns window.Namespace, tag HoldTag) (time.Time, bool) {
	c, ok := s.lookup(ns, tag.ID())
	if !ok {
		return time.Time{}, false
	}
	hc, ok := c.(*holdCell)
	if !ok || !hc.set {
		return time.Time{}, false
	}
	return hc.ts, true
}

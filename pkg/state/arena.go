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
	"fmt"
	"sort"
	"sync"

	"go.uber.org/atomic"
)

// Arena holds the immutable snapshots of every key and the index of the current generation per key.
// A commit allocates a new snapshot, it becomes the key's baseline only once it is advanced.
type Arena struct {
	sync.RWMutex
	generation *atomic.Uint64
	snapshots  map[uint64]*Snapshot
	current    map[string]uint64
	// allocated tracks the generations of a key that are held by the arena, current included.
	allocated map[string]map[uint64]struct{}
}

// NewArena returns an empty Arena.
func NewArena() *Arena {
	return &Arena{
		generation: atomic.NewUint64(0),
		snapshots:  make(map[uint64]*Snapshot),
		current:    make(map[string]uint64),
		allocated:  make(map[string]map[uint64]struct{}),
	}
}

// Current returns the current snapshot of the key, the empty baseline if the key never committed.
func (a *Arena) Current(key string) *Snapshot {
	a.RLock()
	defer a.RUnlock()
	gen, ok := a.current[key]
	if !ok {
		return emptySnapshot(key)
	}
	return a.snapshots[gen]
}

func (a *Arena) allocate(key string, origin uint64, cells map[address]entry) *Snapshot {
	s := newSnapshot(key, a.generation.Inc(), origin, cells)
	a.Lock()
	defer a.Unlock()
	a.snapshots[s.generation] = s
	if _, ok := a.allocated[key]; !ok {
		a.allocated[key] = make(map[uint64]struct{})
	}
	a.allocated[key][s.generation] = struct{}{}
	return s
}

// Advance makes the snapshot the current generation of its key and releases every other generation of
// the key. Advancing the current snapshot again is a no-op. It fails with ErrStaleGeneration if the key
// moved since the snapshot's bundle started.
func (a *Arena) Advance(s *Snapshot) error {
	a.Lock()
	defer a.Unlock()
	cur := a.current[s.key]
	if cur == s.generation {
		return nil
	}
	if cur != s.origin {
		return fmt.Errorf("%w: key %q is at generation %d, snapshot %d started from %d", ErrStaleGeneration, s.key, cur, s.generation, s.origin)
	}
	if s.generation == 0 {
		// the empty baseline, the key has nothing to keep.
		a.dropLocked(s.key)
		return nil
	}
	if _, ok := a.snapshots[s.generation]; !ok {
		return fmt.Errorf("%w: generation %d of key %q was discarded", ErrDiscarded, s.generation, s.key)
	}
	a.current[s.key] = s.generation
	for gen := range a.allocated[s.key] {
		if gen != s.generation {
			delete(a.snapshots, gen)
			delete(a.allocated[s.key], gen)
		}
	}
	return nil
}

// Discard releases the generations, the current generation of a key is never released.
func (a *Arena) Discard(generations ...uint64) {
	a.Lock()
	defer a.Unlock()
	for _, gen := range generations {
		s, ok := a.snapshots[gen]
		if !ok || a.current[s.key] == gen {
			continue
		}
		delete(a.snapshots, gen)
		delete(a.allocated[s.key], gen)
	}
}

// Drop forgets the key altogether.
func (a *Arena) Drop(key string) {
	a.Lock()
	defer a.Unlock()
	a.dropLocked(key)
}

func (a *Arena) dropLocked(key string) {
	for gen := range a.allocated[key] {
		delete(a.snapshots, gen)
	}
	delete(a.allocated, key)
	delete(a.current, key)
}

// Keys returns the keys with a current generation, sorted.
func (a *Arena) Keys() []string {
	a.RLock()
	defer a.RUnlock()
	keys := make([]string, 0, len(a.current))
	for k := range a.current {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of snapshots held by the arena.
func (a *Arena) Len() int {
	a.RLock()
	defer a.RUnlock()
	return len(a.snapshots)
}

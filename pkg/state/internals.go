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

	"github.com/numaproj/stateful/pkg/window"
)

// Internals is the mutable state of one key for the span of one bundle. Every access copies the
// committed cell into an overlay, the committed snapshot is left untouched until Commit freezes the
// overlay into a new snapshot.
type Internals struct {
	arena     *Arena
	key       string
	origin    uint64
	committed *Snapshot
	overlay   map[address]*entry
	allocated []uint64
	discarded bool
	// journal is the overlay as it was at the open checkpoint, per address touched since. Nil when no
	// checkpoint is open.
	journal map[address]journaled
}

// journaled is an overlay entry saved by a checkpoint. e is nil if the address was not in the overlay.
type journaled struct {
	e    *entry
	c    cell
	copy cell
}

// NewInternals returns the Internals of the key layered over its current snapshot in the arena.
func NewInternals(arena *Arena, key string) *Internals {
	base := arena.Current(key)
	return &Internals{
		arena:     arena,
		key:       key,
		origin:    base.Generation(),
		committed: base,
		overlay:   make(map[address]*entry),
	}
}

// Key returns the key of the Internals.
func (in *Internals) Key() string {
	return in.key
}

// Scope binds the Internals to a namespace.
func (in *Internals) Scope(ns window.Namespace) *Scoped {
	return &Scoped{in: in, ns: ns}
}

func (in *Internals) access(ns window.Namespace, tag Tag, create func() cell) (cell, error) {
	if in.discarded {
		return nil, ErrDiscarded
	}
	if ns.Key != in.key {
		return nil, fmt.Errorf("namespace key %q does not belong to state of key %q", ns.Key, in.key)
	}
	addr := address{ns: ns.StringKey(), tag: tag.ID()}
	in.record(addr)
	if e, ok := in.overlay[addr]; ok {
		if e.c.kind() != tag.Kind() {
			return nil, fmt.Errorf("%w: tag %q is a %s cell, accessed as %s", ErrTagKindMismatch, tag.ID(), e.c.kind(), tag.Kind())
		}
		return e.c, nil
	}
	var c cell
	if e, ok := in.committed.cells[addr]; ok {
		if e.c.kind() != tag.Kind() {
			return nil, fmt.Errorf("%w: tag %q is a %s cell, accessed as %s", ErrTagKindMismatch, tag.ID(), e.c.kind(), tag.Kind())
		}
		c = e.c.clone()
	} else {
		c = create()
	}
	in.overlay[addr] = &entry{ns: ns, c: c}
	return c, nil
}

// Exists returns true if the namespace has a non-empty cell for the tag id, it never copies the cell.
func (in *Internals) Exists(ns window.Namespace, tagID string) bool {
	addr := address{ns: ns.StringKey(), tag: tagID}
	if e, ok := in.overlay[addr]; ok {
		return !e.c.isEmpty()
	}
	e, ok := in.committed.cells[addr]
	return ok && !e.c.isEmpty()
}

// ClearNamespace clears every cell of the namespace.
func (in *Internals) ClearNamespace(ns window.Namespace) {
	key := ns.StringKey()
	for addr, e := range in.committed.cells {
		if addr.ns == key {
			in.record(addr)
			if _, ok := in.overlay[addr]; !ok {
				in.overlay[addr] = &entry{ns: e.ns, c: e.c.cleared()}
			}
		}
	}
	for addr, e := range in.overlay {
		if addr.ns == key {
			in.record(addr)
			e.c = e.c.cleared()
		}
	}
}

// Dirty returns true if any cell was accessed since the last commit.
func (in *Internals) Dirty() bool {
	return len(in.overlay) > 0
}

// Committed returns the last committed snapshot, the key's baseline if nothing was committed yet.
func (in *Internals) Committed() *Snapshot {
	return in.committed
}

// Commit freezes the overlay into a new snapshot allocated in the arena. The snapshot does not become the
// key's current generation until the arena advances it. Handles returned before the commit must not be
// used after it. Committing a clean overlay returns the last committed snapshot.
func (in *Internals) Commit() (*Snapshot, error) {
	if in.discarded {
		return nil, ErrDiscarded
	}
	if !in.Dirty() {
		return in.committed, nil
	}
	cells := make(map[address]entry, len(in.committed.cells)+len(in.overlay))
	for addr, e := range in.committed.cells {
		cells[addr] = e
	}
	for addr, e := range in.overlay {
		if e.c.isEmpty() {
			delete(cells, addr)
			continue
		}
		cells[addr] = entry{ns: e.ns, c: e.c.clone()}
	}
	s := in.arena.allocate(in.key, in.origin, cells)
	in.allocated = append(in.allocated, s.generation)
	in.committed = s
	in.overlay = make(map[address]*entry)
	in.journal = nil
	return s, nil
}

// Discard drops the overlay and every generation committed by this Internals. The key's current
// generation in the arena is left as it was.
func (in *Internals) Discard() {
	if in.discarded {
		return
	}
	in.discarded = true
	in.overlay = nil
	in.journal = nil
	in.arena.Discard(in.allocated...)
	in.allocated = nil
}

// Checkpoint opens a checkpoint of the overlay, replacing any open one. Rollback reverts every cell
// accessed after it, Release keeps them. A commit closes the checkpoint.
func (in *Internals) Checkpoint() {
	in.journal = make(map[address]journaled)
}

// Rollback reverts the overlay to the open checkpoint and closes it. Handles on cells first created
// after the checkpoint must not be used after a rollback.
func (in *Internals) Rollback() {
	for addr, j := range in.journal {
		if j.e == nil {
			delete(in.overlay, addr)
			continue
		}
		j.c.restore(j.copy)
		j.e.c = j.c
		in.overlay[addr] = j.e
	}
	in.journal = nil
}

// Release closes the open checkpoint keeping the changes made since.
func (in *Internals) Release() {
	in.journal = nil
}

// record saves the overlay entry of the address the first time it is touched after a checkpoint.
func (in *Internals) record(addr address) {
	if in.journal == nil {
		return
	}
	if _, ok := in.journal[addr]; ok {
		return
	}
	e, ok := in.overlay[addr]
	if !ok {
		in.journal[addr] = journaled{}
		return
	}
	in.journal[addr] = journaled{e: e, c: e.c, copy: e.c.clone()}
}

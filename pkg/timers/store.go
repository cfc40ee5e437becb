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
	"github.com/google/btree"
)

const btreeDegree = 8

// Modification is a timer set or delete recorded by the Store, Seq is the logical mark at which it happened.
type Modification struct {
	Timer TimerData
	Seq   int64
}

func lessModification(a, b Modification) bool {
	if !a.Timer.FireTimestamp.Equal(b.Timer.FireTimestamp) {
		return a.Timer.FireTimestamp.Before(b.Timer.FireTimestamp)
	}
	return a.Seq < b.Seq
}

// Store holds the timers of one key for the duration of one bundle. It is seeded with the timers that were
// pending before the bundle started and records every set and delete made during the bundle, so that
// reentrant modifications can be detected while another timer is being processed.
//
// A Store is not safe for concurrent use, a key is only ever processed by one bundle at a time.
type Store struct {
	seq int64
	// live is the pending timer per identity.
	live map[string]Modification
	// pending orders the live timers per domain.
	pending map[Domain]*btree.BTreeG[Modification]
	// modifiedIDs is the latest modification per identity made in this bundle.
	modifiedIDs map[string]Modification
	// modified is the append-only log of modifications per domain, ordered by fire timestamp.
	modified map[Domain]*btree.BTreeG[Modification]
	update   *UpdateBuilder
	// checkpoint is nil when no checkpoint is open.
	checkpoint *checkpoint
}

type checkpoint struct {
	mark  int64
	saved map[string]savedTimer
}

// savedTimer is the state of one identity at the checkpoint.
type savedTimer struct {
	live        Modification
	hasLive     bool
	modified    Modification
	hasModified bool
	update      updateEntry
	hasUpdate   bool
}

// NewStore returns a Store seeded with the given pending timers, a later seed of the same identity wins.
// Seeding is not recorded as a modification.
func NewStore(pending ...TimerData) *Store {
	s := &Store{
		live:        make(map[string]Modification),
		pending:     make(map[Domain]*btree.BTreeG[Modification]),
		modifiedIDs: make(map[string]Modification),
		modified:    make(map[Domain]*btree.BTreeG[Modification]),
		update:      NewUpdateBuilder(),
	}
	for _, d := range Domains {
		s.pending[d] = btree.NewG[Modification](btreeDegree, lessModification)
		s.modified[d] = btree.NewG[Modification](btreeDegree, lessModification)
	}
	for _, t := range pending {
		if t.Deleted || !t.Domain.Valid() {
			continue
		}
		s.seq++
		s.removeLive(t.StringKey())
		s.insertLive(Modification{Timer: t, Seq: s.seq})
	}
	return s
}

// Mark returns the current logical mark. Modifications made after this call have a greater Seq.
func (s *Store) Mark() int64 {
	return s.seq
}

// SetTimer inserts the timer, overriding any pending timer with the same identity.
func (s *Store) SetTimer(t TimerData) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Deleted = false
	s.record(t.StringKey())
	s.seq++
	m := Modification{Timer: t, Seq: s.seq}
	s.removeLive(t.StringKey())
	s.insertLive(m)
	s.modifiedIDs[t.StringKey()] = m
	s.modified[t.Domain].ReplaceOrInsert(m)
	s.update.SetTimer(t)
	return nil
}

// DeleteTimer removes the timer with the same identity. Deleting an absent timer is a no-op apart from
// being reported in the Update.
func (s *Store) DeleteTimer(t TimerData) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id := t.StringKey()
	s.record(id)
	if latest, ok := s.modifiedIDs[id]; ok && latest.Timer.Deleted {
		return nil
	}
	s.seq++
	m := Modification{Timer: t.AsDeleted(), Seq: s.seq}
	s.removeLive(id)
	s.modifiedIDs[id] = m
	s.modified[t.Domain].ReplaceOrInsert(m)
	s.update.DeletedTimer(t)
	return nil
}

// ModifiedSince returns every timer of the domain set or deleted after the mark, ascending by fire
// timestamp with ties broken by insertion order. The returned slice is a snapshot.
func (s *Store) ModifiedSince(d Domain, mark int64) []Modification {
	tree, ok := s.modified[d]
	if !ok {
		return nil
	}
	var out []Modification
	tree.Ascend(func(m Modification) bool {
		if m.Seq > mark {
			out = append(out, m)
		}
		return true
	})
	return out
}

// LatestModification returns the last modification of the identity made in this bundle.
func (s *Store) LatestModification(id string) (Modification, bool) {
	m, ok := s.modifiedIDs[id]
	return m, ok
}

// Lookup returns the pending timer of the identity.
func (s *Store) Lookup(id string) (TimerData, bool) {
	m, ok := s.live[id]
	return m.Timer, ok
}

// Superseded reports whether the timer's identity was modified in this bundle to a different datum, i.e.
// a newer set or a delete replaced it.
func (s *Store) Superseded(t TimerData) bool {
	m, ok := s.modifiedIDs[t.StringKey()]
	return ok && !m.Timer.Equal(t)
}

// PendingOrdered returns the pending timers of the domain ascending by fire timestamp.
func (s *Store) PendingOrdered(d Domain) []TimerData {
	tree, ok := s.pending[d]
	if !ok {
		return nil
	}
	out := make([]TimerData, 0, tree.Len())
	tree.Ascend(func(m Modification) bool {
		out = append(out, m.Timer)
		return true
	})
	return out
}

// NextPending returns the earliest pending timer of the domain.
func (s *Store) NextPending(d Domain) (TimerData, bool) {
	tree, ok := s.pending[d]
	if !ok {
		return TimerData{}, false
	}
	m, ok := tree.Min()
	return m.Timer, ok
}

// Update returns the net timer update of the bundle so far.
func (s *Store) Update() Update {
	return s.update.Build()
}

// Checkpoint opens a checkpoint, replacing any open one. Rollback reverts every set and delete made
// after it, Release keeps them.
func (s *Store) Checkpoint() {
	s.checkpoint = &checkpoint{mark: s.seq, saved: make(map[string]savedTimer)}
}

// Rollback reverts the Store to the open checkpoint and closes it.
func (s *Store) Rollback() {
	cp := s.checkpoint
	if cp == nil {
		return
	}
	s.checkpoint = nil
	for _, tree := range s.modified {
		var later []Modification
		tree.Ascend(func(m Modification) bool {
			if m.Seq > cp.mark {
				later = append(later, m)
			}
			return true
		})
		for _, m := range later {
			tree.Delete(m)
		}
	}
	for id, saved := range cp.saved {
		s.removeLive(id)
		if saved.hasLive {
			s.insertLive(saved.live)
		}
		if saved.hasModified {
			s.modifiedIDs[id] = saved.modified
		} else {
			delete(s.modifiedIDs, id)
		}
		if saved.hasUpdate {
			s.update.entries[id] = saved.update
		} else {
			delete(s.update.entries, id)
		}
	}
}

// Release closes the open checkpoint keeping the changes made since.
func (s *Store) Release() {
	s.checkpoint = nil
}

func (s *Store) record(id string) {
	cp := s.checkpoint
	if cp == nil {
		return
	}
	if _, ok := cp.saved[id]; ok {
		return
	}
	var saved savedTimer
	saved.live, saved.hasLive = s.live[id]
	saved.modified, saved.hasModified = s.modifiedIDs[id]
	saved.update, saved.hasUpdate = s.update.entries[id]
	cp.saved[id] = saved
}

func (s *Store) insertLive(m Modification) {
	s.live[m.Timer.StringKey()] = m
	s.pending[m.Timer.Domain].ReplaceOrInsert(m)
}

func (s *Store) removeLive(id string) {
	old, ok := s.live[id]
	if !ok {
		return
	}
	delete(s.live, id)
	s.pending[old.Timer.Domain].Delete(old)
}

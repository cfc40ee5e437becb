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

// Package schedule persists the pending timers of every key and tells which keys have timers due.
//
// The kv store is the source of truth. Decoded timers of recently used keys are cached, and an in memory
// index of (fire timestamp, key) per domain answers DueKeys without touching the store. The index only
// knows keys applied by this process or loaded by Restore.
//
// Operations on the same key must not run concurrently, the caller processes a key on one worker.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/timers"
)

type dueEntry struct {
	fire time.Time
	key  string
	id   string
}

func lessDue(a, b dueEntry) bool {
	if !a.fire.Equal(b.fire) {
		return a.fire.Before(b.fire)
	}
	if a.key != b.key {
		return a.key < b.key
	}
	return a.id < b.id
}

// Schedule is the durable set of pending timers.
type Schedule struct {
	store kvs.KVStorer
	lock  sync.Mutex
	cache *lru.Cache[string, []timers.TimerData]
	index map[timers.Domain]*btree.BTreeG[dueEntry]
	log   *zap.SugaredLogger
}

// New returns a Schedule persisting into store.
func New(ctx context.Context, store kvs.KVStorer, opts ...Option) (*Schedule, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	cache, err := lru.New[string, []timers.TimerData](o.cacheSize)
	if err != nil {
		return nil, err
	}
	s := &Schedule{
		store: store,
		cache: cache,
		index: make(map[timers.Domain]*btree.BTreeG[dueEntry]),
		log:   logging.FromContext(ctx).With("store", store.GetStoreName()),
	}
	for _, d := range timers.Domains {
		s.index[d] = btree.NewG[dueEntry](8, lessDue)
	}
	return s, nil
}

func sortTimers(ts []timers.TimerData) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].FireTimestamp.Equal(ts[j].FireTimestamp) {
			return ts[i].FireTimestamp.Before(ts[j].FireTimestamp)
		}
		return ts[i].StringKey() < ts[j].StringKey()
	})
}

// Pending returns every pending timer of key ordered by fire timestamp.
func (s *Schedule) Pending(ctx context.Context, key string) ([]timers.TimerData, error) {
	ts, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return append([]timers.TimerData(nil), ts...), nil
}

// Due returns the pending timers of key in domain firing at or before upTo, ascending.
func (s *Schedule) Due(ctx context.Context, key string, domain timers.Domain, upTo time.Time) ([]timers.TimerData, error) {
	ts, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	var due []timers.TimerData
	for _, t := range ts {
		if t.Domain == domain && !t.FireTimestamp.After(upTo) {
			due = append(due, t)
		}
	}
	return due, nil
}

// DueKeys returns the keys having a timer in domain firing at or before upTo, by earliest fire timestamp.
func (s *Schedule) DueKeys(domain timers.Domain, upTo time.Time) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	idx, ok := s.index[domain]
	if !ok {
		return nil
	}
	var keys []string
	seen := make(map[string]struct{})
	idx.Ascend(func(e dueEntry) bool {
		if e.fire.After(upTo) {
			return false
		}
		if _, ok := seen[e.key]; !ok {
			seen[e.key] = struct{}{}
			keys = append(keys, e.key)
		}
		return true
	})
	return keys
}

// Apply persists the outcome of a bundle of key: the delivered timers are removed, then the update's
// deletes and sets are applied. A delivered timer set again by the bundle stays pending.
func (s *Schedule) Apply(ctx context.Context, key string, delivered []timers.TimerData, update timers.Update) error {
	if len(delivered) == 0 && update.IsEmpty() {
		return nil
	}
	old, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	byID := make(map[string]timers.TimerData, len(old))
	for _, t := range old {
		byID[t.StringKey()] = t
	}
	for _, t := range delivered {
		delete(byID, t.StringKey())
	}
	for _, t := range update.Deleted {
		delete(byID, t.StringKey())
	}
	for _, t := range update.Set {
		if t.Namespace.Key != key {
			return fmt.Errorf("timer %s does not belong to key %q", t, key)
		}
		t.Deleted = false
		byID[t.StringKey()] = t
	}
	next := make([]timers.TimerData, 0, len(byID))
	for _, t := range byID {
		next = append(next, t)
	}
	sortTimers(next)

	if len(next) == 0 {
		if err := s.store.DeleteKey(ctx, kvKey(key)); err != nil && !errors.Is(err, kvs.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete pending timers of %q: %w", key, err)
		}
	} else {
		b, err := encode(key, next)
		if err != nil {
			return err
		}
		if err := s.store.PutKV(ctx, kvKey(key), b); err != nil {
			return fmt.Errorf("failed to persist pending timers of %q: %w", key, err)
		}
	}
	s.replace(key, old, next)
	s.log.Debugw("Applied timer update", zap.String("key", key), zap.Int("pending", len(next)),
		zap.Int("delivered", len(delivered)), zap.Int("set", len(update.Set)), zap.Int("deleted", len(update.Deleted)))
	return nil
}

// Restore rebuilds the index from every key in the store. It returns the number of pending timers.
func (s *Schedule) Restore(ctx context.Context) (int, error) {
	kvKeys, err := s.store.GetAllKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending timers: %w", err)
	}
	total := 0
	for _, k := range kvKeys {
		b, err := s.store.GetValue(ctx, k)
		if err != nil {
			if errors.Is(err, kvs.ErrKeyNotFound) {
				continue
			}
			return total, err
		}
		key, ts, err := decode(b)
		if err != nil {
			return total, fmt.Errorf("entry %s: %w", k, err)
		}
		sortTimers(ts)
		s.lock.Lock()
		prev, _ := s.cache.Peek(key)
		s.lock.Unlock()
		s.replace(key, prev, ts)
		total += len(ts)
	}
	s.log.Infow("Restored pending timers", zap.Int("keys", len(kvKeys)), zap.Int("timers", total))
	return total, nil
}

// Keys returns the keys known to have pending timers, sorted.
func (s *Schedule) Keys() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	seen := make(map[string]struct{})
	for _, idx := range s.index {
		idx.Ascend(func(e dueEntry) bool {
			seen[e.key] = struct{}{}
			return true
		})
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Schedule) load(ctx context.Context, key string) ([]timers.TimerData, error) {
	s.lock.Lock()
	ts, ok := s.cache.Get(key)
	s.lock.Unlock()
	if ok {
		return ts, nil
	}
	b, err := s.store.GetValue(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, kvs.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load pending timers of %q: %w", key, err)
	}
	stored, ts, err := decode(b)
	if err != nil {
		return nil, err
	}
	if stored != key {
		return nil, fmt.Errorf("pending timers of %q are stored for %q", key, stored)
	}
	sortTimers(ts)
	s.lock.Lock()
	s.cache.Add(key, ts)
	s.lock.Unlock()
	return ts, nil
}

func (s *Schedule) replace(key string, old, next []timers.TimerData) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, t := range old {
		s.index[t.Domain].Delete(dueEntry{fire: t.FireTimestamp, key: key, id: t.StringKey()})
	}
	for _, t := range next {
		s.index[t.Domain].ReplaceOrInsert(dueEntry{fire: t.FireTimestamp, key: key, id: t.StringKey()})
	}
	if len(next) == 0 {
		s.cache.Remove(key)
		return
	}
	s.cache.Add(key, next)
}

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

// Package publish publishes the watermark hold of every key and derives the output watermark from them.
package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/watermark/wmb"
)

// HoldPublisher keeps the latest hold of every key, in memory and in the hold bucket.
type HoldPublisher struct {
	store kvs.KVStorer
	lock  sync.RWMutex
	holds map[string]time.Time
	seq   atomic.Int64
	opts  *publishOptions
	log   *zap.SugaredLogger
}

// NewHoldPublisher returns a HoldPublisher writing to store.
func NewHoldPublisher(ctx context.Context, store kvs.KVStorer, inputOpts ...PublishOption) (*HoldPublisher, error) {
	opts := defaultOptions()
	for _, opt := range inputOpts {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}
	return &HoldPublisher{
		store: store,
		holds: make(map[string]time.Time),
		opts:  opts,
		log:   logging.FromContext(ctx).With("holdStore", store.GetStoreName()),
	}, nil
}

func storeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// PublishHold records the hold of key, a nil hold releases it. The write is retried until it succeeds or
// ctx is done, the in memory view only changes after a successful write.
func (p *HoldPublisher) PublishHold(ctx context.Context, key string, hold *time.Time) error {
	var value []byte
	if hold != nil {
		var err error
		value, err = wmb.NewWMB(p.seq.Inc(), *hold).EncodeToBytes()
		if err != nil {
			return fmt.Errorf("failed to encode hold of %q: %w", key, err)
		}
	}

	ctxClosedErr := wait.ExponentialBackoff(p.opts.backoff, func() (done bool, err error) {
		var writeErr error
		if hold == nil {
			writeErr = p.store.DeleteKey(ctx, storeKey(key))
			if errors.Is(writeErr, kvs.ErrKeyNotFound) {
				writeErr = nil
			}
		} else {
			writeErr = p.store.PutKV(ctx, storeKey(key), value)
		}
		if writeErr == nil {
			return true, nil
		}
		p.log.Errorw("Unable to publish hold", zap.String("key", key), zap.Error(writeErr))
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	})
	if ctxClosedErr != nil {
		return fmt.Errorf("failed to publish hold of %q: %w", key, ctxClosedErr)
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if hold == nil {
		delete(p.holds, key)
		p.log.Debugw("Released hold", zap.String("key", key))
		return nil
	}
	p.holds[key] = hold.UTC()
	p.log.Debugw("Published hold", zap.String("key", key), zap.Int64("hold", hold.UnixMilli()))
	return nil
}

// Hold returns the published hold of key.
func (p *HoldPublisher) Hold(key string) (time.Time, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	h, ok := p.holds[key]
	return h, ok
}

// EarliestHold returns the earliest hold across all keys, nil when no key holds the watermark.
func (p *HoldPublisher) EarliestHold() *time.Time {
	p.lock.RLock()
	defer p.lock.RUnlock()
	var earliest *time.Time
	for _, h := range p.holds {
		if earliest == nil || h.Before(*earliest) {
			h := h
			earliest = &h
		}
	}
	return earliest
}

// OutputWatermark returns the input watermark lowered to the earliest hold.
func (p *HoldPublisher) OutputWatermark(input wmb.Watermark) wmb.Watermark {
	return input.HeldBy(p.EarliestHold())
}

// HeldKeys returns the keys holding the watermark, sorted.
func (p *HoldPublisher) HeldKeys() []string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	keys := make([]string, 0, len(p.holds))
	for k := range p.holds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restore loads the holds from the store. It returns the number of holds restored.
func (p *HoldPublisher) Restore(ctx context.Context) (int, error) {
	keys, err := p.store.GetAllKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list holds: %w", err)
	}
	restored := make(map[string]time.Time, len(keys))
	var maxSeq int64
	for _, k := range keys {
		b, err := p.store.GetValue(ctx, k)
		if err != nil {
			if errors.Is(err, kvs.ErrKeyNotFound) {
				continue
			}
			return 0, err
		}
		w, err := wmb.DecodeToWMB(b)
		if err != nil {
			return 0, fmt.Errorf("failed to decode hold %s: %w", k, err)
		}
		key, err := base64.RawURLEncoding.DecodeString(k)
		if err != nil {
			return 0, fmt.Errorf("unexpected hold key %s: %w", k, err)
		}
		restored[string(key)] = w.HoldTime()
		if w.Seq > maxSeq {
			maxSeq = w.Seq
		}
	}
	p.lock.Lock()
	p.holds = restored
	p.lock.Unlock()
	if maxSeq > p.seq.Load() {
		p.seq.Store(maxSeq)
	}
	p.log.Infow("Restored holds", zap.Int("holds", len(restored)))
	return len(restored), nil
}

// Close closes the hold store.
func (p *HoldPublisher) Close() error {
	p.store.Close()
	return nil
}

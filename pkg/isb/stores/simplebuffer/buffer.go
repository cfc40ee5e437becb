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

/* package simplebuffer is an in memory ring buffer that implements the isb BufferWriter. This should be used only for local
development and testing purposes. The locking implementation is very coarse.
*/

package simplebuffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/numaproj/stateful/pkg/isb"
)

// InMemoryBuffer is a bounded buffer of windowed elements.
type InMemoryBuffer[O any] struct {
	name     string
	size     int64
	buffer   []isb.WindowedElement[O]
	writeIdx int64
	readIdx  int64
	count    int64
	written  int64
	options  *options
	rwlock   *sync.RWMutex
}

var _ isb.BufferWriter[int] = (*InMemoryBuffer[int])(nil)

// NewInMemoryBuffer returns a new buffer.
func NewInMemoryBuffer[O any](name string, size int64, opts ...Option) *InMemoryBuffer[O] {
	bufferOptions := &options{
		readTimeOut:           time.Second,       // default read time out
		onFullWritingStrategy: isb.RetryUntilSuccess, // default buffer full writing strategy
	}

	for _, o := range opts {
		_ = o(bufferOptions)
	}

	return &InMemoryBuffer[O]{
		name:    name,
		size:    size,
		buffer:  make([]isb.WindowedElement[O], size),
		rwlock:  new(sync.RWMutex),
		options: bufferOptions,
	}
}

// Stringer
func (b *InMemoryBuffer[O]) String() string {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return fmt.Sprintf("(%s) size:%d readIdx:%d writeIdx:%d", b.name, b.size, b.readIdx, b.writeIdx)
}

// GetName returns the buffer name.
func (b *InMemoryBuffer[O]) GetName() string {
	return b.name
}

// Close does nothing.
func (b *InMemoryBuffer[O]) Close() error {
	return nil
}

// IsFull returns whether the queue is full.
func (b *InMemoryBuffer[O]) IsFull() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.count == b.size
}

// IsEmpty returns whether the queue is empty.
func (b *InMemoryBuffer[O]) IsEmpty() bool {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.count == 0
}

// Len returns the number of unread elements.
func (b *InMemoryBuffer[O]) Len() int {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return int(b.count)
}

// Written returns the number of elements written since the buffer was created.
func (b *InMemoryBuffer[O]) Written() int64 {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	return b.written
}

func (b *InMemoryBuffer[O]) Write(_ context.Context, elements []isb.WindowedElement[O]) []error {
	errs := make([]error, len(elements))
	b.rwlock.Lock()
	defer b.rwlock.Unlock()
	for idx, element := range elements {
		if b.count == b.size {
			switch b.options.onFullWritingStrategy {
			case isb.DiscardLatest:
				errs[idx] = isb.NoRetryableBufferWriteErr{Name: b.name, Message: isb.BufferFullMessage}
			default:
				errs[idx] = isb.BufferWriteErr{Name: b.name, Full: true, Message: isb.BufferFullMessage}
			}
			continue
		}
		b.buffer[b.writeIdx] = element
		b.writeIdx = (b.writeIdx + 1) % b.size
		b.count++
		b.written++
	}
	return errs
}

// Read reads up to count elements, waiting for the read timeout while the buffer is empty.
func (b *InMemoryBuffer[O]) Read(ctx context.Context, count int64) []isb.WindowedElement[O] {
	out := make([]isb.WindowedElement[O], 0, count)
	cctx, cancel := context.WithTimeout(ctx, b.options.readTimeOut)
	defer cancel()
	for int64(len(out)) < count {
		if b.IsEmpty() {
			select {
			case <-cctx.Done():
				return out
			case <-time.After(time.Millisecond):
				continue
			}
		}
		b.rwlock.Lock()
		out = append(out, b.buffer[b.readIdx])
		b.buffer[b.readIdx] = isb.WindowedElement[O]{}
		b.readIdx = (b.readIdx + 1) % b.size
		b.count--
		b.rwlock.Unlock()
	}
	return out
}

// GetElements returns the unread elements without consuming them.
// this function is for testing purpose
func (b *InMemoryBuffer[O]) GetElements() []isb.WindowedElement[O] {
	b.rwlock.RLock()
	defer b.rwlock.RUnlock()
	out := make([]isb.WindowedElement[O], 0, b.count)
	for i := int64(0); i < b.count; i++ {
		out = append(out, b.buffer[(b.readIdx+i)%b.size])
	}
	return out
}

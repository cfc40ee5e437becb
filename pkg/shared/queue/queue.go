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

package queue

import (
	"context"
	"sync"
)

// Queue is a thread safe unbounded FIFO queue. Pop blocks until an element is available.
type Queue[T any] struct {
	elements []T
	closed   bool
	lock     *sync.Mutex
	// notify has a pending signal when elements may be available.
	notify chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		elements: []T{},
		lock:     new(sync.Mutex),
		notify:   make(chan struct{}, 1),
	}
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Append adds an element to the tail of the queue. It returns false if the queue is closed.
func (q *Queue[T]) Append(value T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return false
	}
	q.elements = append(q.elements, value)
	q.signal()
	return true
}

// Pop removes the head of the queue, waiting for one if the queue is empty. It returns false when ctx is
// done, or when the queue is closed and drained.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.lock.Lock()
		if len(q.elements) > 0 {
			v := q.elements[0]
			q.elements[0] = zero
			q.elements = q.elements[1:]
			if len(q.elements) > 0 {
				q.signal()
			}
			q.lock.Unlock()
			return v, true
		}
		closed := q.closed
		q.lock.Unlock()
		if closed {
			return zero, false
		}
		select {
		case <-ctx.Done():
			return zero, false
		case <-q.notify:
		}
	}
}

// Close stops accepting elements, Pop still returns the remaining ones.
func (q *Queue[T]) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	q.signal()
}

// Length returns the current length of the queue
func (q *Queue[T]) Length() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.elements)
}

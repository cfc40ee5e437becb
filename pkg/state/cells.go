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
	"time"
)

// cell is the storage of one state cell. Cells held by a Snapshot are never mutated, the overlay of an
// Internals works on clones.
type cell interface {
	kind() Kind
	clone() cell
	cleared() cell
	isEmpty() bool
	// restore copies the content of a clone of the same cell back into the cell.
	restore(from cell)
}

type valueCell[T any] struct {
	value T
	set   bool
}

func (c *valueCell[T]) kind() Kind { return KindValue }

func (c *valueCell[T]) clone() cell {
	cp := *c
	return &cp
}

func (c *valueCell[T]) cleared() cell { return &valueCell[T]{} }

func (c *valueCell[T]) isEmpty() bool { return !c.set }

func (c *valueCell[T]) restore(from cell) { *c = *from.(*valueCell[T]) }

type bagCell[T any] struct {
	items []T
}

func (c *bagCell[T]) kind() Kind { return KindBag }

func (c *bagCell[T]) clone() cell {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return &bagCell[T]{items: items}
}

func (c *bagCell[T]) cleared() cell { return &bagCell[T]{} }

func (c *bagCell[T]) isEmpty() bool { return len(c.items) == 0 }

func (c *bagCell[T]) restore(from cell) { c.items = from.(*bagCell[T]).items }

type combiningCell[In, Acc, Out any] struct {
	fn  CombineFn[In, Acc, Out]
	acc Acc
	set bool
}

func (c *combiningCell[In, Acc, Out]) kind() Kind { return KindCombining }

func (c *combiningCell[In, Acc, Out]) clone() cell {
	cp := *c
	return &cp
}

func (c *combiningCell[In, Acc, Out]) cleared() cell {
	return &combiningCell[In, Acc, Out]{fn: c.fn}
}

func (c *combiningCell[In, Acc, Out]) isEmpty() bool { return !c.set }

func (c *combiningCell[In, Acc, Out]) restore(from cell) { *c = *from.(*combiningCell[In, Acc, Out]) }

type holdCell struct {
	combiner TimestampCombiner
	ts       time.Time
	set      bool
}

func (c *holdCell) kind() Kind { return KindWatermarkHold }

func (c *holdCell) clone() cell {
	cp := *c
	return &cp
}

func (c *holdCell) cleared() cell { return &holdCell{combiner: c.combiner} }

func (c *holdCell) isEmpty() bool { return !c.set }

func (c *holdCell) restore(from cell) { *c = *from.(*holdCell) }

// ValueState is a handle on a value cell. Handles are valid until the next commit of the Internals that
// returned them.
type ValueState[T any] struct {
	c *valueCell[T]
}

// Read returns the value and whether it was written.
func (s *ValueState[T]) Read() (T, bool) {
	return s.c.value, s.c.set
}

// Write replaces the value.
func (s *ValueState[T]) Write(v T) {
	s.c.value = v
	s.c.set = true
}

// Clear removes the value.
func (s *ValueState[T]) Clear() {
	var zero T
	s.c.value = zero
	s.c.set = false
}

// BagState is a handle on an appending cell.
type BagState[T any] struct {
	c *bagCell[T]
}

// Add appends the value.
func (s *BagState[T]) Add(v T) {
	s.c.items = append(s.c.items, v)
}

// Read returns a copy of the values in insertion order.
func (s *BagState[T]) Read() []T {
	out := make([]T, len(s.c.items))
	copy(out, s.c.items)
	return out
}

// IsEmpty returns true if nothing was added.
func (s *BagState[T]) IsEmpty() bool {
	return len(s.c.items) == 0
}

// Clear removes every value.
func (s *BagState[T]) Clear() {
	s.c.items = nil
}

// CombiningState is a handle on a combining cell.
type CombiningState[In, Acc, Out any] struct {
	c *combiningCell[In, Acc, Out]
}

func (s *CombiningState[In, Acc, Out]) accum() Acc {
	if !s.c.set {
		return s.c.fn.CreateAccumulator()
	}
	return s.c.acc
}

// Add folds the input into the accumulator.
func (s *CombiningState[In, Acc, Out]) Add(in In) {
	s.c.acc = s.c.fn.AddInput(s.accum(), in)
	s.c.set = true
}

// AddAccum merges an accumulator into the cell.
func (s *CombiningState[In, Acc, Out]) AddAccum(acc Acc) {
	s.c.acc = s.c.fn.MergeAccumulators(s.accum(), acc)
	s.c.set = true
}

// Accum returns the current accumulator.
func (s *CombiningState[In, Acc, Out]) Accum() Acc {
	return s.accum()
}

// Read extracts the output of the current accumulator.
func (s *CombiningState[In, Acc, Out]) Read() Out {
	return s.c.fn.ExtractOutput(s.accum())
}

// IsEmpty returns true if nothing was added.
func (s *CombiningState[In, Acc, Out]) IsEmpty() bool {
	return !s.c.set
}

// Clear resets the accumulator.
func (s *CombiningState[In, Acc, Out]) Clear() {
	var zero Acc
	s.c.acc = zero
	s.c.set = false
}

// WatermarkHoldState is a handle on a hold cell, a combining cell over timestamps.
type WatermarkHoldState struct {
	c *holdCell
}

// Add folds the timestamp into the hold with the cell's combiner.
func (s *WatermarkHoldState) Add(ts time.Time) {
	if !s.c.set {
		s.c.ts = ts
		s.c.set = true
		return
	}
	s.c.ts = s.c.combiner.Combine(s.c.ts, ts)
}

// Read returns the held timestamp.
func (s *WatermarkHoldState) Read() (time.Time, bool) {
	return s.c.ts, s.c.set
}

// Combiner returns the combiner of the hold.
func (s *WatermarkHoldState) Combiner() TimestampCombiner {
	return s.c.combiner
}

// IsEmpty returns true if no timestamp is held.
func (s *WatermarkHoldState) IsEmpty() bool {
	return !s.c.set
}

// Clear releases the hold.
func (s *WatermarkHoldState) Clear() {
	s.c.ts = time.Time{}
	s.c.set = false
}

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

// Kind is the kind of a state cell.
type Kind int

const (
	KindValue Kind = iota
	KindBag
	KindCombining
	KindWatermarkHold
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "Value"
	case KindBag:
		return "Bag"
	case KindCombining:
		return "Combining"
	case KindWatermarkHold:
		return "WatermarkHold"
	default:
		return "Unknown"
	}
}

// systemPrefix keeps engine owned tags apart from user tags.
const systemPrefix = "__system/"

// Tag addresses a state cell within a namespace.
type Tag interface {
	// ID is the identifier of the cell, unique within a namespace.
	ID() string
	// Kind is the kind of cell the tag addresses.
	Kind() Kind
}

// ValueTag addresses a single value cell.
type ValueTag[T any] struct {
	id string
}

// MakeValueTag returns a ValueTag.
func MakeValueTag[T any](id string) ValueTag[T] {
	return ValueTag[T]{id: id}
}

func (t ValueTag[T]) ID() string {
	return t.id
}

func (t ValueTag[T]) Kind() Kind {
	return KindValue
}

// BagTag addresses an appending cell.
type BagTag[T any] struct {
	id string
}

// MakeBagTag returns a BagTag.
func MakeBagTag[T any](id string) BagTag[T] {
	return BagTag[T]{id: id}
}

func (t BagTag[T]) ID() string {
	return t.id
}

func (t BagTag[T]) Kind() Kind {
	return KindBag
}

// CombineFn folds inputs into an accumulator. Accumulators are treated as values: AddInput and
// MergeAccumulators must return a new accumulator instead of mutating the one passed in, otherwise a
// committed snapshot could observe the change.
type CombineFn[In, Acc, Out any] interface {
	CreateAccumulator() Acc
	AddInput(acc Acc, in In) Acc
	MergeAccumulators(accs ...Acc) Acc
	ExtractOutput(acc Acc) Out
}

// CombiningTag addresses a combining cell with its combine function.
type CombiningTag[In, Acc, Out any] struct {
	id string
	fn CombineFn[In, Acc, Out]
}

// MakeCombiningTag returns a CombiningTag.
func MakeCombiningTag[In, Acc, Out any](id string, fn CombineFn[In, Acc, Out]) CombiningTag[In, Acc, Out] {
	return CombiningTag[In, Acc, Out]{id: id, fn: fn}
}

func (t CombiningTag[In, Acc, Out]) ID() string {
	return t.id
}

func (t CombiningTag[In, Acc, Out]) Kind() Kind {
	return KindCombining
}

// TimestampCombiner decides how the timestamps added to a hold are combined.
type TimestampCombiner int

const (
	Earliest TimestampCombiner = iota
	Latest
)

func (c TimestampCombiner) String() string {
	switch c {
	case Earliest:
		return "Earliest"
	case Latest:
		return "Latest"
	default:
		return "Unknown"
	}
}

// Combine merges two timestamps.
func (c TimestampCombiner) Combine(a, b time.Time) time.Time {
	if c == Latest {
		if b.After(a) {
			return b
		}
		return a
	}
	if b.Before(a) {
		return b
	}
	return a
}

// HoldTag addresses a watermark hold cell.
type HoldTag struct {
	id       string
	combiner TimestampCombiner
}

// MakeHoldTag returns a user HoldTag.
func MakeHoldTag(id string, combiner TimestampCombiner) HoldTag {
	return HoldTag{id: id, combiner: combiner}
}

// MakeSystemHoldTag returns a HoldTag owned by the engine, it never collides with a user tag of the same id.
func MakeSystemHoldTag(id string, combiner TimestampCombiner) HoldTag {
	return HoldTag{id: systemPrefix + id, combiner: combiner}
}

func (t HoldTag) ID() string {
	return t.id
}

func (t HoldTag) Kind() Kind {
	return KindWatermarkHold
}

// Combiner returns the timestamp combiner of the hold.
func (t HoldTag) Combiner() TimestampCombiner {
	return t.combiner
}

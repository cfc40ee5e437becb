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

// Scoped is an Internals bound to one namespace.
type Scoped struct {
	in *Internals
	ns window.Namespace
}

// Namespace returns the namespace of the scope.
func (s *Scoped) Namespace() window.Namespace {
	return s.ns
}

// Value returns the value cell addressed by the tag.
func Value[T any](s *Scoped, tag ValueTag[T]) (*ValueState[T], error) {
	c, err := s.in.access(s.ns, tag, func() cell { return &valueCell[T]{} })
	if err != nil {
		return nil, err
	}
	vc, ok := c.(*valueCell[T])
	if !ok {
		return nil, typeMismatch(tag, c)
	}
	return &ValueState[T]{c: vc}, nil
}

// Bag returns the bag cell addressed by the tag.
func Bag[T any](s *Scoped, tag BagTag[T]) (*BagState[T], error) {
	c, err := s.in.access(s.ns, tag, func() cell { return &bagCell[T]{} })
	if err != nil {
		return nil, err
	}
	bc, ok := c.(*bagCell[T])
	if !ok {
		return nil, typeMismatch(tag, c)
	}
	return &BagState[T]{c: bc}, nil
}

// Combining returns the combining cell addressed by the tag.
func Combining[In, Acc, Out any](s *Scoped, tag CombiningTag[In, Acc, Out]) (*CombiningState[In, Acc, Out], error) {
	if tag.fn == nil {
		return nil, fmt.Errorf("%w: combining tag %q has no combine function", ErrTagKindMismatch, tag.ID())
	}
	c, err := s.in.access(s.ns, tag, func() cell { return &combiningCell[In, Acc, Out]{fn: tag.fn} })
	if err != nil {
		return nil, err
	}
	cc, ok := c.(*combiningCell[In, Acc, Out])
	if !ok {
		return nil, typeMismatch(tag, c)
	}
	return &CombiningState[In, Acc, Out]{c: cc}, nil
}

// WatermarkHold returns the hold cell addressed by the tag.
func WatermarkHold(s *Scoped, tag HoldTag) (*WatermarkHoldState, error) {
	c, err := s.in.access(s.ns, tag, func() cell { return &holdCell{combiner: tag.combiner} })
	if err != nil {
		return nil, err
	}
	hc, ok := c.(*holdCell)
	if !ok {
		return nil, typeMismatch(tag, c)
	}
	return &WatermarkHoldState{c: hc}, nil
}

func typeMismatch(tag Tag, c cell) error {
	return fmt.Errorf("%w: tag %q is bound to a %s cell of type %T", ErrTagKindMismatch, tag.ID(), c.kind(), c)
}

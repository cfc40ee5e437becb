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

// Package timers defines the timer datum and the per-bundle timer store used by the stateful engine.
package timers

import (
	"errors"
	"fmt"
	"time"

	"github.com/numaproj/stateful/pkg/window"
)

// ErrMalformedTimer is returned when a timer datum is structurally invalid.
var ErrMalformedTimer = errors.New("malformed timer")

// Domain is the time domain a timer fires in.
type Domain int

const (
	EventTime Domain = iota
	ProcessingTime
	SynchronizedProcessingTime
)

func (d Domain) String() string {
	switch d {
	case EventTime:
		return "EventTime"
	case ProcessingTime:
		return "ProcessingTime"
	case SynchronizedProcessingTime:
		return "SynchronizedProcessingTime"
	default:
		return "Unknown"
	}
}

// Valid returns true for the known time domains.
func (d Domain) Valid() bool {
	return d >= EventTime && d <= SynchronizedProcessingTime
}

// Domains lists every time domain.
var Domains = []Domain{EventTime, ProcessingTime, SynchronizedProcessingTime}

// TimerData is a single scheduled timer. Its identity is (namespace, timer id, timer family id), setting a
// timer with the same identity overrides the pending one.
type TimerData struct {
	TimerID         string
	TimerFamilyID   string
	Namespace       window.Namespace
	Domain          Domain
	FireTimestamp   time.Time
	OutputTimestamp time.Time
	Deleted         bool
}

// New returns a TimerData. The output timestamp defaults to the fire timestamp when it is zero.
func New(ns window.Namespace, timerID, timerFamilyID string, domain Domain, fire, output time.Time) TimerData {
	if output.IsZero() {
		output = fire
	}
	return TimerData{
		TimerID:         timerID,
		TimerFamilyID:   timerFamilyID,
		Namespace:       ns,
		Domain:          domain,
		FireTimestamp:   fire,
		OutputTimestamp: output,
	}
}

// StringKey returns the identity of the timer.
func (t TimerData) StringKey() string {
	return t.Namespace.StringKey() + "/" + t.TimerFamilyID + ":" + t.TimerID
}

// Window returns the window of the timer's namespace.
func (t TimerData) Window() window.Window {
	return t.Namespace.Window
}

// AsDeleted returns a copy of the timer flagged as deleted.
func (t TimerData) AsDeleted() TimerData {
	t.Deleted = true
	return t
}

// Equal compares every field of the two timers. Timestamps are compared as instants.
func (t TimerData) Equal(o TimerData) bool {
	return t.TimerID == o.TimerID &&
		t.TimerFamilyID == o.TimerFamilyID &&
		t.Namespace.Equal(o.Namespace) &&
		t.Domain == o.Domain &&
		t.FireTimestamp.Equal(o.FireTimestamp) &&
		t.OutputTimestamp.Equal(o.OutputTimestamp) &&
		t.Deleted == o.Deleted
}

// Validate checks the timer is addressable.
func (t TimerData) Validate() error {
	switch {
	case t.TimerID == "":
		return fmt.Errorf("%w: empty timer id", ErrMalformedTimer)
	case t.Namespace.Key == "":
		return fmt.Errorf("%w: timer %q has an empty key", ErrMalformedTimer, t.TimerID)
	case t.Namespace.Window == nil:
		return fmt.Errorf("%w: timer %q has no window", ErrMalformedTimer, t.TimerID)
	case !t.Domain.Valid():
		return fmt.Errorf("%w: timer %q has unknown domain %d", ErrMalformedTimer, t.TimerID, t.Domain)
	}
	return nil
}

func (t TimerData) String() string {
	return fmt.Sprintf("Timer{id=%s, family=%s, ns=%s, domain=%s, fire=%d, output=%d, deleted=%t}",
		t.TimerID, t.TimerFamilyID, t.Namespace.StringKey(), t.Domain,
		t.FireTimestamp.UnixMilli(), t.OutputTimestamp.UnixMilli(), t.Deleted)
}

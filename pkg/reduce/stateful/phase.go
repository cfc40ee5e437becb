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

package stateful

import (
	"errors"
	"fmt"
)

// Phase is the state of a bundle in the evaluator.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseProcessingElements
	PhaseProcessingTimers
	PhaseFinishing
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseProcessingElements:
		return "ProcessingElements"
	case PhaseProcessingTimers:
		return "ProcessingTimers"
	case PhaseFinishing:
		return "Finishing"
	case PhaseCommitted:
		return "Committed"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrInconsistentTimer is returned when a timer of the work item is malformed or belongs to another key.
var ErrInconsistentTimer = errors.New("inconsistent timer")

// BundleError is the error of a failed bundle. Nothing of the bundle was committed, the work item can be
// resubmitted as is.
type BundleError struct {
	Key   string
	Phase Phase
	Err   error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle of key %q failed while %s: %v", e.Key, e.Phase, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

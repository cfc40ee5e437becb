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

import "errors"

var (
	// ErrTagKindMismatch is returned when a tag id is accessed with a kind or type other than the one
	// the cell was created with.
	ErrTagKindMismatch = errors.New("state tag kind mismatch")
	// ErrStaleGeneration is returned when a snapshot is advanced for a key whose current generation moved
	// since the snapshot's bundle started.
	ErrStaleGeneration = errors.New("stale state generation")
	// ErrDiscarded is returned when a discarded Internals is used again.
	ErrDiscarded = errors.New("state internals discarded")
)

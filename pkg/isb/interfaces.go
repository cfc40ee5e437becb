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

/*
Package isb defines the data exchanged with the stateful engine. The upstream grouping layer hands in a
KeyedWorkItem per bundle, the engine hands out output Bundles that the execution layer writes to the
next steps through a BufferWriter.
*/

package isb

import (
	"context"
	"io"
)

// DefaultTag is the output tag of elements emitted without a tag.
const DefaultTag = "main"

// OnFullWritingStrategy is the behavior of a write on a full buffer.
type OnFullWritingStrategy string

const (
	// RetryUntilSuccess returns a retryable BufferWriteErr.
	RetryUntilSuccess OnFullWritingStrategy = "retryUntilSuccess"
	// DiscardLatest returns a NoRetryableBufferWriteErr, the element is dropped.
	DiscardLatest OnFullWritingStrategy = "discardLatest"
)

// BufferWriter is the buffer to which the outputs of a step are written.
type BufferWriter[O any] interface {
	// GetName returns the name.
	GetName() string
	io.Closer
	// Write writes the elements and returns one error slot per element.
	Write(context.Context, []WindowedElement[O]) []error
}

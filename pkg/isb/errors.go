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

package isb

import "fmt"

// BufferFullMessage is the message of a write error on a full buffer.
const BufferFullMessage = "Buffer full!"

// BufferWriteErr when we cannot write to the buffer because of a full buffer.
type BufferWriteErr struct {
	Name        string
	Full        bool
	InternalErr bool
	Message     string
}

func (e BufferWriteErr) Error() string {
	return fmt.Sprintf("(%s) %s %#v", e.Name, e.Message, e)
}

// IsFull returns true if buffer is full.
func (e BufferWriteErr) IsFull() bool {
	return e.Full
}

// IsInternalErr returns true if writing is failing due to a buffer internal error.
func (e BufferWriteErr) IsInternalErr() bool {
	return e.InternalErr
}

// NoRetryableBufferWriteErr is returned when the element must be dropped instead of retried.
type NoRetryableBufferWriteErr struct {
	Name    string
	Message string
}

func (e NoRetryableBufferWriteErr) Error() string {
	return e.Message
}

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

package simplebuffer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/window"
)

func buildElements(count int) []isb.WindowedElement[int] {
	out := make([]isb.WindowedElement[int], 0, count)
	start := time.Unix(1636470000, 0)
	for i := 0; i < count; i++ {
		out = append(out, isb.NewWindowedElement(i, start.Add(time.Duration(i)*time.Second), isb.NoFiringPane, window.Global()))
	}
	return out
}

func TestNewSimpleBuffer(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer[int]("test", 5, WithReadTimeOut(10*time.Millisecond))
	assert.NotEmpty(t, sb.String())
	assert.True(t, sb.IsEmpty())

	elements := buildElements(7)
	errs := sb.Write(ctx, elements[0:5])
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, sb.IsFull())

	errs = sb.Write(ctx, elements[5:6])
	assert.EqualValues(t, []error{isb.BufferWriteErr{Name: "test", Full: true, Message: isb.BufferFullMessage}}, errs)

	read := sb.Read(ctx, 2)
	assert.Len(t, read, 2)
	assert.Equal(t, 0, read[0].Value)
	assert.Equal(t, 1, read[1].Value)
	assert.Equal(t, 3, sb.Len())

	errs = sb.Write(ctx, elements[5:7])
	assert.Equal(t, []error{nil, nil}, errs)
	var values []int
	for _, e := range sb.GetElements() {
		values = append(values, e.Value)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 6}, values)
	assert.Equal(t, int64(7), sb.Written())

	// reading more than available returns on timeout
	read = sb.Read(ctx, 10)
	assert.Len(t, read, 5)
	assert.True(t, sb.IsEmpty())
}

func TestSimpleBuffer_DiscardLatest(t *testing.T) {
	ctx := context.Background()
	sb := NewInMemoryBuffer[int]("test", 1, WithOnFullWritingStrategy(isb.DiscardLatest))
	errs := sb.Write(ctx, buildElements(2))
	assert.NoError(t, errs[0])
	assert.True(t, errors.As(errs[1], &isb.NoRetryableBufferWriteErr{}))
}

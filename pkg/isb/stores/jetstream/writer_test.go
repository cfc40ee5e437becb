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

package jetstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/isb"
	natstest "github.com/numaproj/stateful/pkg/shared/clients/nats/test"
	"github.com/numaproj/stateful/pkg/window"
)

func addStream(t *testing.T, js nats.JetStreamContext, name string) {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{name},
		Storage:  nats.MemoryStorage,
	})
	require.NoError(t, err)
}

func testElements(values ...string) []isb.WindowedElement[string] {
	w := window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(100))
	var out []isb.WindowedElement[string]
	for i, v := range values {
		out = append(out, isb.NewWindowedElement(v, time.UnixMilli(int64(i)), isb.NoFiringPane, w))
	}
	return out
}

func TestJetStreamWriter_Write(t *testing.T) {
	ctx := context.Background()
	s := natstest.RunJetStreamServer(t)
	client := natstest.JetStreamClient(t, s)
	js, err := client.JetStreamContext()
	require.NoError(t, err)
	addStream(t, js, "out")

	jw, err := NewJetStreamBufferWriter[string](ctx, client, "out-buffer", "out", "out")
	require.NoError(t, err)
	assert.Equal(t, "out-buffer", jw.GetName())
	for _, err := range jw.Write(ctx, testElements("a", "b", "c")) {
		assert.NoError(t, err)
	}

	msg, err := js.GetMsg("out", 3)
	require.NoError(t, err)
	e, err := isb.UnmarshalElement[string](msg.Data)
	require.NoError(t, err)
	assert.Equal(t, "c", e.Value)
	assert.NoError(t, jw.Close())
}

func TestJetStreamWriter_Full(t *testing.T) {
	ctx := context.Background()
	s := natstest.RunJetStreamServer(t)
	client := natstest.JetStreamClient(t, s)
	js, err := client.JetStreamContext()
	require.NoError(t, err)
	addStream(t, js, "full")

	jw, err := NewJetStreamBufferWriter[string](ctx, client, "full", "full", "full", WithMaxLength(2), WithBufferUsageLimit(1), WithRefreshInterval(0))
	require.NoError(t, err)
	for _, err := range jw.Write(ctx, testElements("a", "b")) {
		assert.NoError(t, err)
	}
	errs := jw.Write(ctx, testElements("c"))
	assert.True(t, errors.As(errs[0], &isb.BufferWriteErr{}))

	jw, err = NewJetStreamBufferWriter[string](ctx, client, "full", "full", "full", WithMaxLength(2), WithOnFullWritingStrategy(isb.DiscardLatest))
	require.NoError(t, err)
	errs = jw.Write(ctx, testElements("c"))
	assert.True(t, errors.As(errs[0], &isb.NoRetryableBufferWriteErr{}))
}

func TestNewJetStreamBufferWriter_MissingStream(t *testing.T) {
	s := natstest.RunJetStreamServer(t)
	client := natstest.JetStreamClient(t, s)
	_, err := NewJetStreamBufferWriter[string](context.Background(), client, "x", "missing", "missing")
	assert.Error(t, err)
}

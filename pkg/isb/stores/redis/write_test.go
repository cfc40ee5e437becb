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

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/stateful/pkg/isb"
	redisclient "github.com/numaproj/stateful/pkg/shared/clients/redis"
	"github.com/numaproj/stateful/pkg/window"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redisclient.RedisClient) {
	mr := miniredis.RunT(t)
	client := redisclient.NewRedisClientWithAddrs([]string{mr.Addr()}, "", "", "")
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func elements(values ...string) []isb.WindowedElement[string] {
	w := window.NewIntervalWindow(time.UnixMilli(0), time.UnixMilli(100))
	var out []isb.WindowedElement[string]
	for i, v := range values {
		out = append(out, isb.NewWindowedElement(v, time.UnixMilli(int64(i)), isb.NoFiringPane, w))
	}
	return out
}

func TestStreamWriter_Write(t *testing.T) {
	for _, pipelined := range []bool{true, false} {
		ctx := context.Background()
		_, client := newClient(t)
		var opts []Option
		if !pipelined {
			opts = append(opts, WithoutPipelining())
		}
		sw := NewStreamWriter[string](ctx, client, "out", opts...)
		assert.Equal(t, "out", sw.GetName())

		errs := sw.Write(ctx, elements("a", "b"))
		for _, err := range errs {
			assert.NoError(t, err)
		}

		entries, err := client.Client.XRange(ctx, sw.GetStreamName(), "-", "+").Result()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		got, err := isb.UnmarshalElement[string]([]byte(entries[1].Values[ElementField].(string)))
		require.NoError(t, err)
		assert.Equal(t, "b", got.Value)
		assert.Equal(t, int64(1), got.EventTime.UnixMilli())
		assert.NoError(t, sw.Close())
	}
}

func TestStreamWriter_Full(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)

	sw := NewStreamWriter[string](ctx, client, "retry", WithMaxLength(2), WithBufferUsageLimit(1), WithInfoRefreshInterval(0))
	errs := sw.Write(ctx, elements("a", "b"))
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	errs = sw.Write(ctx, elements("c"))
	assert.True(t, errors.As(errs[0], &isb.BufferWriteErr{}))

	sw = NewStreamWriter[string](ctx, client, "retry", WithMaxLength(2), WithOnFullWritingStrategy(isb.DiscardLatest))
	errs = sw.Write(ctx, elements("c"))
	assert.True(t, errors.As(errs[0], &isb.NoRetryableBufferWriteErr{}))
}

func TestStreamWriter_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	sw := NewStreamWriter[string](ctx, client, "down")
	mr.Close()
	errs := sw.Write(ctx, elements("a"))
	assert.Error(t, errs[0])
	assert.False(t, errors.As(errs[0], &isb.NoRetryableBufferWriteErr{}))
}

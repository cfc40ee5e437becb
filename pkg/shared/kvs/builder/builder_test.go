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

package builder

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natstest "github.com/numaproj/stateful/pkg/shared/clients/nats/test"
	"github.com/numaproj/stateful/pkg/shared/config"
)

func roundTrip(t *testing.T, b *Builder) {
	t.Helper()
	ctx := context.Background()
	store, err := b.Build(ctx, "timers")
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "base-timers", store.GetStoreName())
	require.NoError(t, store.PutKV(ctx, "k", []byte("v")))
	v, err := store.GetValue(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestBuilder_InMem(t *testing.T) {
	b, err := NewBuilder(context.Background(), config.StoreConfig{Type: config.StoreTypeInMem, Bucket: "base"})
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()
	roundTrip(t, b)
}

func TestBuilder_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewBuilder(context.Background(), config.StoreConfig{
		Type:   config.StoreTypeRedis,
		Bucket: "base",
		Redis:  config.RedisConfig{Addrs: []string{mr.Addr()}, Prefix: "p:"},
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()
	roundTrip(t, b)
	assert.Equal(t, "v", mr.HGet("p:base-timers", "k"))
}

func TestBuilder_JetStream(t *testing.T) {
	s := natstest.RunJetStreamServer(t)
	b, err := NewBuilder(context.Background(), config.StoreConfig{
		Type:      config.StoreTypeJetStream,
		Bucket:    "base",
		JetStream: config.JetStreamConfig{URL: s.ClientURL(), History: 1},
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, b.Close()) }()
	roundTrip(t, b)
}

func TestBuilder_Invalid(t *testing.T) {
	_, err := NewBuilder(context.Background(), config.StoreConfig{Type: "etcd", Bucket: "base"})
	assert.Error(t, err)
}

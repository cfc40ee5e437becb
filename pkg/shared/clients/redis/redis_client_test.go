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
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientWithAddrs(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := NewRedisClientWithAddrs([]string{mr.Addr()}, "", "", "")
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, client.DeleteKeys(ctx, "a"))
	assert.False(t, mr.Exists("a"))
}

func TestPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClientWithAddrs([]string{mr.Addr()}, "", "", "")
	defer func() { _ = client.Close() }()
	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

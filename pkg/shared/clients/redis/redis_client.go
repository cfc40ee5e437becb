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
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient datatype to hold redis client attributes.
type RedisClient struct {
	Client redis.UniversalClient
}

// NewRedisClient returns a new Redis Client.
func NewRedisClient(options *redis.UniversalOptions) *RedisClient {
	client := new(RedisClient)
	client.Client = redis.NewUniversalClient(options)
	return client
}

// NewRedisClientWithAddrs returns a client for the given addresses. A non-empty masterName selects
// sentinel mode, more than one address without it selects cluster mode.
func NewRedisClientWithAddrs(addrs []string, username, password, masterName string) *RedisClient {
	return NewRedisClient(&redis.UniversalOptions{
		Addrs:      addrs,
		Username:   username,
		Password:   password,
		MasterName: masterName,
	})
}

// Ping checks the connection.
func (cl *RedisClient) Ping(ctx context.Context) error {
	if err := cl.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// DeleteKeys deletes a redis keys
func (cl *RedisClient) DeleteKeys(ctx context.Context, keys ...string) error {
	return cl.Client.Del(ctx, keys...).Err()
}

// Close closes the underlying client.
func (cl *RedisClient) Close() error {
	return cl.Client.Close()
}

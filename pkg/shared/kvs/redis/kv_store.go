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
Package redis implements the kv store on a redis hash, one hash per bucket.
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redisclient "github.com/numaproj/stateful/pkg/shared/clients/redis"
	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

type redisStore struct {
	bucketName string
	hashKey    string
	client     *redisclient.RedisClient
	log        *zap.SugaredLogger
}

var _ kvs.KVStorer = (*redisStore)(nil)

// NewKVRedisStore returns a KV store keeping every entry of the bucket in the hash "<prefix><bucket>".
func NewKVRedisStore(ctx context.Context, bucketName string, prefix string, client *redisclient.RedisClient) (kvs.KVStorer, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("empty bucket name")
	}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return &redisStore{
		bucketName: bucketName,
		hashKey:    prefix + bucketName,
		client:     client,
		log:        logging.FromContext(ctx).With("bucketName", bucketName),
	}, nil
}

// GetAllKeys returns all the keys of the bucket, sorted.
func (rs *redisStore) GetAllKeys(ctx context.Context) ([]string, error) {
	keys, err := rs.client.Client.HKeys(ctx, rs.hashKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// GetValue returns the value for a given key.
func (rs *redisStore) GetValue(ctx context.Context, k string) ([]byte, error) {
	val, err := rs.client.Client.HGet(ctx, rs.hashKey, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get %q: %w", k, kvs.ErrKeyNotFound)
		}
		return nil, err
	}
	return val, nil
}

// GetStoreName returns the store name.
func (rs *redisStore) GetStoreName() string {
	return rs.bucketName
}

// DeleteKey deletes the key from the bucket.
func (rs *redisStore) DeleteKey(ctx context.Context, k string) error {
	n, err := rs.client.Client.HDel(ctx, rs.hashKey, k).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete %q: %w", k, kvs.ErrKeyNotFound)
	}
	return nil
}

// PutKV puts an element to the bucket.
func (rs *redisStore) PutKV(ctx context.Context, k string, v []byte) error {
	return rs.client.Client.HSet(ctx, rs.hashKey, k, v).Err()
}

// Close leaves the client open, it is owned by the caller.
func (rs *redisStore) Close() {
	rs.log.Infow("Closed redis kv store")
}

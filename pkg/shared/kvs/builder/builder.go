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

// Package builder creates kv stores for the configured backend.
package builder

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	natsclient "github.com/numaproj/stateful/pkg/shared/clients/nats"
	redisclient "github.com/numaproj/stateful/pkg/shared/clients/redis"
	"github.com/numaproj/stateful/pkg/shared/config"
	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/kvs/inmem"
	"github.com/numaproj/stateful/pkg/shared/kvs/jetstream"
	kvsredis "github.com/numaproj/stateful/pkg/shared/kvs/redis"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// Builder creates the buckets of one engine, the backend client is shared by all of them.
type Builder struct {
	cfg   config.StoreConfig
	redis *redisclient.RedisClient
	nats  *natsclient.Client
	log   *zap.SugaredLogger
}

// NewBuilder validates cfg and connects to the backend.
func NewBuilder(ctx context.Context, cfg config.StoreConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Builder{cfg: cfg, log: logging.FromContext(ctx).With("storeType", cfg.Type)}
	switch cfg.Type {
	case config.StoreTypeRedis:
		r := cfg.Redis
		b.redis = redisclient.NewRedisClientWithAddrs(r.Addrs, r.Username, r.Password, r.MasterName)
	case config.StoreTypeJetStream:
		c, err := natsclient.NewNATSClient(ctx, cfg.JetStream.URL)
		if err != nil {
			return nil, err
		}
		b.nats = c
	}
	return b, nil
}

// BucketName returns the bucket used for name.
func (b *Builder) BucketName(name string) string {
	return b.cfg.Bucket + "-" + name
}

// Build returns the store of the bucket derived from name.
func (b *Builder) Build(ctx context.Context, name string) (kvs.KVStorer, error) {
	bucket := b.BucketName(name)
	var (
		store kvs.KVStorer
		err   error
	)
	switch b.cfg.Type {
	case config.StoreTypeInMem:
		store, err = inmem.NewKVInMemKVStore(ctx, bucket)
	case config.StoreTypeRedis:
		store, err = kvsredis.NewKVRedisStore(ctx, bucket, b.cfg.Redis.Prefix, b.redis)
	case config.StoreTypeJetStream:
		store, err = jetstream.NewKVJetStreamKVStore(ctx, bucket, b.nats, jetstream.WithCreateIfMissing(b.cfg.JetStream.History))
	default:
		err = fmt.Errorf("unsupported store type %q", b.cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build kv store %s: %w", bucket, err)
	}
	b.log.Infow("Built kv store", zap.String("bucket", bucket))
	return store, nil
}

// Close closes the backend client.
func (b *Builder) Close() error {
	var err error
	if b.redis != nil {
		err = multierr.Append(err, b.redis.Close())
	}
	if b.nats != nil {
		b.nats.Close()
	}
	return err
}

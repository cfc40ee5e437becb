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
Package jetstream implements the kv store using a Jetstream KeyValue bucket.
*/
package jetstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	natsclient "github.com/numaproj/stateful/pkg/shared/clients/nats"
	"github.com/numaproj/stateful/pkg/shared/kvs"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// jetStreamStore implements the KV store backed up by Jetstream.
type jetStreamStore struct {
	kvName string
	client *natsclient.Client
	kv     nats.KeyValue
	log    *zap.SugaredLogger
	opts   *options
}

var _ kvs.KVStorer = (*jetStreamStore)(nil)

// NewKVJetStreamKVStore returns KVJetStreamStore.
func NewKVJetStreamKVStore(ctx context.Context, kvName string, client *natsclient.Client, opts ...Option) (kvs.KVStorer, error) {
	kvOpts := defaultOptions()
	for _, o := range opts {
		o(kvOpts)
	}

	var (
		kvStore nats.KeyValue
		err     error
	)
	if kvOpts.createIfMissing {
		kvStore, err = client.CreateKVStore(kvName, kvOpts.history)
	} else {
		kvStore, err = client.BindKVStore(kvName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind kv store: %w", err)
	}

	return &jetStreamStore{
		kvName: kvName,
		kv:     kvStore,
		client: client,
		opts:   kvOpts,
		log:    logging.FromContext(ctx).With("kvName", kvName),
	}, nil
}

// GetAllKeys returns all the keys in the key-value store.
func (jss *jetStreamStore) GetAllKeys(ctx context.Context) ([]string, error) {
	keys, err := jss.kv.Keys(nats.Context(ctx))
	if err != nil {
		// an empty bucket is not an error for the callers
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

// GetValue returns the value for a given key.
func (jss *jetStreamStore) GetValue(_ context.Context, k string) ([]byte, error) {
	entry, err := jss.kv.Get(k)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, fmt.Errorf("get %q: %w", k, kvs.ErrKeyNotFound)
		}
		return nil, err
	}
	return entry.Value(), nil
}

// GetStoreName returns the store name.
func (jss *jetStreamStore) GetStoreName() string {
	return jss.kv.Bucket()
}

// DeleteKey deletes the key from the JS key-value store.
func (jss *jetStreamStore) DeleteKey(ctx context.Context, k string) error {
	if _, err := jss.GetValue(ctx, k); err != nil {
		return err
	}
	// will return error if nats connection is closed
	return jss.kv.Delete(k)
}

// PutKV puts an element to the JS key-value store.
func (jss *jetStreamStore) PutKV(_ context.Context, k string, v []byte) error {
	// will return error if nats connection is closed
	_, err := jss.kv.Put(k, v)
	return err
}

// Close we don't need to close the JetStream connection. It will be closed by the caller.
func (jss *jetStreamStore) Close() {
	jss.log.Infow("Closed jetstream kv store")
}

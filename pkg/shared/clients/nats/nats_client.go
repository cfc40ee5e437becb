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

package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/shared/logging"
)

// Client is a client for NATS server which can be shared by multiple kv stores.
type Client struct {
	sync.Mutex
	nc    *nats.Conn
	jsCtx nats.JetStreamContext
	log   *zap.SugaredLogger
}

// NewNATSClient Create a new NATS client
func NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// if max reconnects is set to -1, it will try to reconnect forever
		nats.MaxReconnects(-1),
		// ping the server every 3 seconds, after two missing pongs the connection is considered lost
		nats.PingInterval(3 * time.Second),
		nats.MaxPingsOutstanding(2),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		// retry on failed connect should be true, else it wont try to reconnect during initial connect
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		// Write (and flush) timeout
		nats.FlusherTimeout(10 * time.Second),
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	jsCtx, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create to nats jetstream context: %w", err)
	}
	return &Client{nc: nc, jsCtx: jsCtx, log: log}, nil
}

// BindKVStore lookup and bind to an existing KeyValue store and return the KeyValue interface
func (c *Client) BindKVStore(kvName string) (nats.KeyValue, error) {
	c.Lock()
	defer c.Unlock()
	return c.jsCtx.KeyValue(kvName)
}

// CreateKVStore binds to the KeyValue store, creating it first when it does not exist.
func (c *Client) CreateKVStore(kvName string, history uint8) (nats.KeyValue, error) {
	c.Lock()
	defer c.Unlock()
	kv, err := c.jsCtx.KeyValue(kvName)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, err
	}
	return c.jsCtx.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:  kvName,
		History: history,
	})
}

// DeleteKVStore deletes the KeyValue store.
func (c *Client) DeleteKVStore(kvName string) error {
	c.Lock()
	defer c.Unlock()
	return c.jsCtx.DeleteKeyValue(kvName)
}

// JetStreamContext returns a new JetStreamContext
func (c *Client) JetStreamContext(opts ...nats.JSOpt) (nats.JetStreamContext, error) {
	return c.nc.JetStream(opts...)
}

// Close closes the NATS client
func (c *Client) Close() {
	c.nc.Close()
}

// NewTestClient creates a new NATS client for testing
// only use this for testing
func NewTestClient(t *testing.T, url string) *Client {
	t.Helper()
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", url, err)
	}
	jsCtx, err := nc.JetStream()
	if err != nil {
		t.Fatalf("failed to create jetstream context: %v", err)
	}
	return &Client{nc: nc, jsCtx: jsCtx, log: logging.NewLogger()}
}

// NewTestClientWithServer is used to get a testing JetStream client instance
func NewTestClientWithServer(t *testing.T, s *server.Server) *Client {
	return NewTestClient(t, s.ClientURL())
}

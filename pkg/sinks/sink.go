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

// Package sinks builds the buffer writers of the output tags of a stage from its configuration.
package sinks

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	jetstreamisb "github.com/numaproj/stateful/pkg/isb/stores/jetstream"
	redisisb "github.com/numaproj/stateful/pkg/isb/stores/redis"
	natsclient "github.com/numaproj/stateful/pkg/shared/clients/nats"
	redisclient "github.com/numaproj/stateful/pkg/shared/clients/redis"
	"github.com/numaproj/stateful/pkg/shared/config"
	"github.com/numaproj/stateful/pkg/shared/logging"
	"github.com/numaproj/stateful/pkg/sinks/blackhole"
	kafkasink "github.com/numaproj/stateful/pkg/sinks/kafka"
	logsink "github.com/numaproj/stateful/pkg/sinks/logger"
)

// ownedWriter closes the client it writes through along with itself.
type ownedWriter[O any] struct {
	isb.BufferWriter[O]
	closeClient func() error
}

func (w *ownedWriter[O]) Close() error {
	return multierr.Append(w.BufferWriter.Close(), w.closeClient())
}

func onFullStrategy(s string) isb.OnFullWritingStrategy {
	if s == "" {
		return isb.RetryUntilSuccess
	}
	return isb.OnFullWritingStrategy(s)
}

// NewBufferWriter returns the writer of one output. Redis and jetstream writers get their own client,
// closed with the writer.
func NewBufferWriter[O any](ctx context.Context, name, pipeline string, c config.OutputConfig) (isb.BufferWriter[O], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx).With("output", name).With("outputType", c.Type)
	switch c.Type {
	case config.OutputTypeLog:
		return logsink.NewToLog[O](name, logsink.WithLogger[O](log), logsink.WithPipelineName[O](pipeline))
	case config.OutputTypeBlackhole:
		return blackhole.NewBlackhole[O](name, pipeline), nil
	case config.OutputTypeRedis:
		r := c.Redis
		client := redisclient.NewRedisClientWithAddrs(r.Addrs, r.Username, r.Password, r.MasterName)
		opts := []redisisb.Option{redisisb.WithOnFullWritingStrategy(onFullStrategy(c.OnFull))}
		if c.MaxLength > 0 {
			opts = append(opts, redisisb.WithMaxLength(c.MaxLength))
		}
		if c.UsageLimit > 0 {
			opts = append(opts, redisisb.WithBufferUsageLimit(c.UsageLimit))
		}
		w := redisisb.NewStreamWriter[O](logging.WithLogger(ctx, log), client, r.Stream, opts...)
		return &ownedWriter[O]{BufferWriter: w, closeClient: client.Close}, nil
	case config.OutputTypeJetStream:
		j := c.JetStream
		client, err := natsclient.NewNATSClient(ctx, j.URL)
		if err != nil {
			return nil, err
		}
		opts := []jetstreamisb.WriteOption{jetstreamisb.WithOnFullWritingStrategy(onFullStrategy(c.OnFull))}
		if c.MaxLength > 0 {
			opts = append(opts, jetstreamisb.WithMaxLength(c.MaxLength))
		}
		if c.UsageLimit > 0 {
			opts = append(opts, jetstreamisb.WithBufferUsageLimit(c.UsageLimit))
		}
		w, err := jetstreamisb.NewJetStreamBufferWriter[O](logging.WithLogger(ctx, log), client, name, j.Stream, j.Subject, opts...)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &ownedWriter[O]{BufferWriter: w, closeClient: func() error {
			client.Close()
			return nil
		}}, nil
	case config.OutputTypeKafka:
		k := c.Kafka
		opts := []kafkasink.Option[O]{kafkasink.WithLogger[O](log), kafkasink.WithPipelineName[O](pipeline)}
		if k.Concurrency > 0 {
			opts = append(opts, kafkasink.WithConcurrency[O](k.Concurrency))
		}
		return kafkasink.NewToKafkaFromBrokers[O](name, k.Topic, k.Brokers, k.Config, opts...)
	default:
		return nil, fmt.Errorf("unsupported output type %q", c.Type)
	}
}

// NewBufferWriters returns the writer of every configured output, keyed by output tag. A failure closes
// the writers built so far.
func NewBufferWriters[O any](ctx context.Context, conf config.EngineConfig) (map[string]isb.BufferWriter[O], error) {
	log := logging.FromContext(ctx)
	writers := make(map[string]isb.BufferWriter[O], len(conf.Outputs))
	for tag, c := range conf.Outputs {
		w, err := NewBufferWriter[O](ctx, conf.Stage+"-"+tag, conf.Pipeline, c)
		if err != nil {
			var closeErr error
			for _, built := range writers {
				closeErr = multierr.Append(closeErr, built.Close())
			}
			if closeErr != nil {
				log.Errorw("Failed to close output writers", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("failed to build output %q: %w", tag, err)
		}
		writers[tag] = w
	}
	return writers, nil
}

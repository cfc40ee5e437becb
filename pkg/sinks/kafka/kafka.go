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

// Package kafka writes output elements to a kafka topic.
package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/numaproj/stateful/pkg/isb"
	"github.com/numaproj/stateful/pkg/metrics"
	"github.com/numaproj/stateful/pkg/shared/logging"
)

// ToKafka produce the output to a kafka topic.
type ToKafka[O any] struct {
	name         string
	pipelineName string
	producer     sarama.SyncProducer
	topic        string
	log          *zap.SugaredLogger
	concurrency  uint32
}

var _ isb.BufferWriter[string] = (*ToKafka[string])(nil)

type Option[O any] func(*ToKafka[O]) error

type sinkMessage struct {
	index   int
	message *sarama.ProducerMessage
}

func WithLogger[O any](log *zap.SugaredLogger) Option[O] {
	return func(t *ToKafka[O]) error {
		t.log = log
		return nil
	}
}

// WithConcurrency sets the number of parallel sends of one write.
func WithConcurrency[O any](c uint32) Option[O] {
	return func(t *ToKafka[O]) error {
		if c == 0 {
			return fmt.Errorf("concurrency must be positive")
		}
		t.concurrency = c
		return nil
	}
}

// WithPipelineName sets the pipeline metric label.
func WithPipelineName[O any](name string) Option[O] {
	return func(t *ToKafka[O]) error {
		t.pipelineName = name
		return nil
	}
}

// NewToKafka returns a writer sending to the topic through the producer. The writer owns the producer.
func NewToKafka[O any](name, topic string, producer sarama.SyncProducer, opts ...Option[O]) (*ToKafka[O], error) {
	toKafka := &ToKafka[O]{
		name:        name,
		topic:       topic,
		producer:    producer,
		concurrency: 1,
	}
	for _, o := range opts {
		if err := o(toKafka); err != nil {
			return nil, err
		}
	}
	//set default logger
	if toKafka.log == nil {
		toKafka.log = logging.NewLogger()
	}
	toKafka.log = toKafka.log.With("sinkType", "kafka").With("topic", topic)
	return toKafka, nil
}

// NewToKafkaFromBrokers creates a sync producer for the brokers. configYAML is an optional yaml rendition
// of the sarama config.
func NewToKafkaFromBrokers[O any](name, topic string, brokers []string, configYAML string, opts ...Option[O]) (*ToKafka[O], error) {
	config, err := GetSaramaConfigFromYAMLString(configYAML)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer. %w", err)
	}
	t, err := NewToKafka[O](name, topic, producer, opts...)
	if err != nil {
		_ = producer.Close()
		return nil, err
	}
	return t, nil
}

// GetName returns the name.
func (tk *ToKafka[O]) GetName() string {
	return tk.name
}

// Write sends every element as one message stamped with its event time.
func (tk *ToKafka[O]) Write(ctx context.Context, elements []isb.WindowedElement[O]) []error {
	errs := make([]error, len(elements))
	labels := map[string]string{metrics.LabelVertex: tk.name, metrics.LabelPipeline: tk.pipelineName}
	wg := new(sync.WaitGroup)

	sinkCh := make(chan *sinkMessage)

	for i := uint32(0); i < tk.concurrency; i++ {
		wg.Add(1)
		go func(msgCh chan *sinkMessage) {
			defer wg.Done()
			for message := range msgCh {
				_, _, err := tk.producer.SendMessage(message.message)
				if err != nil {
					kafkaSinkWriteErrors.With(labels).Inc()
					tk.log.Errorw("SendMessage failed", zap.Error(err), zap.Int("index", message.index))
				} else {
					kafkaSinkWriteCount.With(labels).Inc()
				}
				//keep error in message index
				errs[message.index] = err
			}
		}(sinkCh)
	}
	for idx, e := range elements {
		payload, err := isb.MarshalElement(e)
		if err != nil {
			errs[idx] = isb.NoRetryableBufferWriteErr{Name: tk.name, Message: err.Error()}
			continue
		}
		message := &sarama.ProducerMessage{
			Topic:     tk.topic,
			Value:     sarama.ByteEncoder(payload),
			Timestamp: e.EventTime,
		}
		select {
		case sinkCh <- &sinkMessage{index: idx, message: message}:
		case <-ctx.Done():
			errs[idx] = ctx.Err()
		}
	}
	close(sinkCh)
	wg.Wait()
	return errs
}

func (tk *ToKafka[O]) Close() error {
	tk.log.Info("Closing kafka producer...")
	return tk.producer.Close()
}

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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigName+".yaml"), []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "stage: counter\n")
	g, err := LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	require.NoError(t, err)
	c := g.GetEngineConfig()
	assert.Equal(t, "counter", c.Stage)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, 1024, c.TimerCacheSize)
	assert.Equal(t, 100*time.Millisecond, c.Retry.Interval)
	assert.Equal(t, StoreTypeInMem, c.Store.Type)
	assert.Equal(t, "stateful", c.Store.Bucket)
	assert.Equal(t, "stateful:", c.Store.Redis.Prefix)
}

func TestLoadConfig_Store(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
workers: 8
retry:
  interval: 250ms
store:
  type: redis
  bucket: counts
  redis:
    addrs: ["localhost:6379"]
`)
	g, err := LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	require.NoError(t, err)
	c := g.GetEngineConfig()
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, 250*time.Millisecond, c.Retry.Interval)
	assert.Equal(t, StoreTypeRedis, c.Store.Type)
	assert.Equal(t, []string{"localhost:6379"}, c.Store.Redis.Addrs)
}

func TestLoadConfig_Outputs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
outputs:
  main:
    type: redis
    onFull: discardLatest
    redis:
      addrs: ["localhost:6379"]
      stream: counts
  late:
    type: kafka
    kafka:
      brokers: ["localhost:9092"]
      topic: late-counts
`)
	g, err := LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	require.NoError(t, err)
	c := g.GetEngineConfig()
	require.Len(t, c.Outputs, 2)
	assert.Equal(t, OutputTypeRedis, c.Outputs["main"].Type)
	assert.Equal(t, "discardLatest", c.Outputs["main"].OnFull)
	assert.Equal(t, []string{"localhost:6379"}, c.Outputs["main"].Redis.Addrs)
	assert.Equal(t, "counts", c.Outputs["main"].Redis.Stream)
	assert.Equal(t, "late-counts", c.Outputs["late"].Kafka.Topic)

	writeConfig(t, dir, "outputs:\n  main:\n    type: kafka\n")
	_, err = LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	assert.ErrorContains(t, err, `output "main"`)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	assert.Error(t, err)

	writeConfig(t, dir, "store:\n  type: redis\n")
	_, err = LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	assert.ErrorContains(t, err, "redis store requires")

	writeConfig(t, dir, "store:\n  type: etcd\n")
	_, err = LoadConfig(nil, WithConfigPaths(dir), WithoutWatch())
	assert.ErrorContains(t, err, "unsupported store type")

	_, err = LoadConfig(nil, WithConfigName(""))
	assert.Error(t, err)
}

func TestLoadConfig_Reload(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "workers: 2\n")
	var reloads atomic.Int32
	g, err := LoadConfig(func(err error) { t.Logf("reload error: %v", err) },
		WithConfigPaths(dir), WithOnReload(func(EngineConfig) { reloads.Inc() }))
	require.NoError(t, err)
	assert.Equal(t, 2, g.GetEngineConfig().Workers)

	writeConfig(t, dir, "workers: 6\n")
	assert.Eventually(t, func() bool {
		return g.GetEngineConfig().Workers == 6 && reloads.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{"inmem", StoreConfig{Type: StoreTypeInMem, Bucket: "b"}, false},
		{"no bucket", StoreConfig{Type: StoreTypeInMem}, true},
		{"jetstream without url", StoreConfig{Type: StoreTypeJetStream, Bucket: "b"}, true},
		{"jetstream", StoreConfig{Type: StoreTypeJetStream, Bucket: "b", JetStream: JetStreamConfig{URL: "nats://x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.store.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutputConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		output  OutputConfig
		wantErr bool
	}{
		{"log", OutputConfig{Type: OutputTypeLog}, false},
		{"blackhole", OutputConfig{Type: OutputTypeBlackhole, OnFull: "retryUntilSuccess"}, false},
		{"bad strategy", OutputConfig{Type: OutputTypeLog, OnFull: "drop"}, true},
		{"unknown", OutputConfig{Type: "file"}, true},
		{"redis without stream", OutputConfig{Type: OutputTypeRedis, Redis: RedisOutputConfig{RedisConfig: RedisConfig{Addrs: []string{"x"}}}}, true},
		{"jetstream", OutputConfig{Type: OutputTypeJetStream, JetStream: JetStreamOutputConfig{URL: "nats://x", Stream: "s", Subject: "s"}}, false},
		{"kafka without topic", OutputConfig{Type: OutputTypeKafka, Kafka: KafkaOutputConfig{Brokers: []string{"b"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.output.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

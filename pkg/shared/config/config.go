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

// Package config loads the engine configuration from a yaml file and reloads it when the file changes.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigName is the file name, without extension, looked up in the config paths.
	DefaultConfigName = "stateful-config"
	// DefaultConfigPath is where the config file is mounted.
	DefaultConfigPath = "/etc/stateful"
	// EnvPrefix prefixes the environment variables overriding file values, e.g. STATEFUL_WORKERS.
	EnvPrefix = "STATEFUL"
)

// StoreType selects the kv backend.
type StoreType string

const (
	StoreTypeInMem     StoreType = "inmem"
	StoreTypeRedis     StoreType = "redis"
	StoreTypeJetStream StoreType = "jetstream"
)

// EngineConfig is the configuration of a stateful stage.
type EngineConfig struct {
	// Stage names the vertex, used as metric label and key prefix.
	Stage string `json:"stage"`
	// Pipeline is the metric label of the owning pipeline.
	Pipeline string `json:"pipeline"`
	// Workers is the number of key shards processed in parallel.
	Workers int `json:"workers"`
	// TimerCacheSize is the number of keys whose pending timers are cached in memory.
	TimerCacheSize int         `json:"timerCacheSize"`
	Retry          RetryConfig `json:"retry"`
	Store          StoreConfig `json:"store"`
	// ProcessingTimeTick is a cron spec, seconds optional, at which the processing time domains advance.
	// Empty disables processing time timers.
	ProcessingTimeTick string `json:"processingTimeTick"`
	// Processor selects a builtin processor over raw payloads.
	Processor ProcessorConfig `json:"processor"`
	// Outputs maps an output tag to the buffer its elements are written to. Keys are lower-cased by the
	// loader.
	Outputs map[string]OutputConfig `json:"outputs"`
}

// RetryConfig is the backoff used for output writes and failed bundles.
type RetryConfig struct {
	Interval time.Duration `json:"interval"`
	Factor   float64       `json:"factor"`
	Jitter   float64       `json:"jitter"`
	// Cap bounds the interval growth, zero means no cap.
	Cap time.Duration `json:"cap"`
}

// StoreConfig selects and configures the kv backend holding timers and holds.
type StoreConfig struct {
	Type StoreType `json:"type"`
	// Bucket is the base bucket name, the timer and hold buckets are derived from it.
	Bucket    string          `json:"bucket"`
	Redis     RedisConfig     `json:"redis"`
	JetStream JetStreamConfig `json:"jetstream"`
}

type RedisConfig struct {
	Addrs      []string `json:"addrs"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	MasterName string   `json:"masterName"`
	Prefix     string   `json:"prefix"`
}

type JetStreamConfig struct {
	URL     string `json:"url"`
	History uint8  `json:"history"`
}

type ProcessorConfig struct {
	// Builtin is the name of the builtin processor: count, filter or dedup.
	Builtin string            `json:"builtin"`
	KWArgs  map[string]string `json:"kwargs"`
}

// OutputType selects the buffer an output tag is written to.
type OutputType string

const (
	OutputTypeLog       OutputType = "log"
	OutputTypeBlackhole OutputType = "blackhole"
	OutputTypeRedis     OutputType = "redis"
	OutputTypeJetStream OutputType = "jetstream"
	OutputTypeKafka     OutputType = "kafka"
)

// OutputConfig configures the buffer of one output tag.
type OutputConfig struct {
	Type OutputType `json:"type"`
	// MaxLength and UsageLimit decide when a redis or jetstream buffer is full.
	MaxLength  int64   `json:"maxLength"`
	UsageLimit float64 `json:"usageLimit"`
	// OnFull is retryUntilSuccess or discardLatest.
	OnFull    string                `json:"onFull"`
	Redis     RedisOutputConfig     `json:"redis"`
	JetStream JetStreamOutputConfig `json:"jetstream"`
	Kafka     KafkaOutputConfig     `json:"kafka"`
}

type RedisOutputConfig struct {
	RedisConfig `mapstructure:",squash"`
	Stream      string `json:"stream"`
}

type JetStreamOutputConfig struct {
	URL     string `json:"url"`
	Stream  string `json:"stream"`
	Subject string `json:"subject"`
}

type KafkaOutputConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	// Concurrency is the number of parallel sends of one write.
	Concurrency uint32 `json:"concurrency"`
	// Config is a yaml rendition of the sarama config.
	Config string `json:"config"`
}

// Validate checks the type specific settings.
func (o OutputConfig) Validate() error {
	switch o.OnFull {
	case "", "retryUntilSuccess", "discardLatest":
	default:
		return fmt.Errorf("unsupported onFull strategy %q", o.OnFull)
	}
	switch o.Type {
	case OutputTypeLog, OutputTypeBlackhole:
	case OutputTypeRedis:
		if len(o.Redis.Addrs) == 0 || o.Redis.Stream == "" {
			return fmt.Errorf("redis output requires addresses and a stream")
		}
	case OutputTypeJetStream:
		if o.JetStream.URL == "" || o.JetStream.Stream == "" || o.JetStream.Subject == "" {
			return fmt.Errorf("jetstream output requires a url, a stream and a subject")
		}
	case OutputTypeKafka:
		if len(o.Kafka.Brokers) == 0 || o.Kafka.Topic == "" {
			return fmt.Errorf("kafka output requires brokers and a topic")
		}
	default:
		return fmt.Errorf("unsupported output type %q", o.Type)
	}
	return nil
}

// Validate checks the values that have no usable zero value.
func (c EngineConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.TimerCacheSize <= 0 {
		return fmt.Errorf("timerCacheSize must be positive, got %d", c.TimerCacheSize)
	}
	if c.Retry.Interval <= 0 {
		return fmt.Errorf("retry interval must be positive, got %s", c.Retry.Interval)
	}
	for tag, o := range c.Outputs {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("output %q: %w", tag, err)
		}
	}
	return c.Store.Validate()
}

// Validate checks the backend specific settings.
func (s StoreConfig) Validate() error {
	if s.Bucket == "" {
		return fmt.Errorf("store bucket is required")
	}
	switch s.Type {
	case StoreTypeInMem:
	case StoreTypeRedis:
		if len(s.Redis.Addrs) == 0 {
			return fmt.Errorf("redis store requires at least one address")
		}
	case StoreTypeJetStream:
		if s.JetStream.URL == "" {
			return fmt.Errorf("jetstream store requires a url")
		}
	default:
		return fmt.Errorf("unsupported store type %q", s.Type)
	}
	return nil
}

// GlobalConfig holds the latest loaded configuration, it is swapped on file changes.
type GlobalConfig struct {
	conf *EngineConfig
	lock *sync.RWMutex
}

// GetEngineConfig returns a copy of the current configuration.
func (g *GlobalConfig) GetEngineConfig() EngineConfig {
	g.lock.RLock()
	defer g.lock.RUnlock()
	c := *g.conf
	c.Store.Redis.Addrs = append([]string(nil), g.conf.Store.Redis.Addrs...)
	if g.conf.Outputs != nil {
		c.Outputs = make(map[string]OutputConfig, len(g.conf.Outputs))
		for tag, o := range g.conf.Outputs {
			c.Outputs[tag] = o
		}
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stage", "stateful")
	v.SetDefault("pipeline", "default")
	v.SetDefault("workers", 4)
	v.SetDefault("timerCacheSize", 1024)
	v.SetDefault("retry.interval", 100*time.Millisecond)
	v.SetDefault("retry.factor", 1.0)
	v.SetDefault("retry.jitter", 0.1)
	v.SetDefault("retry.cap", time.Duration(0))
	v.SetDefault("store.type", string(StoreTypeInMem))
	v.SetDefault("store.bucket", "stateful")
	v.SetDefault("store.redis.prefix", "stateful:")
	v.SetDefault("store.jetstream.history", 1)
}

func unmarshal(v *viper.Viper) (*EngineConfig, error) {
	conf := &EngineConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed unmarshal configuration file. %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration. %w", err)
	}
	return conf, nil
}

// LoadConfig reads the config file and watches it. A reload that fails to parse or validate keeps the
// previous configuration and is reported to onErrorReloading, a successful one to every onReload hook.
func LoadConfig(onErrorReloading func(error), opts ...Option) (*GlobalConfig, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	v := viper.New()
	v.SetConfigName(o.configName)
	v.SetConfigType("yaml")
	for _, p := range o.configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration file. %w", err)
	}
	conf, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	r := &GlobalConfig{
		conf: conf,
		lock: new(sync.RWMutex),
	}
	if !o.watch {
		return r, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cf, err := unmarshal(v)
		if err != nil {
			if onErrorReloading != nil {
				onErrorReloading(err)
			}
			return
		}
		r.lock.Lock()
		r.conf = cf
		r.lock.Unlock()
		for _, fn := range o.onReload {
			fn(*cf)
		}
	})
	v.WatchConfig()
	return r, nil
}

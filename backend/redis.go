package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pulsekit/pulse/core"
)

// Default bound on queued entries per list. Collectors that fall behind lose
// the oldest entries rather than growing Redis without limit.
const defaultQueueLimit = 10000

// RedisQueue transmits by pushing JSON payloads onto Redis lists, one for
// metrics and one for error reports. A collector drains the lists with
// BRPOP. Useful where an OTLP collector is unavailable but Redis already is.
type RedisQueue struct {
	url        string
	prefix     string
	queueLimit int64

	// client is read by submissions racing Stop; the pointer swap keeps a
	// late submission on the old client, where Exec fails safely after Close
	client atomic.Pointer[redis.Client]
	loaded atomic.Bool
}

// NewRedisQueue creates the Redis transport. url must be a redis:// URL;
// prefix namespaces the queues (defaults to "pulse").
func NewRedisQueue(url, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "pulse"
	}
	return &RedisQueue{
		url:        url,
		prefix:     prefix,
		queueLimit: defaultQueueLimit,
	}
}

// Start parses the URL, connects, and verifies the server with a ping
func (q *RedisQueue) Start(ctx context.Context) error {
	opts, err := redis.ParseURL(q.url)
	if err != nil {
		return core.NewAgentError("backend.Start", "backend",
			fmt.Errorf("%w: %v", core.ErrConfigInvalid, err))
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return core.NewAgentError("backend.Start", "backend",
			fmt.Errorf("%w: redis ping failed at %s: %v", core.ErrBackendUnavailable, opts.Addr, err))
	}

	q.client.Store(client)
	q.loaded.Store(true)
	return nil
}

// Stop closes the connection. Idempotent.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.loaded.Store(false)

	client := q.client.Swap(nil)
	if client == nil {
		return nil
	}

	if err := client.Close(); err != nil {
		return core.NewAgentError("backend.Stop", "backend", err)
	}
	return nil
}

// Loaded reports whether the transport is connected
func (q *RedisQueue) Loaded() bool {
	return q.loaded.Load()
}

// MetricQueue returns the Redis key metrics are pushed to
func (q *RedisQueue) MetricQueue() string { return q.prefix + ":metrics" }

// ErrorQueue returns the Redis key error reports are pushed to
func (q *RedisQueue) ErrorQueue() string { return q.prefix + ":errors" }

// metricPayload is the wire shape of one queued metric
type metricPayload struct {
	Type      string          `json:"type"` // gauge, counter, distribution
	Key       string          `json:"key"`
	Value     float64         `json:"value"`
	Tags      json.RawMessage `json:"tags"`
	Timestamp int64           `json:"timestamp"`
}

// errorPayload is the wire shape of one queued error report
type errorPayload struct {
	Transaction *core.Transaction      `json:"transaction"`
	Kind        string                 `json:"kind"`
	Message     string                 `json:"message"`
	Backtrace   []core.StackFrame      `json:"backtrace"`
	Tags        json.RawMessage        `json:"tags"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// SetGauge queues a gauge sample
func (q *RedisQueue) SetGauge(key string, value float64, tags core.EncodedTags) error {
	return q.pushMetric("gauge", key, value, tags)
}

// IncrementCounter queues a counter increment
func (q *RedisQueue) IncrementCounter(key string, amount float64, tags core.EncodedTags) error {
	return q.pushMetric("counter", key, amount, tags)
}

// AddDistributionValue queues one distribution sample
func (q *RedisQueue) AddDistributionValue(key string, value float64, tags core.EncodedTags) error {
	return q.pushMetric("distribution", key, value, tags)
}

// SendError queues an error report
func (q *RedisQueue) SendError(report core.ErrorReport) error {
	payload := errorPayload{
		Transaction: report.Transaction,
		Kind:        report.Kind,
		Message:     report.Message,
		Backtrace:   report.Backtrace,
		Tags:        rawTags(report.Tags),
		Context:     report.Context,
		Timestamp:   time.Now().Unix(),
	}
	return q.push(q.ErrorQueue(), payload)
}

func (q *RedisQueue) pushMetric(metricType, key string, value float64, tags core.EncodedTags) error {
	payload := metricPayload{
		Type:      metricType,
		Key:       key,
		Value:     value,
		Tags:      rawTags(tags),
		Timestamp: time.Now().Unix(),
	}
	return q.push(q.MetricQueue(), payload)
}

func (q *RedisQueue) push(queue string, payload interface{}) error {
	client := q.client.Load()
	if !q.loaded.Load() || client == nil {
		return core.ErrBackendUnavailable
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return core.NewAgentError("backend.Submit", "backend", err)
	}

	ctx := context.Background()
	pipe := client.Pipeline()
	pipe.LPush(ctx, queue, data)
	pipe.LTrim(ctx, queue, 0, q.queueLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewAgentError("backend.Submit", "backend",
			fmt.Errorf("%w: %v", core.ErrSubmissionFailed, err))
	}
	return nil
}

// rawTags keeps already-encoded tags as raw JSON, substituting an empty
// object when encoding was skipped upstream
func rawTags(tags core.EncodedTags) json.RawMessage {
	if len(tags) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(tags)
}

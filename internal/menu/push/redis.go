package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"menuboard/internal/menu/metrics"
)

// RedisSource relays envelopes published on a Redis pub/sub channel. It is an
// alternative transport for deployments where the catalog fans out changes
// through Redis instead of a websocket endpoint.
type RedisSource struct {
	client   *redis.Client
	channel  string
	target   Dispatcher
	settings Settings
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type RedisOption func(*RedisSource)

func WithRedisSettings(s Settings) RedisOption {
	return func(r *RedisSource) {
		r.settings = s
	}
}

func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *RedisSource) {
		r.logger = logger
	}
}

func WithRedisMetrics(m *metrics.Metrics) RedisOption {
	return func(r *RedisSource) {
		r.metrics = m
	}
}

func NewRedisSource(client *redis.Client, channel string, target Dispatcher, opts ...RedisOption) (*RedisSource, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	if target == nil {
		return nil, fmt.Errorf("push dispatcher is required")
	}

	r := &RedisSource{
		client:   client,
		channel:  channel,
		target:   target,
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Run subscribes and relays messages until ctx is done. The initial
// subscription is retried with backoff; once established, go-redis
// resubscribes on its own after connection loss.
func (r *RedisSource) Run(ctx context.Context) error {
	b := r.settings.newBackOff()

	var pubsub *redis.PubSub
	for {
		pubsub = r.client.Subscribe(ctx, r.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := b.NextBackOff()
			r.logger.Warn("redis subscribe failed", "channel", r.channel, "error", err, "retry_in", wait)
			r.metrics.IncrementReconnect("redis")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		break
	}
	defer pubsub.Close()

	r.logger.Info("redis push subscribed", "channel", r.channel)
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("redis subscription to %s closed", r.channel)
			}
			_ = r.target.DispatchRaw([]byte(msg.Payload))
		}
	}
}

// Publish encodes env and publishes it on channel. Used by the catalog side
// and by tests.
func Publish(ctx context.Context, client *redis.Client, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return client.Publish(ctx, channel, data).Err()
}

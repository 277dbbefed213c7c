package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/relay/internal/enrichment"
)

// DefaultChannel carries one message per delivered run.
const DefaultChannel = "relay:events"

// message is published to Redis for dashboards and other listeners.
type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPublisher implements enrichment.Publisher using Redis pub/sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher on channel (DefaultChannel when empty).
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// PublishRun publishes summary on the channel.
func (r *RedisPublisher) PublishRun(ctx context.Context, summary enrichment.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	body, err := json.Marshal(message{Event: summary.Event, Data: data, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	receivers, err := r.client.Publish(ctx, r.channel, body).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	r.logger.Debug("run published", zap.String("channel", r.channel), zap.Int64("receivers", receivers))
	return nil
}

// Subscribe calls handler for every run published on the channel until the returned cancel is called.
func (r *RedisPublisher) Subscribe(handler func(event string, summary enrichment.RunSummary)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var m message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					continue
				}
				var s enrichment.RunSummary
				if err := json.Unmarshal(m.Data, &s); err != nil {
					continue
				}
				handler(m.Event, s)
			}
		}
	}()
	return cancelCtx, nil
}

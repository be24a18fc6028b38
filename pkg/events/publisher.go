package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types emitted when the placement set of a schedule changes.
const (
	ScheduleCreated   = "schedule.created"
	ScheduleModified  = "schedule.modified"
	ScheduleDeleted   = "schedule.deleted"
	ScheduleOptimized = "schedule.optimized"
)

// Event is the JSON message published to subscribers.
type Event struct {
	Type       string      `json:"type"`
	ScheduleID string      `json:"schedule_id"`
	EntryID    string      `json:"entry_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload,omitempty"`
}

// Publisher delivers schedule events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// redisPublishClient is the subset of *redis.Client the publisher needs.
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher fans events out over a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher builds a publisher on the given channel.
func NewRedisPublisher(client redisPublishClient, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish marshals and sends the event. Having no subscribers is not an error.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.channel, err)
	}
	p.logger.Debug("event published",
		zap.String("type", event.Type),
		zap.String("schedule_id", event.ScheduleID),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

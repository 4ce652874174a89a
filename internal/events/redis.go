package events

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/presale_layer/internal/logging"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "presale.events"

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards events to a Redis pub/sub channel. Handle never
// blocks the caller; events that do not fit in the queue are dropped and
// counted.
type RedisPublisher struct {
	client  redisClient
	channel string
	queue   chan Event
	logger  *logging.Logger
	dropped atomic.Uint64
}

// NewRedisClient connects a go-redis client to addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisPublisher creates a publisher with a queue of queueSize events.
func NewRedisPublisher(client redisClient, channel string, queueSize int, logger *logging.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		queue:   make(chan Event, queueSize),
		logger:  logger,
	}
}

// Handle enqueues e for publishing. It matches EventHandler.
func (p *RedisPublisher) Handle(e Event) {
	select {
	case p.queue <- e:
	default:
		p.dropped.Add(1)
		p.logger.WithField("event_type", string(e.Type)).Warn("Event queue full, dropping event")
	}
}

// Dropped returns how many events were discarded.
func (p *RedisPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued events until ctx is done.
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.queue:
			if err := p.Publish(ctx, e); err != nil {
				p.logger.WithContext(ctx).WithError(err).
					WithField("event_id", e.ID).
					Warn("Failed to publish event")
			}
		}
	}
}

// Publish sends one event synchronously.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}

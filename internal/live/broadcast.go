package live

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster carries "room changed" events from writers to every hub.
// Publish satisfies ledger.Publisher.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string) error
	// Run delivers events to handle until ctx is done.
	Run(ctx context.Context, handle func(ctx context.Context, roomID string)) error
}

// LocalBroadcaster is an in-process Broadcaster for single-instance
// deployments.
type LocalBroadcaster struct {
	events chan string
}

func NewLocalBroadcaster(buffer int) *LocalBroadcaster {
	return &LocalBroadcaster{events: make(chan string, buffer)}
}

// Publish never blocks; when the buffer is full the event is dropped and
// subscribers catch up on the next change.
func (b *LocalBroadcaster) Publish(_ context.Context, roomID string) error {
	select {
	case b.events <- roomID:
		return nil
	default:
		return fmt.Errorf("live event buffer full, dropped update for room %s", roomID)
	}
}

func (b *LocalBroadcaster) Run(ctx context.Context, handle func(ctx context.Context, roomID string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case roomID := <-b.events:
			handle(ctx, roomID)
		}
	}
}

// RoomEventsChannel is the Redis pub/sub channel for room changes.
const RoomEventsChannel = "habitroom:room-events"

// RedisBroadcaster fans events out across server instances through Redis
// pub/sub.
type RedisBroadcaster struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster connects to redisURL (redis://...) and pings it.
func NewRedisBroadcaster(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisBroadcaster, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisBroadcaster{rdb: rdb, logger: logger}, nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID string) error {
	return b.rdb.Publish(ctx, RoomEventsChannel, roomID).Err()
}

func (b *RedisBroadcaster) Run(ctx context.Context, handle func(ctx context.Context, roomID string)) error {
	sub := b.rdb.Subscribe(ctx, RoomEventsChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RoomEventsChannel, err)
	}
	b.logger.Info("📡 listening for room events", zap.String("channel", RoomEventsChannel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(ctx, msg.Payload)
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}

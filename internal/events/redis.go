package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ActivityChannel carries every event.
const ActivityChannel = "events:posts"

// UserChannel returns the channel for events concerning userID.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// RedisPublisher publishes events as JSON over Redis pub/sub.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher wraps rdb. A nil client publishes nothing.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish sends ev to ActivityChannel and, unless users act on their own
// content, to the recipient's channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) (err error) {
	if p.rdb == nil {
		return nil
	}
	defer func() { record("redis", err) }()

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, ActivityChannel, payload)
	if ev.RecipientID != 0 && ev.RecipientID != ev.ActorID {
		pipe.Publish(ctx, UserChannel(ev.RecipientID), payload)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }

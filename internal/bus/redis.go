package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisChannel is the Redis pub/sub channel shared by gateway instances.
const DefaultRedisChannel = "brandchat:events"

// RedisBus fans publications out through Redis so that every gateway instance
// delivers them to its own local members. Membership stays local.
type RedisBus struct {
	table   *Table
	client  *redis.Client
	channel string
	log     *zerolog.Logger
}

// NewRedisBus creates a bus on top of a Redis client. Run must be started
// before publications from other instances are received.
func NewRedisBus(client *redis.Client, channel string, logger *zerolog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBus{
		table:   NewTable(),
		client:  client,
		channel: channel,
		log:     orNop(logger),
	}
}

// Add subscribes sub to group on this instance.
func (b *RedisBus) Add(_ context.Context, group string, sub Subscriber) error {
	b.table.Add(group, sub)
	return nil
}

// Discard unsubscribes sub from group on this instance.
func (b *RedisBus) Discard(_ context.Context, group string, sub Subscriber) error {
	b.table.Discard(group, sub)
	return nil
}

// Members lists subscriber ids of group on this instance.
func (b *RedisBus) Members(group string) []string {
	return b.table.Members(group)
}

// Publish sends the publication to every instance, this one included.
func (b *RedisBus) Publish(ctx context.Context, pub Publication) error {
	data, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("marshal publication: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and delivers incoming publications locally
// until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.log.Info().Str("channel", b.channel).Msg("redis bus subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var pub Publication
			if err := json.Unmarshal([]byte(msg.Payload), &pub); err != nil {
				b.log.Warn().Err(err).Msg("malformed publication")
				continue
			}
			deliver(b.table, pub, b.log)
		}
	}
}

// Ping checks that Redis is reachable.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

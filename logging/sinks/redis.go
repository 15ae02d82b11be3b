package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"skirmish/logging"
)

const redisPublishTimeout = 2 * time.Second

// Publisher is the slice of the redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis publishes msgpack-encoded events to a pub/sub channel so spectators
// and tooling can follow a match live.
type Redis struct {
	client  Publisher
	channel string
}

func NewRedis(client Publisher, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

// DialRedis connects a redis client for the sink and verifies it with PING.
func DialRedis(ctx context.Context, cfg logging.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis sink ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(client, cfg.Channel), nil
}

func (s *Redis) Write(event logging.Event) error {
	data, err := EncodeRedisEvent(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	return s.client.Publish(ctx, s.channel, data).Err()
}

func (s *Redis) Close(context.Context) error {
	return s.client.Close()
}

// EncodeRedisEvent renders the wire form published on the channel.
func EncodeRedisEvent(event logging.Event) ([]byte, error) {
	data, err := msgpack.Marshal(&event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return data, nil
}

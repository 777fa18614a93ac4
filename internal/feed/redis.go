package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPrefix = "feed:"

// RedisBroker implements Broker over Redis pub/sub. Each collection maps to
// one channel; every subscriber holds its own PubSub connection.
type RedisBroker struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisClient dials Redis from a URL and verifies the connection.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

func NewRedisBroker(client *redis.Client, logger *logrus.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

var _ Broker = (*RedisBroker)(nil)

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+ev.Collection, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, collection string, h Handler) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channelPrefix+collection)
	// Wait for the subscription to be established so no events published
	// after Subscribe returns are missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.WithError(err).WithField("channel", msg.Channel).
					Warn("Dropping malformed feed event")
				continue
			}
			h(ev)
		}
	}()

	return &redisSubscription{ps: ps}, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

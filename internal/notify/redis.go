package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pkordes/splitbuy/internal/domain"
)

// redisPublisher is the part of a go-redis client the Redis notifier uses.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
}

// Redis publishes each notification as JSON on a per-user pub/sub channel,
// <prefix>:<userID>, so a realtime gateway can subscribe to exactly the
// users it has connected.
type Redis struct {
	rdb    redisPublisher
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(rdb redisPublisher, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection with PING.
// The returned client is owned by the caller.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("notify.DialRedis: ping: %w", err)
	}
	return rdb, nil
}

// Channel returns the pub/sub channel for userID.
func (r *Redis) Channel(userID int64) string {
	return r.prefix + ":" + strconv.FormatInt(userID, 10)
}

// Notify implements service.Notifier. A notification published while nobody is
// subscribed is dropped by Redis; that is acceptable for realtime pushes.
func (r *Redis) Notify(ctx context.Context, n domain.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify.Redis.Notify: marshal: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.Channel(n.UserID), raw).Err(); err != nil {
		return fmt.Errorf("notify.Redis.Notify: publish: %w", err)
	}
	return nil
}

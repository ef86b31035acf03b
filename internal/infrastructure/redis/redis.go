package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	soldOutPrefix   = "webinar:soldout:"
	capacityPrefix  = "webinar:capacity:"
	rateLimitPrefix = "ratelimit:"

	capacityTTL = 24 * time.Hour
)

// KEYS[1]=sold-out marker, KEYS[2]=last known capacity
// ARGV[1]=capacity the mark was computed from, ARGV[2]=marker ttl ms
var markSoldOutScript = redis.NewScript(`
local known = redis.call("GET", KEYS[2])
if known and known ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

type Cache struct {
	Client     *redis.Client
	soldOutTTL time.Duration
}

func New(addr, pass string, db int, soldOutTTL time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return NewWithClient(rdb, soldOutTTL)
}

func NewWithClient(rdb *redis.Client, soldOutTTL time.Duration) *Cache {
	if soldOutTTL <= 0 {
		soldOutTTL = 10 * time.Minute
	}
	return &Cache{Client: rdb, soldOutTTL: soldOutTTL}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.Client.Close()
}

func (c *Cache) IsSoldOut(ctx context.Context, webinarID string) (bool, error) {
	_, err := c.Client.Get(ctx, soldOutPrefix+webinarID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSoldOut sets the marker unless a snapshot has since recorded a
// different capacity for the webinar.
func (c *Cache) MarkSoldOut(ctx context.Context, webinarID string, capacity int) error {
	keys := []string{soldOutPrefix + webinarID, capacityPrefix + webinarID}
	return markSoldOutScript.Run(ctx, c.Client, keys, strconv.Itoa(capacity), c.soldOutTTL.Milliseconds()).Err()
}

// ClearSoldOut is called when a snapshot may have changed capacity.
func (c *Cache) ClearSoldOut(ctx context.Context, webinarID string, capacity int) error {
	_, err := c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, capacityPrefix+webinarID, strconv.Itoa(capacity), capacityTTL)
		p.Del(ctx, soldOutPrefix+webinarID)
		return nil
	})
	return err
}

// AllowRequest: Simple Fixed Window Rate Limit
func (c *Cache) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitPrefix + key
	count, err := c.Client.Incr(ctx, k).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, k, window).Err()
	}
	return count <= int64(limit), nil
}

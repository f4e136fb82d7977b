package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LookupCheckoutKey returns the order id previously stored for an idempotency
// key, if any. A hit means the checkout already committed and must not run
// again.
func (c *Client) LookupCheckoutKey(ctx context.Context, key string) (string, bool, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("checkout:%s", key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return orderID, true, nil
}

// StoreCheckoutKey records the order id created for an idempotency key. The
// write is SETNX so when two submits of the same key race, the first writer's
// mapping survives. Returns the order id stored under the key, which on a
// lost race is the winner's, not orderID.
func (c *Client) StoreCheckoutKey(ctx context.Context, key, orderID string, ttl time.Duration) (string, error) {
	redisKey := fmt.Sprintf("checkout:%s", key)

	set, err := c.rdb.SetNX(ctx, redisKey, orderID, ttl).Result()
	if err != nil {
		return "", err
	}
	if set {
		return orderID, nil
	}

	winner, err := c.rdb.Get(ctx, redisKey).Result()
	if err != nil {
		return "", err
	}
	return winner, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

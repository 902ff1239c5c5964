package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/hold_rooms.lua
var holdRoomsScript string

//go:embed scripts/release_rooms.lua
var releaseRoomsScript string

type Client struct {
	rdb           *redis.Client
	holdScript    *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		holdScript:    redis.NewScript(holdRoomsScript),
		releaseScript: redis.NewScript(releaseRoomsScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func nightKeys(roomID int64, nights []time.Time) []string {
	keys := make([]string, len(nights))
	for i, n := range nights {
		keys[i] = fmt.Sprintf("hold:room:%d:%s", roomID, n.Format("2006-01-02"))
	}
	return keys
}

// HoldRoomNights atomically places a short-TTL hold on every night of a
// requested stay. Returns false when any night is already held by another
// booking attempt. This is a fast-path guard only; the database's locked
// create remains the authority.
func (c *Client) HoldRoomNights(ctx context.Context, roomID int64, nights []time.Time, owner string, ttl time.Duration) (bool, error) {
	if len(nights) == 0 {
		return true, nil
	}

	result, err := c.holdScript.Run(ctx, c.rdb, nightKeys(roomID, nights), owner, int(ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("hold rooms script failed: %w", err)
	}

	held, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}
	return held == 1, nil
}

// ReleaseRoomNights drops the caller's holds, e.g. after the database
// rejected the create. Holds not owned by the caller are left alone.
func (c *Client) ReleaseRoomNights(ctx context.Context, roomID int64, nights []time.Time, owner string) error {
	if len(nights) == 0 {
		return nil
	}

	_, err := c.releaseScript.Run(ctx, c.rdb, nightKeys(roomID, nights), owner).Result()
	if err != nil {
		return fmt.Errorf("release rooms script failed: %w", err)
	}
	return nil
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the stored value for an idempotency key, or
// redis.Nil when absent
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
}

// ClaimIdempotencyKey reserves an idempotency key if unclaimed, storing
// the given marker value. Returns true when this caller won the claim.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Result()
}

// ReleaseIdempotencyKey drops a claimed key so the caller's retry is not
// blocked by a request that never completed
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

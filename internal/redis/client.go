package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tradedeck/internal/config"
	"tradedeck/internal/models"
)

// ErrNotFound is returned when a key does not exist or has expired
var ErrNotFound = redis.Nil

// Client wraps the Redis client with dashboard-specific operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Session storage

// SetSession stores a session payload under the token with a TTL
func (c *Client) SetSession(ctx context.Context, token string, session interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, "session:"+token, payload, ttl).Err()
}

// GetSession loads a session payload by token into dest. Returns ErrNotFound
// when the token is unknown or expired.
func (c *Client) GetSession(ctx context.Context, token string, dest interface{}) error {
	payload, err := c.rdb.Get(ctx, "session:"+token).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return nil
}

// DeleteSession removes a session token
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.rdb.Del(ctx, "session:"+token).Err()
}

// Market snapshot cache

// SetMarketSnapshot caches the latest simulated ticker set
func (c *Client) SetMarketSnapshot(ctx context.Context, data []models.MarketData, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal market snapshot: %w", err)
	}
	return c.rdb.Set(ctx, "market:snapshot", payload, ttl).Err()
}

// GetMarketSnapshot retrieves the cached ticker set
func (c *Client) GetMarketSnapshot(ctx context.Context) ([]models.MarketData, error) {
	payload, err := c.rdb.Get(ctx, "market:snapshot").Bytes()
	if err != nil {
		return nil, err
	}
	var data []models.MarketData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal market snapshot: %w", err)
	}
	return data, nil
}

// Pub/Sub for cross-instance fan-out

const marketTicksChannel = "market:ticks"

// PublishMarketTicks fans a simulator tick out to every service instance
func (c *Client) PublishMarketTicks(ctx context.Context, data []models.MarketData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal market ticks: %w", err)
	}
	return c.rdb.Publish(ctx, marketTicksChannel, payload).Err()
}

// SubscribeMarketTicks invokes fn for every tick published by any instance,
// this one included. Blocks until the context is cancelled; malformed
// payloads are skipped.
func (c *Client) SubscribeMarketTicks(ctx context.Context, fn func([]models.MarketData)) error {
	sub := c.rdb.Subscribe(ctx, marketTicksChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var data []models.MarketData
			if err := json.Unmarshal([]byte(msg.Payload), &data); err != nil {
				continue
			}
			fn(data)
		}
	}
}

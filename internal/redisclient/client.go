package redisclient

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	stockKeyPrefix   = "stock:"
	stockIndexKey    = "stock:ids"
	sessionKeyPrefix = "session:"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and checks the connection
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

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID string) string {
	return stockKeyPrefix + productID
}

// SetStock mirrors one product's available units and price
func (c *Client) SetStock(ctx context.Context, p models.Product) error {
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, stockKey(p.ID), "name", p.Name, "price", p.Price, "stock", p.Stock)
	pipe.SAdd(ctx, stockIndexKey, p.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror stock for %s: %w", p.ID, err)
	}
	return nil
}

// DeleteStock removes a product from the mirror
func (c *Client) DeleteStock(ctx context.Context, productID string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, stockKey(productID))
	pipe.SRem(ctx, stockIndexKey, productID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop stock for %s: %w", productID, err)
	}
	return nil
}

// SyncStock replaces the whole mirror with products, dropping ids no longer in the catalog
func (c *Client) SyncStock(ctx context.Context, products []models.Product) error {
	known, err := c.rdb.SMembers(ctx, stockIndexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list mirrored products: %w", err)
	}

	current := make(map[string]bool, len(products))
	pipe := c.rdb.TxPipeline()
	for _, p := range products {
		current[p.ID] = true
		pipe.HSet(ctx, stockKey(p.ID), "name", p.Name, "price", p.Price, "stock", p.Stock)
		pipe.SAdd(ctx, stockIndexKey, p.ID)
	}
	for _, id := range known {
		if !current[id] {
			pipe.Del(ctx, stockKey(id))
			pipe.SRem(ctx, stockIndexKey, id)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync stock: %w", err)
	}
	return nil
}

// SetSession marks username as logged in with the given session id
func (c *Client) SetSession(ctx context.Context, username, sessionID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, sessionKeyPrefix+username, sessionID, ttl).Err()
}

// ClearSession removes the session marker of username
func (c *Client) ClearSession(ctx context.Context, username string) error {
	return c.rdb.Del(ctx, sessionKeyPrefix+username).Err()
}

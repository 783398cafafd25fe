package redisclient

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockKey(t *testing.T) {
	assert.Equal(t, "stock:abc", stockKey("abc"))
}

func TestStockMirror(t *testing.T) {
	t.Skip("Integration test - requires redis")

	client, err := NewClient("localhost:6379", "", 15)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.SyncStock(ctx, []models.Product{
		{ID: "a", Name: "cat food", Price: 15000, Stock: 3},
		{ID: "b", Name: "dog food", Price: 25000, Stock: 1},
	}))

	stock, err := client.rdb.HGet(ctx, stockKey("a"), "stock").Int()
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	require.NoError(t, client.SyncStock(ctx, []models.Product{{ID: "a", Name: "cat food", Price: 15000, Stock: 2}}))
	exists, err := client.rdb.Exists(ctx, stockKey("b")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	ids, err := client.rdb.SMembers(ctx, stockIndexKey).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	require.NoError(t, client.SetSession(ctx, "ana", "s1", time.Minute))
	id, err := client.rdb.Get(ctx, sessionKeyPrefix+"ana").Result()
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
	require.NoError(t, client.ClearSession(ctx, "ana"))
	_, err = client.rdb.Get(ctx, sessionKeyPrefix+"ana").Result()
	assert.ErrorIs(t, err, redis.Nil)
}

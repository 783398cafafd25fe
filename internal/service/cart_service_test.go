package service

import (
	"context"
	"testing"

	"storefront/internal/shop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRequiresSession(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()

	_, err := app.cart.Add(ctx, "cat")
	assert.ErrorIs(t, err, shop.ErrNotLoggedIn)
	p, _ := app.catalog.Get(ctx, "cat")
	assert.Equal(t, 1, p.Stock)
}

func TestCartCatFoodScenario(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")

	summary, err := app.cart.Add(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Units)
	p, _ := app.catalog.Get(ctx, "cat")
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 0, app.rec.stock["cat"])

	_, err = app.cart.Add(ctx, "cat")
	assert.ErrorIs(t, err, shop.ErrOutOfStock)
	p, _ = app.catalog.Get(ctx, "cat")
	assert.Equal(t, 0, p.Stock)

	summary, err = app.cart.Remove(ctx, "Cat Food")
	require.NoError(t, err)
	assert.Zero(t, summary.Units)
	p, _ = app.catalog.Get(ctx, "cat")
	assert.Equal(t, 1, p.Stock)

	_, err = app.cart.Remove(ctx, "cat food")
	assert.ErrorIs(t, err, shop.ErrNotInCart)
}

func TestCartDoesNotRewriteProductsFile(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")

	_, err := app.cart.Add(ctx, "dog")
	require.NoError(t, err)
	assert.Equal(t, 5, app.persistedStock(t)["dog"])
}

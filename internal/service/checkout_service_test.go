package service

import (
	"context"
	"os"
	"testing"

	"storefront/internal/models"
	"storefront/internal/shop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillTestCart(t *testing.T, app *testApp) {
	t.Helper()
	ctx := context.Background()
	for _, id := range []string{"dog", "dog", "cat"} {
		_, err := app.cart.Add(ctx, id)
		require.NoError(t, err)
	}
}

func TestCheckoutCash(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")
	fillTestCart(t, app)

	rec, err := app.checkout.Checkout(ctx, CheckoutRequest{Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCash, rec.PaymentMethod)
	assert.Equal(t, int64(65000), rec.TotalPaid)
	assert.Equal(t, "ana", rec.Username)
	assert.Len(t, rec.TransactionID, 20)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, 2, rec.Items[0].Quantity)
	assert.Equal(t, 1, rec.Items[1].Quantity)

	history, dropped, err := app.store.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, history, 1)
	assert.Equal(t, rec.TransactionID, history[0].TransactionID)

	stored := app.persistedStock(t)
	assert.Equal(t, 3, stored["dog"])
	assert.Equal(t, 0, stored["cat"])

	summary, err := app.cart.Summary(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Units)

	status, err := app.checkout.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, shop.StateIdle, status.State)
	assert.Len(t, app.rec.purchases, 1)
}

func TestCheckoutStepwiseCard(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")
	fillTestCart(t, app)

	status, err := app.checkout.SelectMethod(ctx, "Tarjeta Visa")
	require.NoError(t, err)
	assert.Equal(t, shop.StateMethodSelected, status.State)
	assert.Equal(t, int64(65000), status.Total)

	_, err = app.checkout.Confirm(ctx)
	assert.ErrorIs(t, err, shop.ErrCardDetailsMissing)

	status, err = app.checkout.EnterDetails(ctx, shop.CardDetails{Number: "123", Expiry: "12/27", CVV: "123"})
	require.NoError(t, err)
	assert.Equal(t, shop.StateDetailsEntered, status.State)

	_, err = app.checkout.Confirm(ctx)
	assert.ErrorIs(t, err, shop.ErrCardNumber)
	summary, _ := app.cart.Summary(ctx)
	assert.Equal(t, 3, summary.Units)
	status, _ = app.checkout.Status(ctx)
	assert.Equal(t, shop.StateDetailsEntered, status.State)

	_, err = app.checkout.EnterDetails(ctx, shop.CardDetails{Number: "4111111111111111", Expiry: "12/27", CVV: "123"})
	require.NoError(t, err)
	rec, err := app.checkout.Confirm(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVisaCard, rec.PaymentMethod)
}

func TestCheckoutRejections(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()

	_, err := app.checkout.Checkout(ctx, CheckoutRequest{Method: "cash"})
	assert.ErrorIs(t, err, shop.ErrNotLoggedIn)

	app.login(t, "ana")
	_, err = app.checkout.Checkout(ctx, CheckoutRequest{Method: "cash"})
	assert.ErrorIs(t, err, shop.ErrEmptyCart)

	_, err = app.checkout.SelectMethod(ctx, "bitcoin")
	assert.ErrorIs(t, err, shop.ErrUnknownMethod)

	_, err = app.checkout.EnterDetails(ctx, shop.CardDetails{Number: "4111111111111111"})
	assert.ErrorIs(t, err, shop.ErrInvalidTransition)
}

func TestCheckoutHistoryWriteFailure(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")
	fillTestCart(t, app)

	require.NoError(t, os.Remove(app.store.Paths().History))
	require.NoError(t, os.Mkdir(app.store.Paths().History, 0o755))

	_, err := app.checkout.Checkout(ctx, CheckoutRequest{Method: "cash"})
	assert.ErrorIs(t, err, shop.ErrIO)
	assert.Equal(t, shop.KindIO, shop.KindOf(err))

	summary, _ := app.cart.Summary(ctx)
	assert.Equal(t, 3, summary.Units)
	p, _ := app.catalog.Get(ctx, "dog")
	assert.Equal(t, 3, p.Stock)
	assert.Empty(t, app.rec.purchases)
}

func TestTransactionIDsStrictlyIncrease(t *testing.T) {
	app := newTestApp(t, catDogCatalog()...)
	ctx := context.Background()
	app.login(t, "ana")

	var last string
	for i := 0; i < 3; i++ {
		_, err := app.cart.Add(ctx, "dog")
		require.NoError(t, err)
		rec, err := app.checkout.Checkout(ctx, CheckoutRequest{Method: "cash"})
		require.NoError(t, err)
		assert.Greater(t, rec.TransactionID, last)
		last = rec.TransactionID
	}
}

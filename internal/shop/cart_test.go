package shop

import (
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T, products ...models.Product) *Catalog {
	t.Helper()
	cat, _ := NewCatalog(products)
	return cat
}

func TestCartScenarioCatFood(t *testing.T) {
	cat := newTestCatalog(t, models.Product{ID: "cf", Name: "cat food", Price: 15000, Stock: 1})
	cart := &Cart{}

	_, err := cart.Add(cat, "cf")
	require.NoError(t, err)
	p, _ := cat.Get("cf")
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 1, cart.Len())

	_, err = cart.Add(cat, "cf")
	assert.ErrorIs(t, err, ErrOutOfStock)
	p, _ = cat.Get("cf")
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 1, cart.Len())

	_, err = cart.Remove(cat, "cat food")
	require.NoError(t, err)
	p, _ = cat.Get("cf")
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, 0, cart.Len())
}

func TestCartStockConservation(t *testing.T) {
	cat := newTestCatalog(t,
		models.Product{ID: "a", Name: "A", Price: 10, Stock: 5},
		models.Product{ID: "b", Name: "B", Price: 20, Stock: 3},
	)
	initial := map[string]int{"a": 5, "b": 3}
	cart := &Cart{}

	ops := []struct {
		add  bool
		id   string
		name string
	}{
		{true, "a", "A"}, {true, "a", "A"}, {true, "b", "B"}, {false, "", "a"},
		{true, "b", "B"}, {true, "b", "B"}, {true, "b", "B"}, {false, "", "B"},
	}
	for _, op := range ops {
		if op.add {
			_, _ = cart.Add(cat, op.id)
		} else {
			_, _ = cart.Remove(cat, op.name)
		}

		reserved := cart.Reserved()
		for _, p := range cat.List() {
			assert.Equal(t, initial[p.ID], p.Stock+reserved[p.ID], p.Name)
		}
	}
}

func TestCartRemoveNotInCart(t *testing.T) {
	cat := newTestCatalog(t, models.Product{ID: "a", Name: "A", Price: 10, Stock: 5})
	cart := &Cart{}

	_, err := cart.Remove(cat, "A")
	assert.ErrorIs(t, err, ErrNotInCart)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCartAddUnknownProduct(t *testing.T) {
	cart := &Cart{}
	_, err := cart.Add(newTestCatalog(t), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 0, cart.Len())
}

func TestCartTotalFollowsCurrentPrice(t *testing.T) {
	cat := newTestCatalog(t, models.Product{ID: "a", Name: "A", Price: 100, Stock: 5, Image: "a.png"})
	cart := &Cart{}
	_, _ = cart.Add(cat, "a")
	_, _ = cart.Add(cat, "a")
	assert.Equal(t, int64(200), cart.Total(cat))

	_, _, err := cat.Update("a", ProductDraft{Name: "A", Price: 150, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(300), cart.Total(cat))
}

func TestCartSummaryGroups(t *testing.T) {
	cat := newTestCatalog(t,
		models.Product{ID: "cat", Name: "cat food", Price: 15000, Stock: 5},
		models.Product{ID: "dog", Name: "dog food", Price: 25000, Stock: 5},
	)
	cart := &Cart{}
	_, _ = cart.Add(cat, "cat")
	_, _ = cart.Add(cat, "dog")
	_, _ = cart.Add(cat, "cat")

	s := cart.Summary(cat)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "cat food", s.Lines[0].Name)
	assert.Equal(t, 2, s.Lines[0].Quantity)
	assert.Equal(t, int64(30000), s.Lines[0].Subtotal)
	assert.Equal(t, 3, s.Units)
	assert.Equal(t, int64(55000), s.Total)
}

func TestCartReleaseAndDrop(t *testing.T) {
	cat := newTestCatalog(t,
		models.Product{ID: "a", Name: "A", Price: 10, Stock: 2},
		models.Product{ID: "b", Name: "B", Price: 10, Stock: 2},
	)
	cart := &Cart{}
	_, _ = cart.Add(cat, "a")
	_, _ = cart.Add(cat, "b")
	_, _ = cart.Add(cat, "a")

	assert.Equal(t, 2, cart.Drop("a"))
	assert.Equal(t, 1, cart.Len())

	cart.Release(cat)
	assert.Equal(t, 0, cart.Len())
	b, _ := cat.Get("b")
	assert.Equal(t, 2, b.Stock)
}

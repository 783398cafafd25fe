package shop

import (
	"fmt"
	"strings"

	"storefront/internal/models"
)

// Cart holds one product id per unit taken from stock.
type Cart struct {
	lines []string
}

// CartLine is a grouped view of identical units.
type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// CartSummary is what the presentation layer shows for a cart.
type CartSummary struct {
	Lines []CartLine `json:"lines"`
	Units int        `json:"units"`
	Total int64      `json:"total"`
}

// Len returns the number of units in the cart.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Add takes one unit of productID from stock and puts it in the cart.
// Stock and cart are untouched when the product is sold out.
func (c *Cart) Add(cat *Catalog, productID string) (models.Product, error) {
	p, err := cat.takeUnit(productID)
	if err != nil {
		if p != nil {
			return *p, err
		}
		return models.Product{}, err
	}
	c.lines = append(c.lines, productID)
	return *p, nil
}

// Remove drops one unit of the named product and returns it to stock.
func (c *Cart) Remove(cat *Catalog, productName string) (models.Product, error) {
	name := strings.TrimSpace(productName)
	for i, id := range c.lines {
		p, _ := cat.find(id)
		if p == nil || !strings.EqualFold(p.Name, name) {
			continue
		}
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		cat.returnUnit(id)
		return *p, nil
	}
	return models.Product{}, fmt.Errorf("%w: %s", ErrNotInCart, productName)
}

// Total prices every unit at the product's current price.
func (c *Cart) Total(cat *Catalog) int64 {
	var total int64
	for _, id := range c.lines {
		if p, _ := cat.find(id); p != nil {
			total += p.Price
		}
	}
	return total
}

// Summary groups units by product in the order they were first added.
func (c *Cart) Summary(cat *Catalog) CartSummary {
	summary := CartSummary{Lines: []CartLine{}}
	index := make(map[string]int)
	for _, id := range c.lines {
		p, _ := cat.find(id)
		if p == nil {
			continue
		}
		i, ok := index[id]
		if !ok {
			i = len(summary.Lines)
			index[id] = i
			summary.Lines = append(summary.Lines, CartLine{ProductID: id, Name: p.Name, UnitPrice: p.Price})
		}
		summary.Lines[i].Quantity++
		summary.Lines[i].Subtotal += p.Price
		summary.Units++
		summary.Total += p.Price
	}
	return summary
}

// Reserved counts units per product id.
func (c *Cart) Reserved() map[string]int {
	out := make(map[string]int, len(c.lines))
	for _, id := range c.lines {
		out[id]++
	}
	return out
}

// Release returns every unit to stock and empties the cart.
func (c *Cart) Release(cat *Catalog) {
	for _, id := range c.lines {
		cat.returnUnit(id)
	}
	c.Clear()
}

// Drop forgets every unit of productID without touching stock and returns how many were dropped.
func (c *Cart) Drop(productID string) int {
	kept := c.lines[:0]
	dropped := 0
	for _, id := range c.lines {
		if id == productID {
			dropped++
			continue
		}
		kept = append(kept, id)
	}
	c.lines = kept
	return dropped
}

// Clear empties the cart without touching stock.
func (c *Cart) Clear() {
	c.lines = nil
}

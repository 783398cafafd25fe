// Package shop holds the storefront domain: catalog, cart, checkout flow and sales reporting.
// It performs no I/O; persistence, logging and transport live in the service and api layers.
package shop

import (
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// NewProductID generates ids for products that arrive without one.
var NewProductID = func() string { return uuid.New().String() }

// errMissingField is an InvalidValue that also matches ErrEmptyField.
var errMissingField = fmt.Errorf("%w: %w", ErrInvalidValue, ErrEmptyField)

// ProductDraft carries admin-supplied product fields.
type ProductDraft struct {
	Name        string
	Price       int64
	Stock       int
	Description string
	Image       string
}

// ParseDraft converts text form fields into a draft.
func ParseDraft(name, price, stock, description string) (ProductDraft, error) {
	draft := ProductDraft{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	}
	price, stock = strings.TrimSpace(price), strings.TrimSpace(stock)
	if draft.Name == "" || price == "" || stock == "" {
		return draft, errMissingField
	}

	p, err := strconv.ParseInt(price, 10, 64)
	if err != nil {
		return draft, fmt.Errorf("%w: price %q is not a whole number", ErrInvalidValue, price)
	}
	s, err := strconv.Atoi(stock)
	if err != nil {
		return draft, fmt.Errorf("%w: stock %q is not a whole number", ErrInvalidValue, stock)
	}
	draft.Price, draft.Stock = p, s
	return draft, nil
}

// Catalog is the in-memory, order-preserving product list.
type Catalog struct {
	products []*models.Product
}

// NewCatalog copies products into a catalog, assigning ids where missing.
// It reports whether any id was assigned so the caller can persist them.
func NewCatalog(products []models.Product) (*Catalog, bool) {
	c := &Catalog{products: make([]*models.Product, 0, len(products))}
	assigned := false
	for _, p := range products {
		p := p
		if p.ID == "" {
			p.ID = NewProductID()
			assigned = true
		}
		c.products = append(c.products, &p)
	}
	return c, assigned
}

// Clone returns an independent copy, used to stage changes before they are persisted.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{products: make([]*models.Product, 0, len(c.products))}
	for _, p := range c.products {
		p := *p
		out.products = append(out.products, &p)
	}
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// List returns a copy of every product in catalog order.
func (c *Catalog) List() []models.Product {
	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, *p)
	}
	return out
}

// Search matches term case-insensitively against names and descriptions.
func (c *Catalog) Search(term string) []models.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return c.List()
	}

	var out []models.Product
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Description), term) {
			out = append(out, *p)
		}
	}
	return out
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (models.Product, error) {
	p, _ := c.find(id)
	if p == nil {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return *p, nil
}

// CheckDraft validates a draft. excludeID names the product being edited, if any.
// requireImage is set for new products, which must come with an image.
func (c *Catalog) CheckDraft(d ProductDraft, excludeID string, requireImage bool) error {
	if strings.TrimSpace(d.Name) == "" || (requireImage && d.Image == "") {
		return errMissingField
	}
	if d.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidValue)
	}
	if d.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidValue)
	}
	for _, p := range c.products {
		if p.ID != excludeID && strings.EqualFold(p.Name, strings.TrimSpace(d.Name)) {
			return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}
	}
	return nil
}

// Add validates and appends a new product.
func (c *Catalog) Add(d ProductDraft) (models.Product, error) {
	if err := c.CheckDraft(d, "", true); err != nil {
		return models.Product{}, err
	}

	p := &models.Product{
		ID:          NewProductID(),
		Name:        strings.TrimSpace(d.Name),
		Price:       d.Price,
		Image:       d.Image,
		Stock:       d.Stock,
		Description: d.Description,
	}
	c.products = append(c.products, p)
	return *p, nil
}

// Update replaces the fields of product id. An empty draft image keeps the current one.
// It returns the product as it was before the update and as it is after.
func (c *Catalog) Update(id string, d ProductDraft) (before, after models.Product, err error) {
	p, _ := c.find(id)
	if p == nil {
		return before, after, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err := c.CheckDraft(d, id, false); err != nil {
		return before, after, err
	}

	before = *p
	p.Name = strings.TrimSpace(d.Name)
	p.Price = d.Price
	p.Stock = d.Stock
	p.Description = d.Description
	if d.Image != "" {
		p.Image = d.Image
	}
	return before, *p, nil
}

// Remove deletes product id and returns it.
func (c *Catalog) Remove(id string) (models.Product, error) {
	p, i := c.find(id)
	if p == nil {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	c.products = append(c.products[:i], c.products[i+1:]...)
	return *p, nil
}

// Snapshot returns the products with reserved units added back to stock,
// which is the stock that must be persisted while those units sit in a cart.
func (c *Catalog) Snapshot(reserved map[string]int) []models.Product {
	out := c.List()
	for i := range out {
		out[i].Stock += reserved[out[i].ID]
	}
	return out
}

func (c *Catalog) find(id string) (*models.Product, int) {
	for i, p := range c.products {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// takeUnit decrements stock by one.
func (c *Catalog) takeUnit(id string) (*models.Product, error) {
	p, _ := c.find(id)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if p.Stock <= 0 {
		return p, fmt.Errorf("%w: %s", ErrOutOfStock, p.Name)
	}
	p.Stock--
	return p, nil
}

// returnUnit increments stock by one; a product removed meanwhile is ignored.
func (c *Catalog) returnUnit(id string) {
	if p, _ := c.find(id); p != nil {
		p.Stock++
	}
}

// DefaultProducts seeds an empty catalog. The seeded products carry no image until an admin uploads one.
func DefaultProducts() []models.Product {
	return []models.Product{
		{Name: "comida para gatos", Price: 15000, Stock: 10,
			Description: "Alimento balanceado y delicioso para gatos de todas las edades."},
		{Name: "comida para perro", Price: 25000, Stock: 15,
			Description: "Nutrición completa para perros adultos, ideal para energía y vitalidad."},
		{Name: "comida para gatos pequenos", Price: 10000, Stock: 20,
			Description: "Especialmente formulado para gatitos, ayuda en su crecimiento y desarrollo."},
		{Name: "comida para cachorros", Price: 20000, Stock: 12,
			Description: "Fórmula enriquecida para cachorros, promueve un desarrollo óseo y muscular fuerte."},
	}
}

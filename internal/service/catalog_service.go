package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/shop"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CatalogService handles the product catalog and the admin CRUD over it
type CatalogService struct {
	state     *State
	store     *store.Store
	images    ImageStore
	mirror    StockMirror
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(state *State, store *store.Store, images ImageStore, integrations Integrations) *CatalogService {
	integrations = integrations.withDefaults()
	return &CatalogService{
		state:     state,
		store:     store,
		images:    images,
		mirror:    integrations.Mirror,
		publisher: integrations.Publisher,
		logger:    util.GetLogger(),
	}
}

// ProductForm is the admin input for add and edit. Price and stock arrive as text.
type ProductForm struct {
	Name        string
	Price       string
	Stock       string
	Description string
	Image       *Upload
}

// Load reads the products file into memory. A missing, empty or corrupt file seeds the default catalog.
// The returned warning reports a corrupt file that was replaced.
func (s *CatalogService) Load(ctx context.Context) (warning error, err error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Load")
	defer span.End()

	products, err := s.store.LoadProducts(ctx)
	if err != nil {
		s.recordStoreError(err)
		if !errors.Is(err, shop.ErrDecode) {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
		s.logger.Warn("Products file is corrupt, starting from the default catalog", zap.Error(err))
		warning = err
	}

	seeded := len(products) == 0
	if seeded {
		products = shop.DefaultProducts()
	}
	cat, assigned := shop.NewCatalog(products)

	if seeded || assigned {
		if err := s.store.SaveProducts(ctx, cat.List()); err != nil {
			s.recordStoreError(err)
			return warning, fmt.Errorf("failed to save products: %w", err)
		}
	}

	s.state.mu.Lock()
	s.state.catalog = cat
	s.state.cart.Clear()
	s.state.mu.Unlock()

	if err := s.mirror.SyncStock(ctx, cat.List()); err != nil {
		s.logger.Warn("Failed to sync stock mirror", zap.Error(err))
	}

	s.logger.Info("Catalog loaded",
		zap.Int("products", cat.Len()),
		zap.Bool("seeded", seeded),
	)
	return warning, nil
}

// List returns the catalog, filtered by term when it is not blank
func (s *CatalogService) List(ctx context.Context, term string) []models.Product {
	_, span := util.StartSpan(ctx, "CatalogService.List")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	products := s.state.catalog.Search(term)
	if products == nil {
		products = []models.Product{}
	}
	return products
}

// Get returns one product
func (s *CatalogService) Get(ctx context.Context, id string) (models.Product, error) {
	_, span := util.StartSpan(ctx, "CatalogService.Get")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	return s.state.catalog.Get(id)
}

// AddProduct validates the form, stores the image and appends the product.
func (s *CatalogService) AddProduct(ctx context.Context, form ProductForm) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddProduct")
	defer span.End()

	draft, err := shop.ParseDraft(form.Name, form.Price, form.Stock, form.Description)
	if err != nil {
		return models.Product{}, err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if form.Image != nil {
		draft.Image = form.Image.Filename
	}
	if err := s.state.catalog.CheckDraft(draft, "", true); err != nil {
		return models.Product{}, err
	}

	name, err := s.images.Save(draft.Name, form.Image.Filename, form.Image.Reader)
	if err != nil {
		return models.Product{}, err
	}
	draft.Image = name

	staged := s.state.catalog.Clone()
	product, err := staged.Add(draft)
	if err != nil {
		s.discardImage(name)
		return models.Product{}, err
	}
	if err := s.commit(ctx, staged); err != nil {
		s.discardImage(name)
		return models.Product{}, err
	}

	s.afterChange(ctx, models.EventTypeProductAdded, product)
	s.logger.Info("Product added", zap.String("id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// EditProduct replaces the fields of a product. Without an image the current one is kept;
// a new image replaces the old file.
func (s *CatalogService) EditProduct(ctx context.Context, id string, form ProductForm) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.EditProduct", attribute.String("product.id", id))
	defer span.End()

	draft, err := shop.ParseDraft(form.Name, form.Price, form.Stock, form.Description)
	if err != nil {
		return models.Product{}, err
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.catalog.Get(id); err != nil {
		return models.Product{}, err
	}
	if err := s.state.catalog.CheckDraft(draft, id, false); err != nil {
		return models.Product{}, err
	}

	if form.Image != nil {
		name, err := s.images.Save(draft.Name, form.Image.Filename, form.Image.Reader)
		if err != nil {
			return models.Product{}, err
		}
		draft.Image = name
	}

	staged := s.state.catalog.Clone()
	before, after, err := staged.Update(id, draft)
	if err == nil {
		err = s.commit(ctx, staged)
	}
	if err != nil {
		if draft.Image != "" {
			s.discardImage(draft.Image)
		}
		return models.Product{}, err
	}

	if before.Image != after.Image {
		s.discardImage(before.Image)
	}
	s.afterChange(ctx, models.EventTypeProductUpdated, after)
	s.logger.Info("Product updated", zap.String("id", id), zap.String("name", after.Name))
	return after, nil
}

// RemoveProduct deletes a product, its image and its units in the cart.
func (s *CatalogService) RemoveProduct(ctx context.Context, id string) (models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.RemoveProduct", attribute.String("product.id", id))
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	staged := s.state.catalog.Clone()
	removed, err := staged.Remove(id)
	if err != nil {
		return models.Product{}, err
	}
	if err := s.commit(ctx, staged); err != nil {
		return models.Product{}, err
	}

	if dropped := s.state.cart.Drop(id); dropped > 0 {
		util.CartUnits.Set(float64(s.state.cart.Len()))
		s.logger.Info("Removed product dropped from cart", zap.String("id", id), zap.Int("units", dropped))
	}
	s.discardImage(removed.Image)

	util.CatalogChangesTotal.WithLabelValues("removed").Inc()
	if err := s.mirror.DeleteStock(ctx, id); err != nil {
		s.logger.Warn("Failed to drop product from stock mirror", zap.String("id", id), zap.Error(err))
	}
	if err := s.publisher.PublishProductChanged(ctx, models.EventTypeProductRemoved, removed); err != nil {
		s.logger.Warn("Failed to publish product event", zap.Error(err))
	}
	s.logger.Info("Product removed", zap.String("id", id), zap.String("name", removed.Name))
	return removed, nil
}

// SyncMirror pushes the current available stock of every product to the mirror
func (s *CatalogService) SyncMirror(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.SyncMirror")
	defer span.End()

	s.state.mu.Lock()
	products := s.state.catalog.List()
	s.state.mu.Unlock()

	if err := s.mirror.SyncStock(ctx, products); err != nil {
		return fmt.Errorf("failed to sync stock mirror: %w", err)
	}
	return nil
}

// commit persists staged and, on success, makes it the live catalog. Must be called with mu held.
// Units in the cart are added back so the file keeps the stock they were taken from.
func (s *CatalogService) commit(ctx context.Context, staged *shop.Catalog) error {
	if err := s.store.SaveProducts(ctx, staged.Snapshot(s.state.cart.Reserved())); err != nil {
		s.recordStoreError(err)
		return fmt.Errorf("failed to save products: %w", err)
	}
	s.state.catalog = staged
	return nil
}

func (s *CatalogService) afterChange(ctx context.Context, eventType string, p models.Product) {
	action := "added"
	if eventType == models.EventTypeProductUpdated {
		action = "updated"
	}
	util.CatalogChangesTotal.WithLabelValues(action).Inc()

	if err := s.mirror.SetStock(ctx, p); err != nil {
		s.logger.Warn("Failed to mirror stock", zap.String("id", p.ID), zap.Error(err))
	}
	if err := s.publisher.PublishProductChanged(ctx, eventType, p); err != nil {
		s.logger.Warn("Failed to publish product event", zap.Error(err))
	}
}

// discardImage deletes a managed image; failures are only logged.
func (s *CatalogService) discardImage(name string) {
	if err := s.images.Delete(name); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("image", name), zap.Error(err))
	}
}

func (s *CatalogService) recordStoreError(err error) {
	util.StoreErrorsTotal.WithLabelValues("products", string(shop.KindOf(err))).Inc()
}

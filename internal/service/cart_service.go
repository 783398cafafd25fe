package service

import (
	"context"

	"storefront/internal/shop"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CartService handles the cart of the logged-in user
type CartService struct {
	state  *State
	mirror StockMirror
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(state *State, integrations Integrations) *CartService {
	integrations = integrations.withDefaults()
	return &CartService{
		state:  state,
		mirror: integrations.Mirror,
		logger: util.GetLogger(),
	}
}

// Add takes one unit of the product from stock into the cart
func (s *CartService) Add(ctx context.Context, productID string) (shop.CartSummary, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add", attribute.String("product.id", productID))
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return shop.CartSummary{}, err
	}

	product, err := s.state.cart.Add(s.state.catalog, productID)
	if err != nil {
		util.CartOperationsTotal.WithLabelValues("add", string(shop.KindOf(err))).Inc()
		return shop.CartSummary{}, err
	}

	util.CartOperationsTotal.WithLabelValues("add", "ok").Inc()
	util.CartUnits.Set(float64(s.state.cart.Len()))
	if err := s.mirror.SetStock(ctx, product); err != nil {
		s.logger.Warn("Failed to mirror stock", zap.String("id", product.ID), zap.Error(err))
	}

	s.logger.Debug("Added to cart", zap.String("id", product.ID), zap.Int("stock_left", product.Stock))
	return s.state.cart.Summary(s.state.catalog), nil
}

// Remove returns one unit of the named product from the cart to stock
func (s *CartService) Remove(ctx context.Context, productName string) (shop.CartSummary, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Remove", attribute.String("product.name", productName))
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return shop.CartSummary{}, err
	}

	product, err := s.state.cart.Remove(s.state.catalog, productName)
	if err != nil {
		util.CartOperationsTotal.WithLabelValues("remove", string(shop.KindOf(err))).Inc()
		return shop.CartSummary{}, err
	}

	util.CartOperationsTotal.WithLabelValues("remove", "ok").Inc()
	util.CartUnits.Set(float64(s.state.cart.Len()))
	if err := s.mirror.SetStock(ctx, product); err != nil {
		s.logger.Warn("Failed to mirror stock", zap.String("id", product.ID), zap.Error(err))
	}

	return s.state.cart.Summary(s.state.catalog), nil
}

// Summary groups the cart by product and prices it at current prices
func (s *CartService) Summary(ctx context.Context) (shop.CartSummary, error) {
	_, span := util.StartSpan(ctx, "CartService.Summary")
	defer span.End()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, err := s.state.requireSession(); err != nil {
		return shop.CartSummary{}, err
	}
	return s.state.cart.Summary(s.state.catalog), nil
}
